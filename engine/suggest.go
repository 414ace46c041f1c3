// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/codeintel/analysis"
	"github.com/AleutianAI/codeintel/ast"
	"github.com/AleutianAI/codeintel/graph"
	"github.com/AleutianAI/codeintel/index"
)

// DefaultSuggestLimit is used when the caller passes a non-positive
// suggestion limit.
const DefaultSuggestLimit = 5

// Confidence and risk weighting constants for suggestion scoring.
const (
	baseConfidence      = 0.5
	docConfidenceBonus  = 0.2
	impactPenaltyRate   = 0.05
	impactPenaltyCap    = 0.3
	riskPenaltyRate     = 0.3
	complexityBonusBase = 0.2
	complexityBonusRate = 0.02
	minConfidence       = 0.1

	securityRiskWeight = 0.3
	smellRiskWeight    = 0.1

	highComplexityThreshold = 10
)

// ModificationType classifies the kind of change a task implies.
type ModificationType string

const (
	ModificationFix     ModificationType = "fix"
	ModificationAdd     ModificationType = "add"
	ModificationModify  ModificationType = "modify"
	ModificationAnalyze ModificationType = "analyze"
)

// Suggestion is one ranked modification candidate.
type Suggestion struct {
	// EntityID is the candidate's stable identity, filePath:name:ordinal.
	EntityID string `json:"entity_id"`

	Name      string         `json:"name"`
	Kind      ast.EntityKind `json:"kind"`
	FilePath  string         `json:"file_path"`
	StartLine int            `json:"start_line"`
	EndLine   int            `json:"end_line"`

	// CodeText is the candidate's current source, read at query time.
	CodeText string `json:"code_text"`

	// Relevance is the lexical relevance of the candidate to the task.
	Relevance float64 `json:"relevance"`

	// Incoming and Outgoing are the candidate's direct graph
	// neighborhoods.
	Incoming []string `json:"incoming"`
	Outgoing []string `json:"outgoing"`

	// DependencyRisk is the structural risk derived from the graph alone.
	DependencyRisk graph.Risk `json:"dependency_risk"`

	// ImpactScore estimates blast radius: fan-in plus fan-out plus a
	// complexity contribution.
	ImpactScore float64 `json:"impact_score"`

	// RiskScore combines structural risk with security findings and code
	// smells, in [0.0, 1.0].
	RiskScore float64 `json:"risk_score"`

	SecurityIssues []string `json:"security_issues"`
	CodeSmells     []string `json:"code_smells"`

	// Confidence is the ranking key, in [0.1, 1.0].
	Confidence float64 `json:"confidence"`

	ModificationType ModificationType `json:"modification_type"`

	// SafetyChecks is the ordered pre-modification checklist.
	SafetyChecks []string `json:"safety_checks"`
}

// Suggest ranks entities relevant to a task description as modification
// candidates.
//
// Description:
//
//	Queries the index for entities lexically relevant to the task, then
//	scores each candidate by re-analyzing its current source: complexity,
//	security findings, and code smells are recomputed from the code as it
//	is on disk now, not as it was at indexing time. Candidates are
//	returned sorted by confidence descending, breaking ties by risk
//	ascending.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	task - Free-text task description. Also drives the modification type
//	  heuristic.
//	limit - Maximum candidates to return. Non-positive means
//	  DefaultSuggestLimit.
//
// Outputs:
//
//	[]Suggestion - Ranked candidates. Empty, not nil, when nothing
//	  matches.
//	error - Non-nil when the store query fails (an *IndexQueryFailure).
func (e *Engine) Suggest(ctx context.Context, task string, limit int) ([]Suggestion, error) {
	ctx, span := startSpan(ctx, "Engine.Suggest", attribute.String("engine.task", task))
	defer span.End()
	start := time.Now()

	if limit <= 0 {
		limit = DefaultSuggestLimit
	}

	hits, err := e.idx.Search(ctx, task, limit)
	if err != nil {
		recordSuggestMetrics(ctx, time.Since(start), false)
		return nil, &IndexQueryFailure{Query: task, Err: err}
	}

	g := e.graph.Load()
	cyclic := g.CyclicNodes()
	modType := suggestModificationType(task)

	suggestions := make([]Suggestion, 0, len(hits))
	for _, hit := range hits {
		suggestions = append(suggestions, e.buildSuggestion(ctx, hit, g, cyclic, modType))
	}
	rankSuggestions(suggestions)

	span.SetAttributes(attribute.Int("engine.suggestions", len(suggestions)))
	recordSuggestMetrics(ctx, time.Since(start), true)

	return suggestions, nil
}

// buildSuggestion scores one candidate.
func (e *Engine) buildSuggestion(ctx context.Context, hit index.Hit, g *graph.Graph, cyclic map[string]struct{}, modType ModificationType) Suggestion {
	name := hit.Metadata.Name

	s := Suggestion{
		EntityID:         hit.ID,
		Name:             name,
		Kind:             hit.Metadata.Kind,
		FilePath:         hit.Metadata.FilePath,
		StartLine:        hit.Metadata.StartLine,
		EndLine:          hit.Metadata.EndLine,
		CodeText:         hit.CodeText,
		Relevance:        hit.Score,
		Incoming:         g.Incoming(name),
		Outgoing:         g.Outgoing(name),
		DependencyRisk:   g.RiskFor(name, cyclic),
		ModificationType: modType,
	}

	complexity, hasDoc, paramCount := e.reanalyze(ctx, hit)

	s.SecurityIssues = analysis.SecurityFindings(hit.CodeText)
	s.CodeSmells = analysis.DetectSmells(hit.CodeText, hit.Metadata.Kind == ast.EntityKindFunction, paramCount)

	s.RiskScore = combineRisk(s.DependencyRisk.Score, len(s.SecurityIssues), len(s.CodeSmells))

	s.ImpactScore = float64(len(s.Incoming)+len(s.Outgoing)) + complexity/10

	s.Confidence = calculateConfidence(hasDoc, complexity, s.ImpactScore, s.RiskScore)
	s.SafetyChecks = safetyChecks(complexity, s.Incoming, s.CodeSmells, s.SecurityIssues)

	return s
}

// reanalyze re-extracts the candidate from its current source to recover
// the analyzer inputs the index does not store. The snippet is dedented
// first because a nested declaration's text is not valid at top level.
//
// On failure the candidate keeps zero complexity, no docstring, and zero
// parameters; the failure is logged, never fatal.
func (e *Engine) reanalyze(ctx context.Context, hit index.Hit) (complexity float64, hasDoc bool, paramCount int) {
	if hit.CodeText == "" {
		return 0, false, 0
	}

	snippet := dedent(hit.CodeText)
	result, err := e.extractor.Extract(ctx, []byte(snippet), hit.Metadata.FilePath)
	if err != nil || len(result.Entities) == 0 {
		if err == nil {
			err = fmt.Errorf("no declaration found in snippet")
		}
		failure := &AnalyzerFailure{EntityID: hit.ID, Analyzer: "reanalyze", Err: err}
		e.logger.Warn("could not re-analyze candidate", slog.String("error", failure.Error()))
		return 0, false, 0
	}

	// The first entity in walk order is the declaration itself.
	entity := result.Entities[0]
	return entity.Complexity, entity.Summary != "", entity.ParamCount
}

// rankSuggestions sorts candidates by confidence descending, breaking
// ties by risk ascending. Stable so equally scored candidates keep their
// relevance order.
func rankSuggestions(suggestions []Suggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return suggestions[i].RiskScore < suggestions[j].RiskScore
	})
}

// combineRisk layers security findings and code smells on top of the
// structural dependency risk, clamped to 1.0. Security findings contribute
// a single fixed 0.3 regardless of count; each smell adds 0.1.
func combineRisk(structural float64, securityCount, smellCount int) float64 {
	risk := structural
	if securityCount > 0 {
		risk += securityRiskWeight
	}
	risk += float64(smellCount) * smellRiskWeight
	if risk > 1.0 {
		return 1.0
	}
	return risk
}

// calculateConfidence combines the scoring signals into [0.1, 1.0].
func calculateConfidence(hasDoc bool, complexity, impact, risk float64) float64 {
	confidence := baseConfidence

	if hasDoc {
		confidence += docConfidenceBonus
	}

	impactPenalty := impact * impactPenaltyRate
	if impactPenalty > impactPenaltyCap {
		impactPenalty = impactPenaltyCap
	}
	confidence -= impactPenalty

	confidence -= risk * riskPenaltyRate

	if complexity > 0 {
		bonus := complexityBonusBase - complexity*complexityBonusRate
		if bonus > 0 {
			confidence += bonus
		}
	}

	if confidence < minConfidence {
		return minConfidence
	}
	if confidence > 1.0 {
		return 1.0
	}
	return confidence
}

// suggestModificationType maps task wording to a modification type.
func suggestModificationType(task string) ModificationType {
	lowered := strings.ToLower(task)
	switch {
	case strings.Contains(lowered, "bug"):
		return ModificationFix
	case strings.Contains(lowered, "feature"):
		return ModificationAdd
	case strings.Contains(lowered, "refactor"):
		return ModificationModify
	default:
		return ModificationAnalyze
	}
}

// safetyChecks builds the ordered pre-modification checklist for one
// candidate.
func safetyChecks(complexity float64, incoming, smells, securityIssues []string) []string {
	checks := []string{
		"Create backup of affected files",
		"Create new feature branch",
	}

	if len(incoming) > 0 {
		checks = append(checks,
			"Test all dependent modules",
			"Verify interface compatibility")
	}

	for _, issue := range securityIssues {
		checks = append(checks, "Address security issue: "+issue)
	}

	for _, smell := range smells {
		checks = append(checks, "Consider refactoring: "+smell)
	}

	if complexity > highComplexityThreshold {
		checks = append(checks,
			"Consider breaking down complex logic",
			"Add detailed inline documentation")
	}

	checks = append(checks,
		"Add/update unit tests",
		"Add/update integration tests",
		"Verify error handling",
		"Check edge cases")

	return checks
}

// dedent strips the longest common leading whitespace from every
// non-blank line.
func dedent(text string) string {
	lines := strings.Split(text, "\n")

	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix = indent
			first = false
			continue
		}
		prefix = commonPrefix(prefix, indent)
		if prefix == "" {
			return text
		}
	}

	if prefix == "" {
		return text
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			out[i] = ""
			continue
		}
		out[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(out, "\n")
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}
