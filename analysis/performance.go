// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Performance score bounds and the per-pattern penalty step.
const (
	// PerformanceScoreMax is the best possible performance score.
	PerformanceScoreMax = 1.0

	// PerformanceScoreFloor is the worst score an entity can receive.
	PerformanceScoreFloor = 0.1

	// patternPenalty is subtracted from the score per matched pattern.
	patternPenalty = 0.1
)

// Bottleneck describes one matched performance inefficiency pattern.
type Bottleneck struct {
	// Kind is the pattern name that matched (e.g., "quadratic_operation").
	Kind string `json:"kind"`

	// Severity is "high" or "medium".
	Severity string `json:"severity"`

	// Suggestion is the remediation hint for this pattern.
	Suggestion string `json:"suggestion"`
}

// PerformanceMetrics holds the performance heuristics for one entity.
type PerformanceMetrics struct {
	// TimeComplexity is the estimated time complexity class.
	// Example: "O(1)", "O(n)", "O(n^2)", "O(2^n)"
	TimeComplexity string `json:"time_complexity,omitempty"`

	// SpaceComplexity is the estimated space complexity class.
	SpaceComplexity string `json:"space_complexity,omitempty"`

	// Score is the performance score in [0.1, 1.0]; 1.0 is best.
	Score float64 `json:"performance_score"`

	// Bottlenecks lists the matched inefficiency patterns.
	// May be nil if no pattern matched.
	Bottlenecks []Bottleneck `json:"bottlenecks,omitempty"`
}

// PerformanceRule is one named pattern in the performance rule table.
type PerformanceRule struct {
	// Name identifies the inefficiency class.
	Name string

	// Pattern is the compiled detection regex. All rules match
	// case-insensitively.
	Pattern *regexp.Regexp
}

// performanceRules is the fixed table of known inefficiency patterns.
var performanceRules = []PerformanceRule{
	{Name: "inefficient_list_operation", Pattern: regexp.MustCompile(`(?i)for\s+\w+\s+in\s+range\(len\(`)},
	{Name: "expensive_operation_in_loop", Pattern: regexp.MustCompile(`(?i)for.*:.*\.(sort|reverse|copy)\(\)`)},
	{Name: "quadratic_operation", Pattern: regexp.MustCompile(`(?i)for.*:\s*for\s+\w+\s+in\s+range\(`)},
	{Name: "memory_intensive", Pattern: regexp.MustCompile(`(?i)\.append\(.*\).*for.*in`)},
	{Name: "cpu_intensive", Pattern: regexp.MustCompile(`(?i)recursive_.*\(|factorial.*\(`)},
	{Name: "network_call_in_loop", Pattern: regexp.MustCompile(`(?i)for.*:\s*(requests\.|urllib\.|http\.)`)},
	{Name: "db_query_in_loop", Pattern: regexp.MustCompile(`(?i)for.*:\s*(execute|query|find)\(`)},
	{Name: "large_memory_allocation", Pattern: regexp.MustCompile(`(?i)numpy\.zeros\(.*\d{5,}.*\)|torch\.zeros\(.*\d{5,}.*\)`)},
}

// performanceSuggestions maps pattern names to remediation hints.
var performanceSuggestions = map[string]string{
	"inefficient_list_operation":  "Use enumerate() instead of range(len())",
	"expensive_operation_in_loop": "Move operation outside loop if possible",
	"quadratic_operation":         "Consider using more efficient data structure or algorithm",
	"memory_intensive":            "Use generators or itertools for memory efficiency",
	"cpu_intensive":               "Consider caching results or using dynamic programming",
	"network_call_in_loop":        "Use async/await or batch requests",
	"db_query_in_loop":            "Use batch queries or JOIN operations",
	"large_memory_allocation":     "Consider using sparse arrays or chunking",
}

// defaultSuggestion is used for patterns with no specific remediation.
const defaultSuggestion = "Review and optimize the code"

// complexityPenalties maps complexity classes to score penalties.
// Classes absent from the table use severity-dependent defaults.
var complexityPenalties = map[string]float64{
	"O(1)":       0.0,
	"O(log n)":   0.1,
	"O(n)":       0.2,
	"O(n log n)": 0.3,
	"O(n^2)":     0.4,
	"O(n^3)":     0.6,
	"O(2^n)":     0.8,
}

// Penalties for complexity classes not in the lookup table.
const (
	unknownTimePenalty  = 0.5
	unknownSpacePenalty = 0.3
)

// AnalyzePerformance runs the performance heuristics for one entity.
//
// Inputs:
//   - node: the entity's syntax subtree. Used for the complexity estimates.
//   - content: the full source bytes the subtree was parsed from.
//   - selfName: the entity's own name for function entities, used to detect
//     self-recursion. Pass "" for type entities, which are never considered
//     recursive.
//   - codeText: the entity's verbatim code text, matched against the
//     pattern table.
//
// The score starts at 1.0, loses 0.1 per matched pattern, then loses the
// average of the time- and space-class penalties, and is floored at 0.1.
func AnalyzePerformance(node *sitter.Node, content []byte, selfName, codeText string) *PerformanceMetrics {
	var matched []string
	for _, rule := range performanceRules {
		if rule.Pattern.MatchString(codeText) {
			matched = append(matched, rule.Name)
		}
	}

	recursive := selfName != "" && callsSelf(node, content, selfName)

	metrics := &PerformanceMetrics{
		TimeComplexity:  estimateTimeComplexity(node, recursive),
		SpaceComplexity: estimateSpaceComplexity(node, recursive),
		Score:           PerformanceScoreMax - patternPenalty*float64(len(matched)),
		Bottlenecks:     buildBottlenecks(matched),
	}

	penalty := complexityPenalty(metrics.TimeComplexity, metrics.SpaceComplexity)
	metrics.Score -= penalty

	if metrics.Score < PerformanceScoreFloor {
		metrics.Score = PerformanceScoreFloor
	}
	if metrics.Score > PerformanceScoreMax {
		metrics.Score = PerformanceScoreMax
	}

	return metrics
}

// callsSelf reports whether the subtree contains a call whose target
// identifier equals name, anywhere in the body.
//
// This is a name-based check: shadowing and aliasing are not resolved.
func callsSelf(node *sitter.Node, content []byte, name string) bool {
	found := false
	walkSubtree(node, func(n *sitter.Node) {
		if found || n.Type() != "call" {
			return
		}
		fn := n.ChildByFieldName("function")
		if fn != nil && fn.Type() == "identifier" && fn.Content(content) == name {
			found = true
		}
	})
	return found
}

// estimateTimeComplexity estimates the entity's time complexity class.
//
// Self-recursive entities are assumed exponential. Otherwise the class is
// O(n^k) for k loop constructs found anywhere in the subtree (0 -> O(1),
// 1 -> O(n)).
func estimateTimeComplexity(node *sitter.Node, recursive bool) string {
	if recursive {
		return "O(2^n)"
	}

	switch loops := countLoops(node); {
	case loops > 1:
		return fmt.Sprintf("O(n^%d)", loops)
	case loops == 1:
		return "O(n)"
	default:
		return "O(1)"
	}
}

// estimateSpaceComplexity estimates the entity's space complexity class.
//
// O(n) if the entity is self-recursive or allocates any list, dict, or set
// literal; O(1) otherwise.
func estimateSpaceComplexity(node *sitter.Node, recursive bool) string {
	if recursive {
		return "O(n)"
	}

	allocates := false
	walkSubtree(node, func(n *sitter.Node) {
		switch n.Type() {
		case "list", "dictionary", "set":
			allocates = true
		}
	})

	if allocates {
		return "O(n)"
	}
	return "O(1)"
}

// buildBottlenecks turns matched pattern names into bottleneck entries.
func buildBottlenecks(matched []string) []Bottleneck {
	if len(matched) == 0 {
		return nil
	}

	bottlenecks := make([]Bottleneck, 0, len(matched))
	for _, name := range matched {
		severity := "medium"
		if strings.Contains(name, "quadratic") || strings.Contains(name, "cpu_intensive") {
			severity = "high"
		}

		suggestion, ok := performanceSuggestions[name]
		if !ok {
			suggestion = defaultSuggestion
		}

		bottlenecks = append(bottlenecks, Bottleneck{
			Kind:       name,
			Severity:   severity,
			Suggestion: suggestion,
		})
	}
	return bottlenecks
}

// complexityPenalty averages the penalties for the time and space classes.
func complexityPenalty(timeClass, spaceClass string) float64 {
	timePenalty, ok := complexityPenalties[timeClass]
	if !ok {
		timePenalty = unknownTimePenalty
	}

	spacePenalty, ok := complexityPenalties[spaceClass]
	if !ok {
		spacePenalty = unknownSpacePenalty
	}

	return (timePenalty + spacePenalty) / 2
}
