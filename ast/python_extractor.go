// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/AleutianAI/codeintel/analysis"
)

// Default extractor configuration values.
const (
	// DefaultMaxFileSize is the maximum file size accepted (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize triggers a warning log for large files (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

// ExtractorOption configures an Extractor instance.
type ExtractorOption func(*Extractor)

// WithMaxFileSize sets the maximum file size the extractor will accept.
//
// Parameters:
//   - bytes: Maximum file size in bytes. Must be positive.
func WithMaxFileSize(bytes int64) ExtractorOption {
	return func(x *Extractor) {
		if bytes > 0 {
			x.maxFileSize = bytes
		}
	}
}

// WithExtractorLogger sets the logger used for extraction warnings.
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(x *Extractor) {
		if logger != nil {
			x.logger = logger
		}
	}
}

// Extractor parses Python source text and yields code entities.
//
// Description:
//
//	Extractor uses tree-sitter to parse source files and extract one
//	Entity per function-like or type-like declaration, at any nesting
//	depth. Each Extract call creates its own tree-sitter parser instance
//	internally.
//
// Thread Safety:
//
//	Extractor instances are safe for concurrent use. Multiple goroutines
//	may call Extract simultaneously on the same Extractor.
type Extractor struct {
	maxFileSize int64
	logger      *slog.Logger
}

// NewExtractor creates a new Extractor with the given options.
//
// Example:
//
//	x := ast.NewExtractor()
//	result, err := x.Extract(ctx, []byte("def hello(): pass"), "main.py")
func NewExtractor(opts ...ExtractorOption) *Extractor {
	x := &Extractor{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(x)
	}

	return x
}

// Extract parses the given source and yields the file's entities.
//
// Description:
//
//	Parses the content with tree-sitter and walks the full tree in
//	breadth-first order. Every function and class definition becomes an
//	Entity; an entity's Ordinal is its position in that walk. All four
//	static analyzers run per entity during extraction.
//
// Inputs:
//
//	ctx - Context for cancellation. Checked before and after parsing.
//	content - Raw Python source bytes. Must be valid UTF-8.
//	filePath - Path to the file, used for entity identity and logging.
//
// Outputs:
//
//	*FileEntities - Extracted entities in walk order. Never nil on success.
//	error - Non-nil for whole-file failures: ErrFileTooLarge,
//	  ErrInvalidContent, ErrSyntax (any syntax error in the file skips
//	  extraction for the whole file), or context errors.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (x *Extractor) Extract(ctx context.Context, content []byte, filePath string) (*FileEntities, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract canceled before start: %w", err)
	}

	ctx, span := startExtractSpan(ctx, filePath, len(content))
	defer span.End()
	start := time.Now()

	if int64(len(content)) > x.maxFileSize {
		recordExtractMetrics(ctx, time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), x.maxFileSize)
	}

	if len(content) > WarnFileSize {
		x.logger.Warn("extracting large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordExtractMetrics(ctx, time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, filePath)
	}

	hash := sha256.Sum256(content)

	// New parser instance per call for thread safety.
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordExtractMetrics(ctx, time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract canceled after parse: %w", err)
	}

	root := tree.RootNode()
	if root == nil {
		recordExtractMetrics(ctx, time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: nil root node for %s", ErrSyntax, filePath)
	}
	if root.HasError() {
		recordExtractMetrics(ctx, time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: %s", ErrSyntax, filePath)
	}

	lines := strings.Split(string(content), "\n")

	result := &FileEntities{
		FilePath:      filePath,
		Hash:          hex.EncodeToString(hash[:]),
		ParsedAtMilli: time.Now().UnixMilli(),
		Entities:      make([]*Entity, 0),
	}

	// Breadth-first over the whole tree so outer declarations come before
	// the declarations nested inside them. Ordinals depend on this order.
	for _, node := range declarationsBreadthFirst(root) {
		entity := x.buildEntity(node, content, lines, filePath, len(result.Entities))
		if entity == nil {
			continue
		}
		result.Entities = append(result.Entities, entity)
	}

	if err := result.Validate(); err != nil {
		recordExtractMetrics(ctx, time.Since(start), 0, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}

	setExtractSpanResult(span, len(result.Entities))
	recordExtractMetrics(ctx, time.Since(start), len(result.Entities), true)

	return result, nil
}

// declarationsBreadthFirst returns every function and class definition in
// the tree, in breadth-first order.
func declarationsBreadthFirst(root *sitter.Node) []*sitter.Node {
	var decls []*sitter.Node

	queue := []*sitter.Node{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		switch node.Type() {
		case "function_definition", "class_definition":
			decls = append(decls, node)
		}

		for i := 0; i < int(node.NamedChildCount()); i++ {
			if child := node.NamedChild(i); child != nil {
				queue = append(queue, child)
			}
		}
	}

	return decls
}

// buildEntity constructs one Entity from a declaration node, running the
// per-entity analyzers. Returns nil for unnamed declarations.
func (x *Extractor) buildEntity(node *sitter.Node, content []byte, lines []string, filePath string, ordinal int) *Entity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nameNode.Content(content)
	if name == "" {
		return nil
	}

	kind := EntityKindFunction
	if node.Type() == "class_definition" {
		kind = EntityKindType
	}

	startLine := int(node.StartPoint().Row + 1)
	endLine := int(node.EndPoint().Row + 1)

	entity := &Entity{
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		StartLine: startLine,
		EndLine:   endLine,
		Ordinal:   ordinal,
		Summary:   extractDocstring(node, content),
		CodeText:  sliceLines(lines, startLine, endLine),
	}
	entity.SetDependencies(collectDependencies(node, content))

	switch kind {
	case EntityKindFunction:
		entity.ParamCount = countParameters(node)
		entity.Complexity = float64(analysis.Cyclomatic(node))
		entity.Performance = analysis.AnalyzePerformance(node, content, name, entity.CodeText)
	case EntityKindType:
		x.analyzeType(entity, node, content)
	}

	entity.SecurityFindings = analysis.SecurityFindings(entity.CodeText)

	return entity
}

// analyzeType computes the kind-specific aggregates for a type entity:
// complexity is the mean cyclomatic complexity of the functions nested in
// the class body (0 if there are none), and the performance score is the
// mean of the nested functions' scores.
func (x *Extractor) analyzeType(entity *Entity, node *sitter.Node, content []byte) {
	var methods []*sitter.Node
	walkNamed(node, func(n *sitter.Node) {
		if n.Type() == "function_definition" {
			methods = append(methods, n)
		}
	})

	totalComplexity := 0
	totalScore := 0.0
	for _, m := range methods {
		totalComplexity += analysis.Cyclomatic(m)

		methodName := ""
		if nameNode := m.ChildByFieldName("name"); nameNode != nil {
			methodName = nameNode.Content(content)
		}
		totalScore += analysis.AnalyzePerformance(m, content, methodName, entity.CodeText).Score
	}

	count := len(methods)
	if count == 0 {
		entity.Complexity = 0
		entity.Performance = &analysis.PerformanceMetrics{Score: analysis.PerformanceScoreFloor}
		return
	}

	entity.Complexity = float64(totalComplexity) / float64(count)
	entity.Performance = &analysis.PerformanceMetrics{Score: totalScore / float64(count)}
}

// walkNamed visits every named node in the subtree, including the root,
// depth-first.
func walkNamed(node *sitter.Node, visit func(*sitter.Node)) {
	if node == nil {
		return
	}
	stack := []*sitter.Node{node}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		visit(n)

		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			if child := n.NamedChild(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
}

// collectDependencies gathers every referenced identifier name in the
// entity's subtree, including call targets reached through attribute
// access.
//
// This is intentionally coarse: local variables and builtins are included,
// and no scope or type resolution is attempted. Declaration names,
// parameter names, keyword-argument names, and import clauses are excluded
// because they are bindings rather than references.
func collectDependencies(root *sitter.Node, content []byte) map[string]struct{} {
	deps := make(map[string]struct{})

	walkNamed(root, func(n *sitter.Node) {
		if n.Type() != "identifier" {
			return
		}
		if isBindingName(n) {
			return
		}
		deps[n.Content(content)] = struct{}{}
	})

	return deps
}

// isBindingName reports whether an identifier node names a binding (a
// declaration, parameter, keyword argument, or import clause) rather than
// a reference.
func isBindingName(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return false
	}

	switch parent.Type() {
	case "function_definition", "class_definition":
		return sameNode(parent.ChildByFieldName("name"), n)
	case "parameters", "lambda_parameters", "typed_parameter":
		return true
	case "default_parameter", "typed_default_parameter", "keyword_argument":
		return sameNode(parent.ChildByFieldName("name"), n)
	case "dotted_name", "aliased_import", "import_statement", "import_from_statement", "relative_import":
		return true
	case "attribute":
		// The attribute name only counts when it is the target of a call:
		// obj.method() contributes "method", plain obj.field does not.
		if !sameNode(parent.ChildByFieldName("attribute"), n) {
			return false
		}
		grand := parent.Parent()
		isCallTarget := grand != nil && grand.Type() == "call" &&
			sameNode(grand.ChildByFieldName("function"), parent)
		return !isCallTarget
	}

	return false
}

// sameNode compares nodes by source position.
func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

// countParameters returns the declared parameter count of a function
// definition, counting plain, typed, and defaulted parameters but not
// *args/**kwargs splats.
func countParameters(node *sitter.Node) int {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return 0
	}

	count := 0
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "identifier", "typed_parameter", "default_parameter", "typed_default_parameter":
			count++
		}
	}
	return count
}

// extractDocstring returns the leading docstring of a definition's body,
// with any string prefix (r, b, u, f in either case) and quotes stripped
// and surrounding whitespace trimmed. Empty if the body has no docstring.
func extractDocstring(node *sitter.Node, content []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}

	first := body.NamedChild(0)
	if first == nil || first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}

	str := first.NamedChild(0)
	if str == nil || str.Type() != "string" {
		return ""
	}

	// Prefix letters precede the opening quote, so trimming them never
	// touches the docstring text itself.
	raw := str.Content(content)
	raw = strings.TrimLeft(raw, "rRbBuUfF")
	return strings.TrimSpace(strings.Trim(raw, `"'`))
}

// sliceLines returns the verbatim source slice for the inclusive 1-indexed
// line range [startLine, endLine].
func sliceLines(lines []string, startLine, endLine int) string {
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine {
		return ""
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}
