// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis provides the static analyzers that run over each
// extracted entity: cyclomatic complexity, security pattern matching,
// code smell detection, and performance heuristics.
//
// All analyzers are pure functions of one entity's syntax subtree and/or
// code text. They hold no state beyond pre-compiled rule tables and are
// safe for concurrent use.
package analysis

import sitter "github.com/smacker/go-tree-sitter"

// Cyclomatic computes the cyclomatic complexity of the subtree rooted at
// node.
//
// Counting rules:
//   - base complexity is 1
//   - +1 for each conditional or loop construct (if, elif, for, while)
//   - +1 for each boolean operator node; chains like "a and b or c" parse
//     as nested binary operator nodes, so a combinator with N operands
//     contributes N-1 in total
//   - +1 for each except clause of a try statement
//
// Deterministic, no side effects. A nil node has complexity 1.
func Cyclomatic(node *sitter.Node) int {
	complexity := 1

	walkSubtree(node, func(n *sitter.Node) {
		switch n.Type() {
		case "if_statement", "elif_clause", "for_statement", "while_statement":
			complexity++
		case "boolean_operator":
			complexity++
		case "except_clause":
			complexity++
		}
	})

	return complexity
}

// countLoops returns the number of loop constructs in the subtree.
//
// This is a raw count, not a nesting depth: two sequential loops count the
// same as two nested loops. The time-complexity estimate is deliberately
// that coarse.
func countLoops(node *sitter.Node) int {
	loops := 0
	walkSubtree(node, func(n *sitter.Node) {
		switch n.Type() {
		case "for_statement", "while_statement":
			loops++
		}
	})
	return loops
}
