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

import sitter "github.com/smacker/go-tree-sitter"

// maxWalkDepth bounds subtree traversal to protect against pathologically
// nested input.
const maxWalkDepth = 512

// walkSubtree visits every named node in the subtree rooted at node,
// including node itself, in depth-first order.
//
// Uses an explicit stack to prevent stack overflow on deep trees.
func walkSubtree(node *sitter.Node, visit func(*sitter.Node)) {
	if node == nil {
		return
	}

	type entry struct {
		node  *sitter.Node
		depth int
	}

	stack := []entry{{node: node, depth: 0}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		visit(e.node)

		if e.depth >= maxWalkDepth {
			continue
		}
		// Push children in reverse so traversal stays source-ordered.
		for i := int(e.node.NamedChildCount()) - 1; i >= 0; i-- {
			if child := e.node.NamedChild(i); child != nil {
				stack = append(stack, entry{node: child, depth: e.depth + 1})
			}
		}
	}
}
