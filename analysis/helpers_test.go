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
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// parseSource parses Python source and returns the module root.
func parseSource(t *testing.T, source string) (*sitter.Node, []byte) {
	t.Helper()

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(source))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	t.Cleanup(tree.Close)

	root := tree.RootNode()
	if root.HasError() {
		t.Fatalf("test source has syntax errors:\n%s", source)
	}
	return root, []byte(source)
}

// firstDefinition returns the first function or class definition in the
// tree.
func firstDefinition(t *testing.T, root *sitter.Node) *sitter.Node {
	t.Helper()

	var found *sitter.Node
	walkSubtree(root, func(n *sitter.Node) {
		if found != nil {
			return
		}
		switch n.Type() {
		case "function_definition", "class_definition":
			found = n
		}
	})

	if found == nil {
		t.Fatal("no definition found in test source")
	}
	return found
}
