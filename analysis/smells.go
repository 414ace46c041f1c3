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
	"regexp"
	"strings"
)

// Code smell thresholds.
const (
	// LongMethodLines is the body line count above which an entity is
	// flagged as too long.
	LongMethodLines = 15

	// MaxParameters is the parameter count above which a function is
	// flagged as having too many parameters.
	MaxParameters = 5
)

// Smell regexes. Case-sensitive, matching Python keyword spellings.
var (
	complexConditionPattern = regexp.MustCompile(`if.*and.*and.*or|if.*or.*or.*and`)
	nestedLoopsPattern      = regexp.MustCompile(`for.*for|while.*while`)
)

// DetectSmells flags code smells in an entity's code text.
//
// The checks are independent of each other:
//   - more than LongMethodLines body lines -> "Method is too long"
//   - function with more than MaxParameters parameters -> "Too many parameters"
//   - boolean-heavy condition pattern -> "Contains complex condition"
//   - loop-within-loop pattern -> "Contains nested loops"
//
// isFunction and paramCount come from the entity's declaration; the
// parameter check only applies to function entities.
func DetectSmells(codeText string, isFunction bool, paramCount int) []string {
	var smells []string

	if len(strings.Split(strings.TrimSuffix(codeText, "\n"), "\n")) > LongMethodLines {
		smells = append(smells, "Method is too long")
	}

	if isFunction && paramCount > MaxParameters {
		smells = append(smells, "Too many parameters")
	}

	if complexConditionPattern.MatchString(codeText) {
		smells = append(smells, "Contains complex condition")
	}

	if nestedLoopsPattern.MatchString(codeText) {
		smells = append(smells, "Contains nested loops")
	}

	return smells
}
