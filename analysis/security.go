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
)

// SecurityRule is one named pattern in the security rule table.
type SecurityRule struct {
	// Name identifies the vulnerability class (e.g., "sql_injection").
	Name string

	// Pattern is the compiled detection regex. All rules match
	// case-insensitively.
	Pattern *regexp.Regexp
}

// securityRules is the fixed rule table evaluated against entity code text.
//
// Each rule contributes at most one finding per entity: presence, not count.
// Rules are ordered so finding lists are deterministic.
var securityRules = []SecurityRule{
	{Name: "sql_injection", Pattern: regexp.MustCompile(`(?i)execute\s*\(\s*['"][^']*%.*['"]\s*%`)},
	{Name: "shell_injection", Pattern: regexp.MustCompile(`(?i)os\.system\(|subprocess\.call\(|eval\(|exec\(`)},
	{Name: "path_traversal", Pattern: regexp.MustCompile(`(?i)\.\./`)},
	{Name: "hardcoded_secrets", Pattern: regexp.MustCompile(`(?i)password\s*=\s*['"][^'"]+['"]\s*$|api_key\s*=\s*['"][^'"]+['"]\s*$`)},
	{Name: "unsafe_deserialization", Pattern: regexp.MustCompile(`(?i)pickle\.loads\(|yaml\.load\(`)},
	{Name: "xss_vulnerability", Pattern: regexp.MustCompile(`(?i)render_template\s*\(.*\+\s*.*\)|response\.write\s*\(.*\+\s*.*\)`)},
	{Name: "open_redirect", Pattern: regexp.MustCompile(`(?i)redirect\s*\(\s*request\.args\.get\s*\(`)},
	{Name: "file_access", Pattern: regexp.MustCompile(`(?i)open\s*\(\s*.*\+\s*.*\)`)},
	{Name: "command_injection", Pattern: regexp.MustCompile(`(?i)subprocess\.Popen\(.*shell\s*=\s*True\)`)},
	{Name: "jwt_none_algorithm", Pattern: regexp.MustCompile(`(?i)jwt\.decode\(.*verify\s*=\s*False\)`)},
	{Name: "weak_crypto", Pattern: regexp.MustCompile(`(?i)md5\(|sha1\(`)},
}

// SecurityRules returns the rule table, primarily for tests and docs.
func SecurityRules() []SecurityRule {
	rules := make([]SecurityRule, len(securityRules))
	copy(rules, securityRules)
	return rules
}

// SecurityFindings evaluates the rule table against the entity's code text.
//
// Returns one finding label per matched rule, in rule-table order, or nil
// when nothing matches.
func SecurityFindings(codeText string) []string {
	var findings []string
	for _, rule := range securityRules {
		if rule.Pattern.MatchString(codeText) {
			findings = append(findings, fmt.Sprintf("Potential %s vulnerability detected", rule.Name))
		}
	}
	return findings
}
