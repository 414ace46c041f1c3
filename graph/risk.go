// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

// Risk weighting constants. The score is the sum of four capped
// contributions: circular involvement, chain depth, fan-out, and fan-in.
const (
	circularRiskWeight = 0.4

	depthRiskPerLevel = 0.1
	depthRiskCap      = 0.3

	fanRiskPerEdge = 0.03
	fanRiskCap     = 0.15
)

// Risk describes the structural modification risk of one node.
type Risk struct {
	// Circular is true when the node participates in at least one cycle,
	// including a self loop.
	Circular bool `json:"circular"`

	// Depth is the longest simple path from the node to one of its
	// direct dependencies, counted in nodes. See Graph.Depth.
	Depth int `json:"depth"`

	// Direct is the node's fan-out: the count of distinct direct
	// dependencies.
	Direct int `json:"direct"`

	// Dependents is the node's fan-in: the count of distinct direct
	// dependents.
	Dependents int `json:"dependents"`

	// Score is the combined risk in [0.0, 1.0].
	Score float64 `json:"score"`
}

// RiskFor computes the structural risk of the named node.
//
// Description:
//
//	The score sums four capped contributions:
//	  - 0.4 when the node is on any cycle
//	  - 0.1 per depth level, capped at 0.3
//	  - 0.03 per direct dependency, capped at 0.15
//	  - 0.03 per direct dependent, capped at 0.15
//	and is clamped to 1.0. Unknown nodes score 0 across the board.
//
// Inputs:
//
//	name - The node to score.
//	cyclic - The set of node names on at least one cycle, as computed by
//	  CyclicNodes. Passed in so one cycle enumeration serves many scores.
func (g *Graph) RiskFor(name string, cyclic map[string]struct{}) Risk {
	if !g.Has(name) {
		return Risk{}
	}

	_, circular := cyclic[name]

	r := Risk{
		Circular:   circular,
		Depth:      g.Depth(name),
		Direct:     len(g.Outgoing(name)),
		Dependents: len(g.Incoming(name)),
	}

	score := 0.0
	if r.Circular {
		score += circularRiskWeight
	}
	score += capped(float64(r.Depth)*depthRiskPerLevel, depthRiskCap)
	score += capped(float64(r.Direct)*fanRiskPerEdge, fanRiskCap)
	score += capped(float64(r.Dependents)*fanRiskPerEdge, fanRiskCap)

	if score > 1.0 {
		score = 1.0
	}
	r.Score = score

	return r
}

// CyclicNodes returns the set of node names that lie on at least one
// elementary cycle.
func (g *Graph) CyclicNodes() map[string]struct{} {
	nodes := make(map[string]struct{})
	for _, cycle := range g.Cycles() {
		for _, name := range cycle {
			nodes[name] = struct{}{}
		}
	}
	return nodes
}

func capped(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	return v
}
