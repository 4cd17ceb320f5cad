// Package flowrule decides which direct node-to-node moves are legal.
//
// Rules, in precedence order:
//  1. Self-loops are always allowed (persistence).
//  2. An even node may not move directly to an odd node unless the edge is
//     whitelisted (forbidden bypass).
//  3. Whitelisted edges are always allowed.
//  4. Anything else is allowed only between nodes of matching parity.
//
// Every function is pure and safe for concurrent use.
package flowrule

import "github.com/roach88/flowledger/internal/ir"

// Edge is a directed move between two nodes.
type Edge struct {
	Src ir.Node `json:"src"`
	Dst ir.Node `json:"dst"`
}

// Whitelisted reports whether src→dst is one of the named physical processes:
// work (S1→S2, S5→S6), heat dump (S3→S0, S7→S4) or electric dissipation (S1→S0).
func Whitelisted(src, dst ir.Node) bool {
	switch (Edge{src, dst}) {
	case Edge{ir.S1, ir.S2}, Edge{ir.S5, ir.S6},
		Edge{ir.S3, ir.S0}, Edge{ir.S7, ir.S4},
		Edge{ir.S1, ir.S0}:
		return true
	}
	return false
}

// forbiddenBypass is an even→odd edge that no process sanctions.
func forbiddenBypass(src, dst ir.Node) bool {
	return src.IsEven() && !dst.IsEven() && !Whitelisted(src, dst)
}

// TransitionAllowed reports whether src may move directly to dst.
func TransitionAllowed(src, dst ir.Node) bool {
	if src == dst {
		return true
	}
	if forbiddenBypass(src, dst) {
		return false
	}
	return Whitelisted(src, dst) || src.IsEven() == dst.IsEven()
}

// BatchAllowed applies TransitionAllowed to every edge, preserving order.
func BatchAllowed(edges []Edge) []bool {
	out := make([]bool, len(edges))
	for i, e := range edges {
		out[i] = TransitionAllowed(e.Src, e.Dst)
	}
	return out
}

// ViaCentroid reports whether a move would be routed through the virtual
// centroid: even source, odd destination, not whitelisted.
func ViaCentroid(src, dst ir.Node) bool {
	return forbiddenBypass(src, dst)
}

// Edge labels.
const (
	LabelPersistence         = "persistence"
	LabelWork                = "work"
	LabelHeatDump            = "heat-dump"
	LabelElectricDissipation = "electric-dissipation"
	LabelMediated            = "mediated"
)

// Label names the process an edge represents.
func Label(src, dst ir.Node) string {
	if src == dst {
		return LabelPersistence
	}
	switch (Edge{src, dst}) {
	case Edge{ir.S1, ir.S2}, Edge{ir.S5, ir.S6}:
		return LabelWork
	case Edge{ir.S3, ir.S0}, Edge{ir.S7, ir.S4}:
		return LabelHeatDump
	case Edge{ir.S1, ir.S0}:
		return LabelElectricDissipation
	}
	return LabelMediated
}
