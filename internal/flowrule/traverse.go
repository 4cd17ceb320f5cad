package flowrule

import (
	"fmt"

	"github.com/roach88/flowledger/internal/centroid"
	"github.com/roach88/flowledger/internal/ir"
)

// Traverse depth bounds.
const (
	MinDepth = 1
	MaxDepth = 10
)

// Step is one edge of a traversal.
type Step struct {
	Src         ir.Node `json:"src"`
	Dst         ir.Node `json:"dst"`
	ViaCentroid bool    `json:"via_c"`
	Label       string  `json:"label"`
}

// Path is the result of a traversal.
type Path struct {
	Steps         []Step         `json:"edges"`
	CentroidFlips int            `json:"centroid_flips"`
	FinalCentroid centroid.Digit `json:"final_centroid"`
}

// Traverse walks depth steps from start, always taking the lowest-index legal
// outbound edge that leaves the current node. Self-loops are never taken.
func Traverse(start ir.Node, depth int, seed centroid.Digit) (Path, error) {
	if !start.Valid() {
		return Path{}, fmt.Errorf("traverse: %w: %d", ir.ErrInvalidNode, uint8(start))
	}
	if depth < MinDepth || depth > MaxDepth {
		return Path{}, fmt.Errorf("traverse: depth %d outside %d..%d", depth, MinDepth, MaxDepth)
	}

	path := Path{Steps: make([]Step, 0, depth), FinalCentroid: seed}
	current := start
	for i := 0; i < depth; i++ {
		dst, ok := nextHop(current)
		if !ok {
			return Path{}, fmt.Errorf("traverse: no legal outbound edge from %s", current)
		}
		via := ViaCentroid(current, dst)
		path.Steps = append(path.Steps, Step{
			Src:         current,
			Dst:         dst,
			ViaCentroid: via,
			Label:       Label(current, dst),
		})
		if via {
			path.FinalCentroid = centroid.Flip(path.FinalCentroid)
			path.CentroidFlips++
		}
		current = dst
	}
	return path, nil
}

func nextHop(src ir.Node) (ir.Node, bool) {
	for _, dst := range ir.Nodes {
		if dst != src && TransitionAllowed(src, dst) {
			return dst, true
		}
	}
	return 0, false
}
