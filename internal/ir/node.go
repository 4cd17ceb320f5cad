package ir

import (
	"errors"
	"fmt"
)

// ErrInvalidNode is returned when a node index falls outside 0..7.
var ErrInvalidNode = errors.New("invalid node")

// Node is one of the eight flow states S0..S7.
//
// The parity of a node's index decides flow-rule eligibility: S0, S2, S4 and
// S6 are even; S1, S3, S5 and S7 are odd.
type Node uint8

const (
	S0 Node = iota
	S1
	S2
	S3
	S4
	S5
	S6
	S7
)

// NodeCount is the size of the node universe.
const NodeCount = 8

// Nodes lists every node in index order.
var Nodes = [NodeCount]Node{S0, S1, S2, S3, S4, S5, S6, S7}

// NodeFromIndex converts a raw index into a Node.
// Fails with ErrInvalidNode for anything outside 0..7.
func NodeFromIndex(i int) (Node, error) {
	if i < 0 || i >= NodeCount {
		return 0, fmt.Errorf("%w: %d", ErrInvalidNode, i)
	}
	return Node(i), nil
}

// Index returns the node's position in 0..7.
func (n Node) Index() int {
	return int(n)
}

// Valid reports whether n is one of S0..S7.
func (n Node) Valid() bool {
	return n < NodeCount
}

// IsEven reports whether the node index is even.
func (n Node) IsEven() bool {
	return n%2 == 0
}

func (n Node) String() string {
	if !n.Valid() {
		return fmt.Sprintf("Node(%d)", uint8(n))
	}
	return fmt.Sprintf("S%d", uint8(n))
}
