// Package registry binds each prime of the fixed universe to its home node.
//
// The mapping is static and one-to-one; every lookup is pure and constant
// time. Values outside the universe report false rather than an error so
// callers decide how hard to fail.
package registry

import "github.com/roach88/flowledger/internal/ir"

// PrimeToNode returns the home node of p.
func PrimeToNode(p ir.Prime) (ir.Node, bool) {
	switch p {
	case 2:
		return ir.S0, true
	case 3:
		return ir.S1, true
	case 5:
		return ir.S2, true
	case 7:
		return ir.S3, true
	case 11:
		return ir.S4, true
	case 13:
		return ir.S5, true
	case 17:
		return ir.S6, true
	case 19:
		return ir.S7, true
	}
	return 0, false
}

// NodeToPrime returns the prime whose home is n.
func NodeToPrime(n ir.Node) (ir.Prime, bool) {
	if !n.Valid() {
		return 0, false
	}
	return ir.Primes[n], true
}

// HomeIndex returns the index of p's home node, which is also the exponent
// an entity holds for p before any move.
func HomeIndex(p ir.Prime) (int, bool) {
	n, ok := PrimeToNode(p)
	if !ok {
		return 0, false
	}
	return n.Index(), true
}

// Known reports whether p belongs to the universe.
func Known(p ir.Prime) bool {
	_, ok := PrimeToNode(p)
	return ok
}
