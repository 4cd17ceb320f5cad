package ir

import "strconv"

// Prime identifies one of the eight tracked quantities.
type Prime uint32

// Primes is the canonical prime universe in home-node order:
// Primes[i] lives on node Si.
var Primes = [NodeCount]Prime{2, 3, 5, 7, 11, 13, 17, 19}

func (p Prime) String() string {
	return strconv.FormatUint(uint64(p), 10)
}

// Command asks the ledger to move a prime's exponent to a target node.
//
// Target is a raw node index. It is only checked against 0..7 once the
// ledger decides the command is not a no-op.
type Command struct {
	Prime  Prime `json:"prime" yaml:"prime"`
	Target uint8 `json:"target" yaml:"target"`
}

// Factor is one (prime, exponent) pair of an entity.
type Factor struct {
	Prime    Prime `json:"prime"`
	Exponent int32 `json:"exponent"`
}

// Posting is one (entity, exponent) pair of the by-prime inverted index.
type Posting struct {
	Entity   uint64 `json:"entity"`
	Exponent int32  `json:"exponent"`
}
