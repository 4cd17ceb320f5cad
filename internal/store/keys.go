package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/flowledger/internal/ir"
)

// keySep joins the two halves of a partition key.
const keySep = ":"

// FactorKey is the factors key "{entity}:{prime}".
func FactorKey(entity uint64, prime ir.Prime) string {
	return strconv.FormatUint(entity, 10) + keySep + strconv.FormatUint(uint64(prime), 10)
}

// PostingKey is the postings key "{prime}:{entity}".
func PostingKey(prime ir.Prime, entity uint64) string {
	return strconv.FormatUint(uint64(prime), 10) + keySep + strconv.FormatUint(entity, 10)
}

// EntityPrefix selects every factors key of one entity.
func EntityPrefix(entity uint64) string {
	return strconv.FormatUint(entity, 10) + keySep
}

// PrimePrefix selects every postings key of one prime.
func PrimePrefix(prime ir.Prime) string {
	return strconv.FormatUint(uint64(prime), 10) + keySep
}

// ParseFactorKey splits a factors key.
func ParseFactorKey(key string) (entity uint64, prime ir.Prime, err error) {
	left, right, ok := strings.Cut(key, keySep)
	if !ok {
		return 0, 0, fmt.Errorf("malformed factors key %q", key)
	}
	entity, err = strconv.ParseUint(left, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed factors key %q: %w", key, err)
	}
	p, err := strconv.ParseUint(right, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed factors key %q: %w", key, err)
	}
	return entity, ir.Prime(p), nil
}

// ParsePostingKey splits a postings key.
func ParsePostingKey(key string) (prime ir.Prime, entity uint64, err error) {
	left, right, ok := strings.Cut(key, keySep)
	if !ok {
		return 0, 0, fmt.Errorf("malformed postings key %q", key)
	}
	p, err := strconv.ParseUint(left, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed postings key %q: %w", key, err)
	}
	entity, err = strconv.ParseUint(right, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed postings key %q: %w", key, err)
	}
	return ir.Prime(p), entity, nil
}

// EncodeExponent renders exp as decimal text, "-" prefixed when negative.
func EncodeExponent(exp int32) []byte {
	return strconv.AppendInt(nil, int64(exp), 10)
}

// DecodeExponent parses a stored exponent.
func DecodeExponent(raw []byte) (int32, error) {
	v, err := strconv.ParseInt(string(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("decode exponent %q: %w", raw, err)
	}
	return int32(v), nil
}
