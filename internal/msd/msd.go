// Package msd encodes signed integers as modified signed digits: balanced
// radix-4 with every digit in {-2,-1,0,1,2}.
//
// Digits are stored least-significant first. The encoding of a delta is the
// correctness certificate the ledger attaches to each event, so Decode must
// reproduce the input exactly.
package msd

// Digit bounds.
const (
	MinDigit = -2
	MaxDigit = 2
	Radix    = 4
)

// Digits is an MSD sequence, least-significant digit first.
type Digits []int8

// Encode converts n into its MSD digit sequence. Zero encodes as [0].
func Encode(n int64) Digits {
	if n == 0 {
		return Digits{0}
	}

	mag := uint64(n)
	if n < 0 {
		mag = -mag
	}

	out := make(Digits, 0, 8)
	for mag != 0 {
		rem := int8(mag & 3)
		mag >>= 2
		if rem > MaxDigit {
			out = append(out, rem-Radix)
			mag++
			continue
		}
		out = append(out, rem)
	}

	if n < 0 {
		for i := range out {
			out[i] = -out[i]
		}
	}
	return normalize(out)
}

// normalize propagates any residual carry so every digit stays in range and
// strips trailing zeros down to a single digit.
func normalize(d Digits) Digits {
	var carry int8
	for i := range d {
		sum := d[i] + carry
		switch {
		case sum > MaxDigit:
			d[i] = sum - Radix
			carry = 1
		case sum < MinDigit:
			d[i] = sum + Radix
			carry = -1
		default:
			d[i] = sum
			carry = 0
		}
	}
	if carry != 0 {
		d = append(d, carry)
	}
	for len(d) > 1 && d[len(d)-1] == 0 {
		d = d[:len(d)-1]
	}
	return d
}

// Decode returns Σ d[i]·4^i.
func Decode(d Digits) int64 {
	var sum, weight int64 = 0, 1
	for _, digit := range d {
		sum += int64(digit) * weight
		weight *= Radix
	}
	return sum
}

// Int is Decode as a method.
func (d Digits) Int() int64 {
	return Decode(d)
}

// Valid reports whether every digit is in range and the sequence carries no
// trailing zero beyond the first digit.
func (d Digits) Valid() bool {
	if len(d) == 0 {
		return false
	}
	for _, digit := range d {
		if digit < MinDigit || digit > MaxDigit {
			return false
		}
	}
	return len(d) == 1 || d[len(d)-1] != 0
}
