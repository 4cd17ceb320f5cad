// Package centroid tracks the parity bit of the virtual ninth node.
//
// Moves that the flow rules deny directly but that may pass through the
// centroid flip this bit. The functions here are pure; the running digit for
// a batch lives with the caller.
package centroid

// Digit is the centroid parity bit, 0 or 1.
type Digit uint8

// Now seeds a digit from a millisecond timestamp.
func Now(tsMillis uint64) Digit {
	return Digit(tsMillis % 2)
}

// Flip returns the opposite digit.
func Flip(d Digit) Digit {
	return 1 - d&1
}
