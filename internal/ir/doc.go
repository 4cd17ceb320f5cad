// Package ir provides the domain types shared by every flowledger package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Node indices are 0..7; parity drives the flow rules
//   - Exponents are signed 32-bit and unbounded after updates
//   - All JSON tags use snake_case and LedgerEvent's field order is the log format
package ir
