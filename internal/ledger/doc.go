// Package ledger implements the flowledger batch anchor engine.
//
// ARCHITECTURE:
//
// One AnchorBatch call is synchronous and single-threaded:
//  1. One timestamp is read from the injected Clock; the centroid digit is
//     seeded from it and threaded through the call, never kept globally.
//  2. Each command is resolved, validated against the flow rules from the
//     prime's home node, MSD-encoded, and appended to the event log.
//  3. Exponent writes for both partitions are staged in one store.Batch and
//     committed atomically at the end.
//
// CRITICAL PATTERNS:
//
// Log before stage: an event is appended to the log strictly before its
// exponent write is staged. A failure after some appends leaves log entries
// without committed store writes; nothing reconciles them.
//
// Read committed state: the current exponent is always read from the store,
// never from writes staged earlier in the same batch.
//
// No hidden state: the Ledger keeps no cache of exponents between calls.
package ledger
