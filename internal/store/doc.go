// Package store provides the embedded ordered key-value store behind the
// ledger.
//
// The store has two partitions updated together:
//   - factors:  "{entity}:{prime}" → exponent
//   - postings: "{prime}:{entity}" → exponent (inverted index)
//
// Keys and values are UTF-8 text; values are the decimal exponent with a "-"
// prefix when negative and no padding.
//
// # Atomicity
//
// Writes are staged in a Batch and applied by one Commit. After a successful
// commit, factors["{e}:{p}"] == postings["{p}:{e}"] for every staged pair.
//
// # Backends
//
//   - badger (default): BadgerDB rooted at the store directory; each partition
//     is a "<partition>/" key prefix; Commit is one transaction.
//   - sqlite: one WITHOUT ROWID table per partition in "ledger.db";
//     WAL mode, 5-second busy timeout; Commit is one transaction.
//
// The store keeps no cache; every read goes to the backend.
package store
