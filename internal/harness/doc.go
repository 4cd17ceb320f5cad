// Package harness runs ledger scenarios described in YAML.
//
// A scenario is a sequence of anchor batches with optional per-batch
// expectations, followed by assertions on the final store and event log.
// Every scenario runs against a fresh in-memory store with a fixed clock and
// fixed batch ids, so the trace it produces is byte-for-byte reproducible and
// can be compared against a golden file.
//
// Example:
//
//	name: basic_move
//	description: prime 3 moves from S1 to S2 over the whitelist
//	clock_millis: 1700000000000
//	batches:
//	  - entity: 1
//	    commands:
//	      - {prime: 3, target: 2}
//	    expect:
//	      events: 1
//	assertions:
//	  - type: exponent
//	    entity: 1
//	    prime: 3
//	    value: 2
//
// Assertion types:
//   - exponent: factors value of (entity, prime), home index when absent
//   - posting: postings value of (prime, entity); absent fails
//   - no_entry: (entity, prime) has no stored exponent
//   - event_count: number of events in the log, failed batches included
//   - centroid_flips: number of logged events routed via the centroid
package harness
