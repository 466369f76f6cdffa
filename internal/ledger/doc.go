// Package ledger implements the identity and access-control ledger: the
// authoritative record of principal identities, per-category verification
// outcomes, time-bounded access grants, and append-only zero-knowledge-proof
// attestations.
//
// The Store is a single-writer in-memory state machine. Every mutation is
// validated against current state, applied atomically under one lock, and
// mirrored into a hash-chained event log. Grants expire lazily: expiry is a
// comparison against the supplied clock at check time, never a background
// sweep. Persistence is best-effort replication of whole-state snapshots —
// a mutation that succeeded in memory is authoritative even if the snapshot
// write later fails.
package ledger
