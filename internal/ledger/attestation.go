package ledger

import "time"

// Attestation records that a verifier checked a zero-knowledge proof digest
// for a subject while holding valid access. Entries are immutable and
// append-only; ID is the 1-based insertion sequence number. Verified is true
// for every stored entry — rejected attempts never produce a record.
type Attestation struct {
	ID          int64     `json:"id"`
	Verifier    Principal `json:"verifier"`
	Subject     Principal `json:"subject"`
	ProofDigest Digest    `json:"proof_digest"`
	DataType    DataType  `json:"data_type"`
	RecordedAt  time.Time `json:"recorded_at"`
	Verified    bool      `json:"verified"`
}
