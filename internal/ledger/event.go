package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// GenesisHash anchors the event hash chain: the first event's PrevHash equals
// this well-known constant (64 hex zeros).
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// EventKind names the mutation an event mirrors.
type EventKind string

const (
	EventIdentityCreated     EventKind = "identity_created"
	EventVerificationUpdated EventKind = "verification_updated"
	EventAccessGranted       EventKind = "access_granted"
	EventAccessRevoked       EventKind = "access_revoked"
	EventAttestationRecorded EventKind = "attestation_recorded"
)

// Event is the append-only mirror of one accepted mutation. Events exist for
// read projections and audit export only; the Store never consults them to
// decide whether a mutation is valid. Which principal fields are set depends
// on Kind. Category and Status are pointers because their zero values
// (GovernmentID, StatusPending) are meaningful.
//
// Each event records the SHA-256 of its predecessor, so tampering anywhere in
// the log is detectable via VerifyEvents.
type Event struct {
	Seq       uint64    `json:"seq"`
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	Owner    Principal `json:"owner,omitempty"`
	Grantor  Principal `json:"grantor,omitempty"`
	Grantee  Principal `json:"grantee,omitempty"`
	Verifier Principal `json:"verifier,omitempty"`
	Subject  Principal `json:"subject,omitempty"`

	Category    *VerificationCategory `json:"category,omitempty"`
	Status      *VerificationStatus   `json:"status,omitempty"`
	ExpiresAt   *time.Time            `json:"expires_at,omitempty"`
	DataTypes   []DataType            `json:"data_types,omitempty"`
	DataType    DataType              `json:"data_type,omitempty"`
	ProofDigest string                `json:"proof_digest,omitempty"`

	PrevHash string `json:"prev_hash"`
	Hash     string `json:"hash"`
}

// hashEvent computes a deterministic SHA-256 over an event's fields. Every
// string is length-prefixed and the data-type list carries its element
// count, so no value can bleed across a field boundary and collide with a
// differently-split event.
func hashEvent(e *Event) string {
	h := sha256.New()
	field := func(s string) {
		fmt.Fprintf(h, "%d:%s", len(s), s)
	}

	fmt.Fprintf(h, "%d:", e.Seq)
	field(string(e.Kind))
	field(e.Timestamp.Format(time.RFC3339Nano))
	field(string(e.Owner))
	field(string(e.Grantor))
	field(string(e.Grantee))
	field(string(e.Verifier))
	field(string(e.Subject))
	if e.Category != nil {
		fmt.Fprintf(h, "c%d:", *e.Category)
	}
	if e.Status != nil {
		fmt.Fprintf(h, "s%d:", *e.Status)
	}
	if e.ExpiresAt != nil {
		field(e.ExpiresAt.Format(time.RFC3339Nano))
	}
	fmt.Fprintf(h, "n%d:", len(e.DataTypes))
	for _, t := range e.DataTypes {
		field(string(t))
	}
	field(string(e.DataType))
	field(e.ProofDigest)
	field(e.PrevHash)
	return hex.EncodeToString(h.Sum(nil))
}

// verifyChain walks an event log and checks seq continuity and hash
// consistency. Returns nil if the chain is intact.
func verifyChain(events []Event) error {
	prevHash := GenesisHash
	for i := range events {
		e := &events[i]
		if e.Seq != uint64(i+1) {
			return fmt.Errorf("event %d has sequence %d, want %d", i, e.Seq, i+1)
		}
		if e.PrevHash != prevHash {
			return fmt.Errorf("hash chain broken at seq %d", e.Seq)
		}
		if e.Hash != hashEvent(e) {
			return fmt.Errorf("event %d has invalid hash", e.Seq)
		}
		prevHash = e.Hash
	}
	return nil
}
