package ledger

import (
	"encoding/hex"
	"fmt"
	"time"
)

// Principal is an opaque identifier for a participant: an identity owner, a
// third party holding delegated access, or a verifier recording attestations.
// The ledger treats it purely as a comparable lookup key; it carries no
// assumption about any particular address or key-derivation scheme.
type Principal string

// DataType is a caller-defined tag naming a class of personal data
// (e.g. "name", "dob"). The ledger stores and returns these tags but never
// interprets them.
type DataType string

// VerificationCategory identifies one axis of identity verification.
// The named constants match the wire encoding; any value is a legal map key.
type VerificationCategory uint8

const (
	GovernmentID VerificationCategory = iota
	Biometric
	Address
)

func (c VerificationCategory) String() string {
	switch c {
	case GovernmentID:
		return "government_id"
	case Biometric:
		return "biometric"
	case Address:
		return "address"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// VerificationStatus is the outcome of a verification check. Records start
// absent, which readers treat as StatusPending. Transitions are unordered:
// any status may overwrite any other.
type VerificationStatus uint8

const (
	StatusPending VerificationStatus = iota
	StatusVerified
	StatusRejected
)

func (s VerificationStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusVerified:
		return "verified"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Digest is a 32-byte content hash of off-ledger data. The ledger stores and
// compares digests but never inspects or verifies the data behind them.
type Digest [32]byte

// ParseDigest decodes a 64-character hex string into a Digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("parse digest: %w", err)
	}
	if len(b) != len(d) {
		return d, fmt.Errorf("parse digest: want %d bytes, got %d", len(d), len(b))
	}
	copy(d[:], b)
	return d, nil
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText implements encoding.TextMarshaler; digests serialise as hex.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock supplies the current time to the Store. Production code uses
// time.Now; tests inject a fixed or stepped clock.
type Clock func() time.Time
