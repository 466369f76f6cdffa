package ledger

import "time"

// VerificationRecord is the stored outcome for one verification category.
type VerificationRecord struct {
	Status    VerificationStatus `json:"status"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Identity binds a principal to the digest of its off-ledger personal data
// and to per-category verification outcomes. Created exactly once per owner;
// only the verification map mutates afterwards.
type Identity struct {
	Owner        Principal                                   `json:"owner"`
	DataDigest   Digest                                      `json:"data_digest"`
	CreatedAt    time.Time                                   `json:"created_at"`
	Verification map[VerificationCategory]VerificationRecord `json:"verification"`
}

// clone returns a deep copy safe to hand to readers outside the Store lock.
func (id *Identity) clone() *Identity {
	cp := *id
	cp.Verification = make(map[VerificationCategory]VerificationRecord, len(id.Verification))
	for k, v := range id.Verification {
		cp.Verification[k] = v
	}
	return &cp
}
