package ledger

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// MutateHook is invoked after every accepted mutation, outside the Store
// lock, with the event that mirrors it. Hooks hand the event to persistence
// triggers and external sinks; they must not call back into mutations.
type MutateHook func(Event)

// Store holds the canonical ledger state. All mutations execute under a
// single write lock so check-then-act sequences are race-free; readers take
// a shared lock and observe either the pre- or post-mutation state, never a
// torn one. The Store performs no I/O of its own.
type Store struct {
	mu     sync.RWMutex
	clock  Clock
	logger *zap.Logger

	identities   map[Principal]*Identity
	grants       map[grantKey]*AccessGrant
	attestations []Attestation
	events       []Event
	seq          uint64

	onMutate MutateHook
}

// NewStore creates an empty Store using the wall clock.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		clock:      func() time.Time { return time.Now().UTC() },
		logger:     logger,
		identities: make(map[Principal]*Identity),
		grants:     make(map[grantKey]*AccessGrant),
	}
}

// SetClock replaces the Store's time source. Intended for tests.
func (s *Store) SetClock(c Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c != nil {
		s.clock = c
	}
}

// SetOnMutate configures the after-mutate hook. Pass nil to disable.
func (s *Store) SetOnMutate(h MutateHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMutate = h
}

// CreateIdentity records a new identity for owner. Exactly one identity may
// ever exist per owner; a second create fails with ErrAlreadyExists
// regardless of digest.
func (s *Store) CreateIdentity(owner Principal, dataDigest Digest) error {
	s.mu.Lock()
	if _, ok := s.identities[owner]; ok {
		s.mu.Unlock()
		return ErrAlreadyExists
	}

	now := s.clock().UTC()
	s.identities[owner] = &Identity{
		Owner:        owner,
		DataDigest:   dataDigest,
		CreatedAt:    now,
		Verification: make(map[VerificationCategory]VerificationRecord),
	}
	ev := s.appendEvent(Event{
		Kind:      EventIdentityCreated,
		Timestamp: now,
		Owner:     owner,
	})
	s.mu.Unlock()

	s.logger.Debug("identity created", zap.String("owner", string(owner)))
	s.notify(ev)
	return nil
}

// UpdateVerification sets the verification record for one category of an
// existing identity. Any status may overwrite any other; there is no
// enforced transition order.
func (s *Store) UpdateVerification(owner Principal, category VerificationCategory, status VerificationStatus) error {
	s.mu.Lock()
	id, ok := s.identities[owner]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}

	now := s.clock().UTC()
	id.Verification[category] = VerificationRecord{Status: status, UpdatedAt: now}
	cat, st := category, status
	ev := s.appendEvent(Event{
		Kind:      EventVerificationUpdated,
		Timestamp: now,
		Owner:     owner,
		Category:  &cat,
		Status:    &st,
	})
	s.mu.Unlock()

	s.logger.Debug("verification updated",
		zap.String("owner", string(owner)),
		zap.Stringer("category", category),
		zap.Stringer("status", status),
	)
	s.notify(ev)
	return nil
}

// GrantAccess creates or overwrites the grant from grantor to grantee. The
// grantor must have an identity; the grantee need not. expiresAt is stored
// as given — a timestamp already in the past yields an inert,
// immediately-expired grant rather than an error.
func (s *Store) GrantAccess(grantor, grantee Principal, expiresAt time.Time, dataTypes []DataType) error {
	s.mu.Lock()
	if _, ok := s.identities[grantor]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}

	now := s.clock().UTC()
	expiresAt = expiresAt.UTC()
	s.grants[grantKey{grantor, grantee}] = &AccessGrant{
		Grantor:          grantor,
		Grantee:          grantee,
		Active:           true,
		ExpiresAt:        expiresAt,
		AllowedDataTypes: normalizeDataTypes(dataTypes),
		GrantedAt:        now,
	}
	exp := expiresAt
	ev := s.appendEvent(Event{
		Kind:      EventAccessGranted,
		Timestamp: now,
		Grantor:   grantor,
		Grantee:   grantee,
		ExpiresAt: &exp,
		DataTypes: normalizeDataTypes(dataTypes),
	})
	s.mu.Unlock()

	s.logger.Debug("access granted",
		zap.String("grantor", string(grantor)),
		zap.String("grantee", string(grantee)),
		zap.Time("expires_at", expiresAt),
	)
	s.notify(ev)
	return nil
}

// RevokeAccess deactivates the grant from grantor to grantee. The record is
// kept with Active=false so audit history can tell "revoked" apart from
// "never existed". Revoking a pair with no grant at all fails ErrNoSuchGrant.
func (s *Store) RevokeAccess(grantor, grantee Principal) error {
	s.mu.Lock()
	g, ok := s.grants[grantKey{grantor, grantee}]
	if !ok {
		s.mu.Unlock()
		return ErrNoSuchGrant
	}

	now := s.clock().UTC()
	g.Active = false
	ev := s.appendEvent(Event{
		Kind:      EventAccessRevoked,
		Timestamp: now,
		Grantor:   grantor,
		Grantee:   grantee,
	})
	s.mu.Unlock()

	s.logger.Debug("access revoked",
		zap.String("grantor", string(grantor)),
		zap.String("grantee", string(grantee)),
	)
	s.notify(ev)
	return nil
}

// RecordAttestation appends an attestation that verifier checked proofDigest
// for subject. The subject must have an identity and the verifier must hold
// an active, unexpired grant from the subject at call time. The declared
// AllowedDataTypes of that grant are not checked against dataType. Returns
// the attestation's sequence ID.
func (s *Store) RecordAttestation(verifier, subject Principal, proofDigest Digest, dataType DataType) (int64, error) {
	s.mu.Lock()
	if _, ok := s.identities[subject]; !ok {
		s.mu.Unlock()
		return 0, ErrNotFound
	}

	now := s.clock().UTC()
	if !s.hasAccessLocked(verifier, subject, now) {
		s.mu.Unlock()
		return 0, ErrAccessDenied
	}

	att := Attestation{
		ID:          int64(len(s.attestations)) + 1,
		Verifier:    verifier,
		Subject:     subject,
		ProofDigest: proofDigest,
		DataType:    dataType,
		RecordedAt:  now,
		Verified:    true,
	}
	s.attestations = append(s.attestations, att)
	ev := s.appendEvent(Event{
		Kind:        EventAttestationRecorded,
		Timestamp:   now,
		Verifier:    verifier,
		Subject:     subject,
		DataType:    dataType,
		ProofDigest: proofDigest.String(),
	})
	s.mu.Unlock()

	s.logger.Debug("attestation recorded",
		zap.Int64("id", att.ID),
		zap.String("verifier", string(verifier)),
		zap.String("subject", string(subject)),
	)
	s.notify(ev)
	return att.ID, nil
}

// appendEvent assigns the next sequence number, chains the hash, and appends.
// Caller must hold the write lock.
func (s *Store) appendEvent(ev Event) Event {
	s.seq++
	ev.Seq = s.seq
	ev.PrevHash = GenesisHash
	if n := len(s.events); n > 0 {
		ev.PrevHash = s.events[n-1].Hash
	}
	ev.Hash = hashEvent(&ev)
	s.events = append(s.events, ev)
	return ev
}

func (s *Store) notify(ev Event) {
	s.mu.RLock()
	h := s.onMutate
	s.mu.RUnlock()
	if h != nil {
		h(ev)
	}
}
