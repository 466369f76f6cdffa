package ledger

import "sort"

// Read-only projections over Store state and the event log. None of these
// triggers a mutation; all return copies safe to retain after the call.

// Stats summarises the ledger for overview endpoints.
type Stats struct {
	Identities   int    `json:"identities"`
	Grants       int    `json:"grants"`
	Attestations int    `json:"attestations"`
	Events       uint64 `json:"events"`
}

// EventFilter narrows an Events query. Zero-valued fields match everything;
// ToSeq of 0 means "through the latest event".
type EventFilter struct {
	Kind      EventKind
	Principal Principal // matches any principal field of the event
	FromSeq   uint64
	ToSeq     uint64
}

func (f EventFilter) matches(e *Event) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.FromSeq != 0 && e.Seq < f.FromSeq {
		return false
	}
	if f.ToSeq != 0 && e.Seq > f.ToSeq {
		return false
	}
	if f.Principal != "" {
		switch f.Principal {
		case e.Owner, e.Grantor, e.Grantee, e.Verifier, e.Subject:
		default:
			return false
		}
	}
	return true
}

// GetIdentity returns a copy of owner's identity, or ErrNotFound.
func (s *Store) GetIdentity(owner Principal) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.identities[owner]
	if !ok {
		return nil, ErrNotFound
	}
	return id.clone(), nil
}

// VerificationStatus returns owner's status for one category. A category
// that was never set reads as StatusPending. An owner with no identity at
// all is ErrNotFound.
func (s *Store) VerificationStatus(owner Principal, category VerificationCategory) (VerificationStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.identities[owner]
	if !ok {
		return StatusPending, ErrNotFound
	}
	rec, ok := id.Verification[category]
	if !ok {
		return StatusPending, nil
	}
	return rec.Status, nil
}

// CheckAccess is HasAccess evaluated at the Store's current clock reading.
func (s *Store) CheckAccess(grantee, grantor Principal) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasAccessLocked(grantee, grantor, s.clock().UTC())
}

// VerificationHistory returns owner's verification-update events in the
// order they were recorded.
func (s *Store) VerificationHistory(owner Principal) []Event {
	return s.Events(EventFilter{Kind: EventVerificationUpdated, Principal: owner})
}

// ActiveGrants returns grantor's grants that are active and unexpired at the
// current clock reading, ordered by grantee.
func (s *Store) ActiveGrants(grantor Principal) []AccessGrant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock().UTC()
	var out []AccessGrant
	for key, g := range s.grants {
		if key.grantor == grantor && g.allows(now) {
			out = append(out, *g.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Grantee < out[j].Grantee })
	return out
}

// AttestationsFor returns all attestations naming subject, in insertion
// order.
func (s *Store) AttestationsFor(subject Principal) []Attestation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Attestation
	for _, a := range s.attestations {
		if a.Subject == subject {
			out = append(out, a)
		}
	}
	return out
}

// Events returns the events matching filter, in sequence order.
func (s *Store) Events(filter EventFilter) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for i := range s.events {
		if filter.matches(&s.events[i]) {
			out = append(out, s.events[i])
		}
	}
	return out
}

// Stats returns entity counts and the current event sequence number.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Identities:   len(s.identities),
		Grants:       len(s.grants),
		Attestations: len(s.attestations),
		Events:       s.seq,
	}
}

// VerifyEvents walks the full event log and checks sequence continuity and
// hash-chain consistency. Returns nil if the log is intact.
func (s *Store) VerifyEvents() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return verifyChain(s.events)
}
