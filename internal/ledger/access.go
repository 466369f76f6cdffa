package ledger

import "time"

// HasAccess reports whether grantee holds usable delegated access from
// grantor at instant now: a grant exists for the ordered (grantor, grantee)
// pair, it has not been revoked, and it has not yet expired. The function is
// pure over current state plus the supplied clock reading.
//
// The grant's declared AllowedDataTypes play no part in the answer. That
// mirrors the contract this ledger replicates; enforcing scope here would
// change observable behaviour, so the gap is documented rather than fixed.
func (s *Store) HasAccess(grantee, grantor Principal, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasAccessLocked(grantee, grantor, now)
}

// hasAccessLocked is HasAccess for callers already holding the lock, so that
// mutation paths (RecordAttestation) evaluate access atomically with their
// own state check.
func (s *Store) hasAccessLocked(grantee, grantor Principal, now time.Time) bool {
	g, ok := s.grants[grantKey{grantor, grantee}]
	if !ok {
		return false
	}
	return g.allows(now)
}
