package ledger

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Snapshot is the whole-state serialisation of a Store: every identity,
// every grant (including revoked and expired ones), the attestation log, the
// event log, and the monotonic sequence counter. Snapshot granularity is
// deliberately whole-state — there is no per-entity or delta format.
type Snapshot struct {
	SavedAt      time.Time      `json:"saved_at"`
	Seq          uint64         `json:"seq"`
	Identities   []*Identity    `json:"identities"`
	Grants       []*AccessGrant `json:"grants"`
	Attestations []Attestation  `json:"attestations"`
	Events       []Event        `json:"events"`
}

// Snapshot captures a deep, point-in-time copy of the Store. Slices are
// sorted by key so equal states serialise identically.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		SavedAt:      s.clock().UTC(),
		Seq:          s.seq,
		Identities:   make([]*Identity, 0, len(s.identities)),
		Grants:       make([]*AccessGrant, 0, len(s.grants)),
		Attestations: append([]Attestation(nil), s.attestations...),
		Events:       append([]Event(nil), s.events...),
	}
	for _, id := range s.identities {
		snap.Identities = append(snap.Identities, id.clone())
	}
	sort.Slice(snap.Identities, func(i, j int) bool {
		return snap.Identities[i].Owner < snap.Identities[j].Owner
	})
	for _, g := range s.grants {
		snap.Grants = append(snap.Grants, g.clone())
	}
	sort.Slice(snap.Grants, func(i, j int) bool {
		a, b := snap.Grants[i], snap.Grants[j]
		if a.Grantor != b.Grantor {
			return a.Grantor < b.Grantor
		}
		return a.Grantee < b.Grantee
	})
	return snap
}

// Restore replaces the Store's state with the snapshot's. Used once at
// startup, before the Store is shared; it still takes the lock so a late
// restore cannot tear concurrent readers.
func (s *Store) Restore(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("restore: nil snapshot")
	}
	if err := verifyChain(snap.Events); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	identities := make(map[Principal]*Identity, len(snap.Identities))
	for _, id := range snap.Identities {
		if _, ok := identities[id.Owner]; ok {
			return fmt.Errorf("restore: duplicate identity for %q", id.Owner)
		}
		cp := id.clone()
		if cp.Verification == nil {
			cp.Verification = make(map[VerificationCategory]VerificationRecord)
		}
		identities[id.Owner] = cp
	}
	grants := make(map[grantKey]*AccessGrant, len(snap.Grants))
	for _, g := range snap.Grants {
		grants[grantKey{g.Grantor, g.Grantee}] = g.clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities = identities
	s.grants = grants
	s.attestations = append([]Attestation(nil), snap.Attestations...)
	s.events = append([]Event(nil), snap.Events...)
	s.seq = snap.Seq

	s.logger.Info("ledger state restored",
		zap.Int("identities", len(identities)),
		zap.Int("grants", len(grants)),
		zap.Int("attestations", len(s.attestations)),
	)
	return nil
}
