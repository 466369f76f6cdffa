package ledger_test

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/veristry/veristry/internal/ledger"
	"go.uber.org/zap"
)

// populated builds a store with every entity kind represented, including a
// revoked grant and an expired one.
func populated(t *testing.T) *ledger.Store {
	t.Helper()
	st, _ := newStoreAt(t, base)

	for i, p := range []ledger.Principal{alice, bob, carol} {
		if err := st.CreateIdentity(p, digest(byte(i+1))); err != nil {
			t.Fatal(err)
		}
	}
	_ = st.UpdateVerification(alice, ledger.GovernmentID, ledger.StatusVerified)
	_ = st.UpdateVerification(alice, ledger.Biometric, ledger.StatusRejected)
	_ = st.GrantAccess(alice, bob, base.Add(time.Hour), []ledger.DataType{"name", "dob"})
	_ = st.GrantAccess(bob, carol, base.Add(-time.Minute), nil) // already expired
	_ = st.GrantAccess(carol, alice, base.Add(time.Hour), nil)
	_ = st.RevokeAccess(carol, alice)
	if _, err := st.RecordAttestation(bob, alice, digest(9), "dob"); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestSnapshot_roundTrip(t *testing.T) {
	st := populated(t)
	snap := st.Snapshot()

	restored := ledger.NewStore(zap.NewNop())
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if !reflect.DeepEqual(restored.Snapshot().Identities, snap.Identities) {
		t.Error("identities differ after restore")
	}
	if !reflect.DeepEqual(restored.Snapshot().Grants, snap.Grants) {
		t.Error("grants differ after restore")
	}
	if !reflect.DeepEqual(restored.Snapshot().Attestations, snap.Attestations) {
		t.Error("attestations differ after restore")
	}
	if !reflect.DeepEqual(restored.Snapshot().Events, snap.Events) {
		t.Error("events differ after restore")
	}
	if restored.Snapshot().Seq != snap.Seq {
		t.Error("sequence counter not preserved")
	}
}

func TestSnapshot_jsonRoundTrip(t *testing.T) {
	st := populated(t)
	snap := st.Snapshot()

	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	var decoded ledger.Snapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}

	restored := ledger.NewStore(zap.NewNop())
	if err := restored.Restore(&decoded); err != nil {
		t.Fatalf("restore decoded snapshot: %v", err)
	}
	if err := restored.VerifyEvents(); err != nil {
		t.Errorf("event chain broken after JSON round trip: %v", err)
	}
	if !reflect.DeepEqual(restored.Snapshot().Grants, snap.Grants) {
		t.Error("grants differ after JSON round trip")
	}
	if !reflect.DeepEqual(restored.Snapshot().Identities, snap.Identities) {
		t.Error("identities differ after JSON round trip")
	}
}

func TestSnapshot_semanticsSurviveRestore(t *testing.T) {
	st := populated(t)

	restored := ledger.NewStore(zap.NewNop())
	restored.SetClock(func() time.Time { return base.Add(time.Minute) })
	if err := restored.Restore(st.Snapshot()); err != nil {
		t.Fatal(err)
	}

	// The live grant still answers; the revoked and expired ones do not.
	if !restored.CheckAccess(bob, alice) {
		t.Error("live grant lost across restore")
	}
	if restored.CheckAccess(carol, bob) {
		t.Error("expired grant resurrected by restore")
	}
	if restored.CheckAccess(alice, carol) {
		t.Error("revoked grant resurrected by restore")
	}

	// Create-once still holds, and new attestation IDs continue the sequence.
	if err := restored.CreateIdentity(alice, digest(7)); err == nil {
		t.Error("restore forgot an existing identity")
	}
	id, err := restored.RecordAttestation(bob, alice, digest(8), "name")
	if err != nil {
		t.Fatal(err)
	}
	if id != 2 {
		t.Errorf("attestation id after restore: got %d, want 2", id)
	}
	if err := restored.VerifyEvents(); err != nil {
		t.Errorf("event chain broken after post-restore mutation: %v", err)
	}
}

func TestRestore_nil(t *testing.T) {
	st := ledger.NewStore(zap.NewNop())
	if err := st.Restore(nil); err == nil {
		t.Error("nil snapshot accepted")
	}
}
