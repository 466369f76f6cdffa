package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/veristry/veristry/pkg/client"
)

// ── Stub server ─────────────────────────────────────────────────────────

func stubLedgerServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}
		if req["client_id"] != "test-client" || req["client_secret"] != "s3cret" {
			http.Error(w, `{"error":"invalid client credentials"}`, http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "stub-token-abc",
			"token_type":   "bearer",
			"principal":    "0xa11ce",
		})
	})

	mux.HandleFunc("/api/v1/identities", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer stub-token-abc" {
			http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		if req["owner"] == "0xdupe" {
			http.Error(w, `{"error":"identity already exists"}`, http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"owner": req["owner"]})
	})

	mux.HandleFunc("/api/v1/identities/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if strings.HasSuffix(path, "/verification/0") {
			json.NewEncoder(w).Encode(map[string]any{
				"status":      "verified",
				"status_code": 1,
			})
			return
		}
		if strings.HasSuffix(path, "/history") {
			json.NewEncoder(w).Encode(map[string]any{
				"events": []map[string]any{
					{"seq": 2, "kind": "verification_updated", "category": 0, "status": 1,
						"timestamp": time.Now().UTC().Format(time.RFC3339Nano), "hash": "aa"},
				},
			})
			return
		}
		http.Error(w, `{"error":"identity not found"}`, http.StatusNotFound)
	})

	mux.HandleFunc("/api/v1/access/check", func(w http.ResponseWriter, r *http.Request) {
		granted := r.URL.Query().Get("grantee") == "0xb0b"
		json.NewEncoder(w).Encode(map[string]any{"access": granted})
	})

	mux.HandleFunc("/api/v1/access/grants/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"grants": []map[string]any{
				{"grantee": "0xb0b", "expires_at": time.Now().Add(time.Hour).Unix(),
					"allowed_data_types": []string{"government_id"}},
			},
		})
	})

	mux.HandleFunc("/api/v1/attestations", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		if req["verifier"] == "0xnogrant" {
			http.Error(w, `{"error":"access denied"}`, http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": 7})
	})

	return httptest.NewServer(mux)
}

// ── Tests ───────────────────────────────────────────────────────────────

func TestAuthenticate(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	if err := c.Authenticate(context.Background(), "test-client", "s3cret"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if c.Token() != "stub-token-abc" {
		t.Errorf("token: got %q", c.Token())
	}
}

func TestAuthenticate_badSecret(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	err := c.Authenticate(context.Background(), "test-client", "wrong")

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("status: got %d", apiErr.Status)
	}
	if apiErr.Message != "invalid client credentials" {
		t.Errorf("message: got %q", apiErr.Message)
	}
}

func TestCreateIdentity(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()

	c := client.New(srv.URL, client.WithToken("stub-token-abc"))
	if err := c.CreateIdentity(context.Background(), "0xa11ce", strings.Repeat("ab", 32)); err != nil {
		t.Fatalf("create identity: %v", err)
	}
}

func TestCreateIdentity_conflict(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()

	c := client.New(srv.URL, client.WithToken("stub-token-abc"))
	err := c.CreateIdentity(context.Background(), "0xdupe", strings.Repeat("ab", 32))

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
		t.Fatalf("expected 409 APIError, got %v", err)
	}
}

func TestCreateIdentity_missingToken(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	err := c.CreateIdentity(context.Background(), "0xa11ce", strings.Repeat("ab", 32))

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}

func TestVerificationStatus(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()

	c := client.New(srv.URL, client.WithToken("stub-token-abc"))
	status, err := c.VerificationStatus(context.Background(), "0xa11ce", 0)
	if err != nil {
		t.Fatalf("verification status: %v", err)
	}
	if status != "verified" {
		t.Errorf("status: got %q", status)
	}
}

func TestCheckAccess(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()

	c := client.New(srv.URL, client.WithToken("stub-token-abc"))

	granted, err := c.CheckAccess(context.Background(), "0xb0b", "0xa11ce")
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if !granted {
		t.Error("expected access for 0xb0b")
	}

	granted, err = c.CheckAccess(context.Background(), "0xstranger", "0xa11ce")
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if granted {
		t.Error("expected no access for 0xstranger")
	}
}

func TestActiveGrants(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()

	c := client.New(srv.URL, client.WithToken("stub-token-abc"))
	grants, err := c.ActiveGrants(context.Background(), "0xa11ce")
	if err != nil {
		t.Fatalf("active grants: %v", err)
	}
	if len(grants) != 1 || grants[0].Grantee != "0xb0b" {
		t.Errorf("grants: got %+v", grants)
	}
}

func TestRecordAttestation(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()

	c := client.New(srv.URL, client.WithToken("stub-token-abc"))
	id, err := c.RecordAttestation(context.Background(), "0xb0b", "0xa11ce", strings.Repeat("cd", 32), "government_id")
	if err != nil {
		t.Fatalf("record attestation: %v", err)
	}
	if id != 7 {
		t.Errorf("id: got %d", id)
	}
}

func TestRecordAttestation_denied(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()

	c := client.New(srv.URL, client.WithToken("stub-token-abc"))
	_, err := c.RecordAttestation(context.Background(), "0xnogrant", "0xa11ce", strings.Repeat("cd", 32), "government_id")

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		t.Fatalf("expected 403 APIError, got %v", err)
	}
}

func TestVerificationHistory(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()

	c := client.New(srv.URL, client.WithToken("stub-token-abc"))
	evs, err := c.VerificationHistory(context.Background(), "0xa11ce")
	if err != nil {
		t.Fatalf("verification history: %v", err)
	}
	if len(evs) != 1 || evs[0].Kind != "verification_updated" {
		t.Errorf("events: got %+v", evs)
	}
	if evs[0].Status == nil || *evs[0].Status != 1 {
		t.Errorf("status pointer: got %+v", evs[0].Status)
	}
}
