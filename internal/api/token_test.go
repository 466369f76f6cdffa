package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/veristry/veristry/internal/api"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenIssuer_roundTrip(t *testing.T) {
	issuer := api.NewTokenIssuer([]byte("test-secret"), "http://localhost:8080", time.Minute)

	token, err := issuer.Issue("0xa11ce", []string{"admin"})
	if err != nil {
		t.Fatal(err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Principal != "0xa11ce" {
		t.Errorf("principal: got %q", claims.Principal)
	}
	if len(claims.Scopes) != 1 || claims.Scopes[0] != "admin" {
		t.Errorf("scopes: got %v", claims.Scopes)
	}
}

func TestTokenIssuer_rejectsWrongSecret(t *testing.T) {
	a := api.NewTokenIssuer([]byte("secret-a"), "http://localhost", time.Minute)
	b := api.NewTokenIssuer([]byte("secret-b"), "http://localhost", time.Minute)

	token, err := a.Issue("0xa11ce", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Verify(token); err == nil {
		t.Error("token signed with another secret accepted")
	}
}

func TestTokenIssuer_rejectsExpired(t *testing.T) {
	issuer := api.NewTokenIssuer([]byte("test-secret"), "http://localhost", -time.Minute)

	token, err := issuer.Issue("0xa11ce", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issuer.Verify(token); err == nil {
		t.Error("expired token accepted")
	}
}

func setupAuthRouter(t *testing.T) (*gin.Engine, *api.TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	issuer := api.NewTokenIssuer([]byte("test-secret"), "http://localhost", time.Minute)
	clients := []api.Client{
		{ID: "verifier-svc", Principal: "0xb0b", SecretHash: string(hash), Scopes: nil},
	}

	r := gin.New()
	h := api.NewAuthHandler(clients, issuer, zap.NewNop())
	h.Register(r.Group("/api/v1"))
	return r, issuer
}

func TestToken_issuesForValidClient(t *testing.T) {
	router, issuer := setupAuthRouter(t)

	body, _ := json.Marshal(map[string]string{
		"client_id":     "verifier-svc",
		"client_secret": "s3cret",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	claims, err := issuer.Verify(resp["access_token"].(string))
	if err != nil {
		t.Fatalf("issued token failed verify: %v", err)
	}
	if claims.Principal != "0xb0b" {
		t.Errorf("token principal: got %q", claims.Principal)
	}
}

func TestToken_rejectsBadSecret(t *testing.T) {
	router, _ := setupAuthRouter(t)

	body, _ := json.Marshal(map[string]string{
		"client_id":     "verifier-svc",
		"client_secret": "wrong",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestToken_rejectsUnknownClient(t *testing.T) {
	router, _ := setupAuthRouter(t)

	body, _ := json.Marshal(map[string]string{
		"client_id":     "nobody",
		"client_secret": "s3cret",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
