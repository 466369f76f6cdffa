// Package client provides the Veristry Go SDK for talking to a ledger
// server: identity creation, verification lookups, access grants, and
// attestation recording.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is a non-2xx response from the ledger server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger API: %d: %s", e.Status, e.Message)
}

// Grant is one active access grant as returned by ActiveGrants.
type Grant struct {
	Grantee          string   `json:"grantee"`
	ExpiresAt        int64    `json:"expires_at"`
	AllowedDataTypes []string `json:"allowed_data_types"`
}

// Attestation is one recorded proof attestation.
type Attestation struct {
	ID          int64     `json:"id"`
	Verifier    string    `json:"verifier"`
	Subject     string    `json:"subject"`
	ProofDigest string    `json:"proof_digest"`
	DataType    string    `json:"data_type"`
	RecordedAt  time.Time `json:"recorded_at"`
	Verified    bool      `json:"verified"`
}

// Event is one audit event from the ledger's event log.
type Event struct {
	Seq       uint64    `json:"seq"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Owner     string    `json:"owner,omitempty"`
	Grantor   string    `json:"grantor,omitempty"`
	Grantee   string    `json:"grantee,omitempty"`
	Verifier  string    `json:"verifier,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Category  *uint8    `json:"category,omitempty"`
	Status    *uint8    `json:"status,omitempty"`
	Hash      string    `json:"hash"`
}

// Client is the ledger SDK entry point.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken attaches a pre-obtained bearer token to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client for the ledger server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate exchanges client credentials for a bearer token and attaches
// it to all subsequent requests.
func (c *Client) Authenticate(ctx context.Context, clientID, clientSecret string) error {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/token", map[string]string{
		"client_id":     clientID,
		"client_secret": clientSecret,
	}, &resp)
	if err != nil {
		return err
	}
	c.token = resp.AccessToken
	return nil
}

// Token returns the bearer token currently attached to the client.
func (c *Client) Token() string { return c.token }

// CreateIdentity records a new identity for owner. dataDigest is 32 bytes of
// hex.
func (c *Client) CreateIdentity(ctx context.Context, owner, dataDigest string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/identities", map[string]string{
		"owner":       owner,
		"data_digest": dataDigest,
	}, nil)
}

// UpdateVerification sets owner's status for one verification category.
// Requires an admin-scoped token.
func (c *Client) UpdateVerification(ctx context.Context, owner string, category, status uint8) error {
	path := fmt.Sprintf("/api/v1/identities/%s/verification", url.PathEscape(owner))
	return c.do(ctx, http.MethodPut, path, map[string]uint8{
		"category": category,
		"status":   status,
	}, nil)
}

// VerificationStatus returns owner's status name for one category
// ("pending", "verified", or "rejected").
func (c *Client) VerificationStatus(ctx context.Context, owner string, category uint8) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	path := fmt.Sprintf("/api/v1/identities/%s/verification/%d", url.PathEscape(owner), category)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// GrantAccess creates or overwrites the grant from grantor to grantee.
func (c *Client) GrantAccess(ctx context.Context, grantor, grantee string, expiresAt time.Time, dataTypes []string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/access/grants", map[string]any{
		"grantor":            grantor,
		"grantee":            grantee,
		"expires_at":         expiresAt.Unix(),
		"allowed_data_types": dataTypes,
	}, nil)
}

// RevokeAccess deactivates the grant from grantor to grantee.
func (c *Client) RevokeAccess(ctx context.Context, grantor, grantee string) error {
	path := fmt.Sprintf("/api/v1/access/grants/%s/%s", url.PathEscape(grantor), url.PathEscape(grantee))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// CheckAccess reports whether grantee currently holds access from grantor.
func (c *Client) CheckAccess(ctx context.Context, grantee, grantor string) (bool, error) {
	var resp struct {
		Access bool `json:"access"`
	}
	path := "/api/v1/access/check?grantee=" + url.QueryEscape(grantee) + "&grantor=" + url.QueryEscape(grantor)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Access, nil
}

// ActiveGrants lists grantor's active, unexpired grants.
func (c *Client) ActiveGrants(ctx context.Context, grantor string) ([]Grant, error) {
	var resp struct {
		Grants []Grant `json:"grants"`
	}
	path := "/api/v1/access/grants/" + url.PathEscape(grantor)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Grants, nil
}

// RecordAttestation appends a proof attestation and returns its sequence ID.
func (c *Client) RecordAttestation(ctx context.Context, verifier, subject, proofDigest, dataType string) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/attestations", map[string]string{
		"verifier":     verifier,
		"subject":      subject,
		"proof_digest": proofDigest,
		"data_type":    dataType,
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// Attestations lists all attestations recorded for subject, in order.
func (c *Client) Attestations(ctx context.Context, subject string) ([]Attestation, error) {
	var resp struct {
		Attestations []Attestation `json:"attestations"`
	}
	path := "/api/v1/attestations/" + url.PathEscape(subject)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Attestations, nil
}

// VerificationHistory lists owner's verification-update events in order.
func (c *Client) VerificationHistory(ctx context.Context, owner string) ([]Event, error) {
	var resp struct {
		Events []Event `json:"events"`
	}
	path := fmt.Sprintf("/api/v1/identities/%s/history", url.PathEscape(owner))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "unreadable error body"
	}
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error != "" {
		return parsed.Error
	}
	return strings.TrimSpace(string(raw))
}
