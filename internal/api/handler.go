package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/veristry/veristry/internal/ledger"
	"go.uber.org/zap"
)

// Saver triggers an immediate snapshot write. *snapshot.AutoSaver satisfies
// this interface; nil disables the admin snapshot endpoint.
type Saver interface {
	SaveNow(ctx context.Context) error
}

// LedgerHandler exposes the ledger's operation set over HTTP. Mutations
// require a token whose principal matches the acting party (or the admin
// scope); reads require any valid token.
type LedgerHandler struct {
	store  *ledger.Store
	saver  Saver
	logger *zap.Logger
}

// NewLedgerHandler creates a LedgerHandler. saver may be nil to disable the
// explicit snapshot trigger.
func NewLedgerHandler(store *ledger.Store, saver Saver, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{store: store, saver: saver, logger: logger}
}

// Register mounts the ledger routes on the given (authenticated) group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/identities", h.CreateIdentity)
	rg.PUT("/identities/:owner/verification", h.UpdateVerification)
	rg.GET("/identities/:owner/verification/:category", h.GetVerificationStatus)
	rg.GET("/identities/:owner/history", h.VerificationHistory)

	rg.POST("/access/grants", h.GrantAccess)
	rg.DELETE("/access/grants/:grantor/:grantee", h.RevokeAccess)
	rg.GET("/access/grants/:grantor", h.ActiveGrants)
	rg.GET("/access/check", h.CheckAccess)

	rg.POST("/attestations", h.RecordAttestation)
	rg.GET("/attestations/:subject", h.Attestations)

	rg.GET("/events", h.Events)
	rg.GET("/ledger", h.Overview)
	rg.GET("/ledger/verify", h.Verify)

	rg.POST("/admin/snapshot", h.TriggerSnapshot)
}

// errStatus maps ledger failure kinds to HTTP statuses.
func errStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrNoSuchGrant):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrNotAuthorized), errors.Is(err, ledger.ErrAccessDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *LedgerHandler) reject(c *gin.Context, op string, err error) {
	RecordMutation(op, err)
	c.JSON(errStatus(err), gin.H{"error": err.Error()})
}

func (h *LedgerHandler) updateGauges() {
	stats := h.store.Stats()
	SetLedgerGauges(stats.Identities, stats.Events)
}

// ─── Identities ──────────────────────────────────────────────────────────────

type createIdentityRequest struct {
	Owner      string `json:"owner" binding:"required"`
	DataDigest string `json:"data_digest" binding:"required"`
}

// CreateIdentity handles POST /identities.
func (h *LedgerHandler) CreateIdentity(c *gin.Context) {
	var req createIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner and data_digest are required"})
		return
	}
	digest, err := ledger.ParseDigest(req.DataDigest)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "data_digest must be 32 bytes of hex"})
		return
	}
	owner := ledger.Principal(req.Owner)
	if !mayActAs(c, owner) {
		h.reject(c, "create_identity", ledger.ErrNotAuthorized)
		return
	}

	if err := h.store.CreateIdentity(owner, digest); err != nil {
		h.reject(c, "create_identity", err)
		return
	}
	RecordMutation("create_identity", nil)
	h.updateGauges()
	c.JSON(http.StatusCreated, gin.H{"owner": owner})
}

type updateVerificationRequest struct {
	Category *uint8 `json:"category" binding:"required"`
	Status   *uint8 `json:"status" binding:"required"`
}

// UpdateVerification handles PUT /identities/:owner/verification.
// Restricted to admin-scoped callers (the verification pipeline).
func (h *LedgerHandler) UpdateVerification(c *gin.Context) {
	var req updateVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category and status are required"})
		return
	}
	if *req.Status > uint8(ledger.StatusRejected) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be 0 (pending), 1 (verified), or 2 (rejected)"})
		return
	}
	if !isAdmin(c) {
		h.reject(c, "update_verification", ledger.ErrNotAuthorized)
		return
	}

	owner := ledger.Principal(c.Param("owner"))
	category := ledger.VerificationCategory(*req.Category)
	status := ledger.VerificationStatus(*req.Status)
	if err := h.store.UpdateVerification(owner, category, status); err != nil {
		h.reject(c, "update_verification", err)
		return
	}
	RecordMutation("update_verification", nil)
	h.updateGauges()
	c.JSON(http.StatusOK, gin.H{
		"owner":    owner,
		"category": category.String(),
		"status":   status.String(),
	})
}

// GetVerificationStatus handles GET /identities/:owner/verification/:category.
func (h *LedgerHandler) GetVerificationStatus(c *gin.Context) {
	catNum, err := strconv.ParseUint(c.Param("category"), 10, 8)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category must be a small integer"})
		return
	}

	owner := ledger.Principal(c.Param("owner"))
	category := ledger.VerificationCategory(catNum)
	status, err := h.store.VerificationStatus(owner, category)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"owner":    owner,
		"category": category.String(),
		"code":     uint8(status),
		"status":   status.String(),
	})
}

// VerificationHistory handles GET /identities/:owner/history.
func (h *LedgerHandler) VerificationHistory(c *gin.Context) {
	events := h.store.VerificationHistory(ledger.Principal(c.Param("owner")))
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// ─── Access grants ───────────────────────────────────────────────────────────

type grantRequest struct {
	Grantor          string   `json:"grantor" binding:"required"`
	Grantee          string   `json:"grantee" binding:"required"`
	ExpiresAt        *int64   `json:"expires_at" binding:"required"` // unix seconds; past values produce an inert grant
	AllowedDataTypes []string `json:"allowed_data_types"`
}

// GrantAccess handles POST /access/grants.
func (h *LedgerHandler) GrantAccess(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "grantor, grantee, and expires_at are required"})
		return
	}
	grantor := ledger.Principal(req.Grantor)
	if !mayActAs(c, grantor) {
		h.reject(c, "grant_access", ledger.ErrNotAuthorized)
		return
	}

	types := make([]ledger.DataType, 0, len(req.AllowedDataTypes))
	for _, t := range req.AllowedDataTypes {
		types = append(types, ledger.DataType(t))
	}
	expiresAt := time.Unix(*req.ExpiresAt, 0).UTC()
	if err := h.store.GrantAccess(grantor, ledger.Principal(req.Grantee), expiresAt, types); err != nil {
		h.reject(c, "grant_access", err)
		return
	}
	RecordMutation("grant_access", nil)
	h.updateGauges()
	c.JSON(http.StatusCreated, gin.H{
		"grantor":    grantor,
		"grantee":    req.Grantee,
		"expires_at": *req.ExpiresAt,
	})
}

// RevokeAccess handles DELETE /access/grants/:grantor/:grantee.
func (h *LedgerHandler) RevokeAccess(c *gin.Context) {
	grantor := ledger.Principal(c.Param("grantor"))
	grantee := ledger.Principal(c.Param("grantee"))
	if !mayActAs(c, grantor) {
		h.reject(c, "revoke_access", ledger.ErrNotAuthorized)
		return
	}

	if err := h.store.RevokeAccess(grantor, grantee); err != nil {
		h.reject(c, "revoke_access", err)
		return
	}
	RecordMutation("revoke_access", nil)
	h.updateGauges()
	c.JSON(http.StatusOK, gin.H{"grantor": grantor, "grantee": grantee, "active": false})
}

type grantResponse struct {
	Grantee          ledger.Principal  `json:"grantee"`
	ExpiresAt        int64             `json:"expires_at"`
	AllowedDataTypes []ledger.DataType `json:"allowed_data_types"`
}

// ActiveGrants handles GET /access/grants/:grantor — grants that are active
// and unexpired right now.
func (h *LedgerHandler) ActiveGrants(c *gin.Context) {
	grants := h.store.ActiveGrants(ledger.Principal(c.Param("grantor")))
	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, grantResponse{
			Grantee:          g.Grantee,
			ExpiresAt:        g.ExpiresAt.Unix(),
			AllowedDataTypes: g.AllowedDataTypes,
		})
	}
	c.JSON(http.StatusOK, gin.H{"grants": out, "count": len(out)})
}

// CheckAccess handles GET /access/check?grantee=...&grantor=...
func (h *LedgerHandler) CheckAccess(c *gin.Context) {
	grantee := c.Query("grantee")
	grantor := c.Query("grantor")
	if grantee == "" || grantor == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "grantee and grantor query parameters are required"})
		return
	}
	access := h.store.CheckAccess(ledger.Principal(grantee), ledger.Principal(grantor))
	c.JSON(http.StatusOK, gin.H{"access": access})
}

// ─── Attestations ────────────────────────────────────────────────────────────

type attestRequest struct {
	Verifier    string `json:"verifier" binding:"required"`
	Subject     string `json:"subject" binding:"required"`
	ProofDigest string `json:"proof_digest" binding:"required"`
	DataType    string `json:"data_type" binding:"required"`
}

// RecordAttestation handles POST /attestations.
func (h *LedgerHandler) RecordAttestation(c *gin.Context) {
	var req attestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "verifier, subject, proof_digest, and data_type are required"})
		return
	}
	digest, err := ledger.ParseDigest(req.ProofDigest)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "proof_digest must be 32 bytes of hex"})
		return
	}
	verifier := ledger.Principal(req.Verifier)
	if !mayActAs(c, verifier) {
		h.reject(c, "record_attestation", ledger.ErrNotAuthorized)
		return
	}

	id, err := h.store.RecordAttestation(verifier, ledger.Principal(req.Subject), digest, ledger.DataType(req.DataType))
	if err != nil {
		h.reject(c, "record_attestation", err)
		return
	}
	RecordMutation("record_attestation", nil)
	h.updateGauges()
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// Attestations handles GET /attestations/:subject.
func (h *LedgerHandler) Attestations(c *gin.Context) {
	atts := h.store.AttestationsFor(ledger.Principal(c.Param("subject")))
	c.JSON(http.StatusOK, gin.H{"attestations": atts, "count": len(atts)})
}

// ─── Audit & admin ───────────────────────────────────────────────────────────

// Events handles GET /events with optional kind, principal, from_seq, and
// to_seq filters.
func (h *LedgerHandler) Events(c *gin.Context) {
	filter := ledger.EventFilter{
		Kind:      ledger.EventKind(c.Query("kind")),
		Principal: ledger.Principal(c.Query("principal")),
	}
	if v := c.Query("from_seq"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from_seq must be a non-negative integer"})
			return
		}
		filter.FromSeq = n
	}
	if v := c.Query("to_seq"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to_seq must be a non-negative integer"})
			return
		}
		filter.ToSeq = n
	}

	events := h.store.Events(filter)
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// Overview handles GET /ledger — entity counts and sequence number.
func (h *LedgerHandler) Overview(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Stats())
}

// Verify handles GET /ledger/verify — walks the event hash chain and reports
// integrity.
func (h *LedgerHandler) Verify(c *gin.Context) {
	if err := h.store.VerifyEvents(); err != nil {
		h.logger.Warn("event log integrity check failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// TriggerSnapshot handles POST /admin/snapshot — synchronous caller-triggered
// save. Admin only.
func (h *LedgerHandler) TriggerSnapshot(c *gin.Context) {
	if !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin scope required"})
		return
	}
	if h.saver == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no snapshot store configured"})
		return
	}

	if err := h.saver.SaveNow(c.Request.Context()); err != nil {
		// Weak durability: the in-memory state is authoritative; report the
		// failure without pretending anything was rolled back.
		h.logger.Error("triggered snapshot failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot write failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true})
}
