package api

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/veristry/veristry/internal/ledger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ScopeAdmin allows a caller to act on any principal's behalf: create
// identities, update verification outcomes, and trigger snapshots.
const ScopeAdmin = "admin"

// Claims are the JWT claims for a ledger access token. Tokens bind a caller
// to a Principal and a set of scopes; non-admin callers may only mutate
// state as that principal.
type Claims struct {
	jwt.RegisteredClaims
	Principal string   `json:"principal"`
	Scopes    []string `json:"scopes"`
}

// TokenIssuer issues and verifies access tokens signed with HS256.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer.
//
//	issuerURL — the "iss" claim value; typically the server's base URL.
//	ttl       — token lifetime (default: 30 minutes).
func NewTokenIssuer(secret []byte, issuerURL string, ttl time.Duration) *TokenIssuer {
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	return &TokenIssuer{secret: secret, issuer: issuerURL, ttl: ttl}
}

// Issue creates a signed token for principal with the given scopes.
func (t *TokenIssuer) Issue(principal ledger.Principal, scopes []string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   string(principal),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.New().String(),
		},
		Principal: string(principal),
		Scopes:    scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims on success.
func (t *TokenIssuer) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Client is one API client credential: a bcrypt-hashed secret bound to a
// principal and a scope set. Clients come from configuration; there is no
// self-service registration.
type Client struct {
	ID         string           `mapstructure:"id"`
	Principal  ledger.Principal `mapstructure:"principal"`
	SecretHash string           `mapstructure:"secret_hash"` // bcrypt hash of the client secret
	Scopes     []string         `mapstructure:"scopes"`
}

// AuthHandler exchanges client credentials for access tokens.
type AuthHandler struct {
	clients map[string]Client
	issuer  *TokenIssuer
	logger  *zap.Logger
}

// NewAuthHandler creates an AuthHandler over a static client set.
func NewAuthHandler(clients []Client, issuer *TokenIssuer, logger *zap.Logger) *AuthHandler {
	m := make(map[string]Client, len(clients))
	for _, c := range clients {
		m[c.ID] = c
	}
	return &AuthHandler{clients: m, issuer: issuer, logger: logger}
}

// Register mounts the auth routes on the given router group.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/auth/token", h.Token)
}

type tokenRequest struct {
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" binding:"required"`
}

// Token handles POST /auth/token — verifies the client secret and issues a
// short-lived access token.
func (h *AuthHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client_id and client_secret are required"})
		return
	}

	client, ok := h.clients[req.ClientID]
	if !ok || bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(req.ClientSecret)) != nil {
		h.logger.Warn("token request rejected", zap.String("client_id", req.ClientID))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client credentials"})
		return
	}

	token, err := h.issuer.Issue(client.Principal, client.Scopes)
	if err != nil {
		h.logger.Error("token issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"principal":    client.Principal,
	})
}

const (
	ctxPrincipal = "auth_principal"
	ctxScopes    = "auth_scopes"
)

// RequireAuth returns a middleware that validates the Bearer token and
// stores the caller's principal and scopes on the request context.
func RequireAuth(issuer *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := issuer.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxPrincipal, ledger.Principal(claims.Principal))
		c.Set(ctxScopes, claims.Scopes)
		c.Next()
	}
}

// caller returns the authenticated principal set by RequireAuth.
func caller(c *gin.Context) ledger.Principal {
	if v, ok := c.Get(ctxPrincipal); ok {
		if p, ok := v.(ledger.Principal); ok {
			return p
		}
	}
	return ""
}

// isAdmin reports whether the caller's token carries the admin scope.
func isAdmin(c *gin.Context) bool {
	if v, ok := c.Get(ctxScopes); ok {
		if scopes, ok := v.([]string); ok {
			return slices.Contains(scopes, ScopeAdmin)
		}
	}
	return false
}

// mayActAs reports whether the caller may mutate state as principal p:
// either the token is bound to p itself or it carries the admin scope.
func mayActAs(c *gin.Context, p ledger.Principal) bool {
	return caller(c) == p || isAdmin(c)
}
