package ledger

import (
	"sort"
	"time"
)

// AccessGrant is a time-bounded delegation from an identity owner (grantor)
// to a third party (grantee). At most one grant exists per ordered pair; a
// new grant overwrites the prior one. Revocation flips Active to false but
// keeps the record, so audit history can distinguish "revoked" from "never
// existed". Expiry is lazy: an expired grant stays in place and simply stops
// satisfying access checks.
type AccessGrant struct {
	Grantor          Principal  `json:"grantor"`
	Grantee          Principal  `json:"grantee"`
	Active           bool       `json:"active"`
	ExpiresAt        time.Time  `json:"expires_at"`
	AllowedDataTypes []DataType `json:"allowed_data_types"`
	GrantedAt        time.Time  `json:"granted_at"`
}

// grantKey is the ordered (grantor, grantee) pair the grant map is keyed by.
type grantKey struct {
	grantor Principal
	grantee Principal
}

// allows reports whether the grant satisfies an access check at instant now:
// active and not yet expired. AllowedDataTypes is deliberately not consulted;
// the declared scope is stored metadata only.
func (g *AccessGrant) allows(now time.Time) bool {
	return g.Active && g.ExpiresAt.After(now)
}

func (g *AccessGrant) clone() *AccessGrant {
	cp := *g
	cp.AllowedDataTypes = append([]DataType(nil), g.AllowedDataTypes...)
	return &cp
}

// normalizeDataTypes sorts and de-duplicates a declared scope so that equal
// scopes compare and serialise identically.
func normalizeDataTypes(types []DataType) []DataType {
	out := append([]DataType(nil), types...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, t := range out {
		if i == 0 || t != out[i-1] {
			out[n] = t
			n++
		}
	}
	return out[:n]
}
