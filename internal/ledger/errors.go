package ledger

import "errors"

// Typed failure kinds for ledger operations. Every rejected operation leaves
// the Store unchanged and usable; none of these is fatal to the process.
var (
	// ErrAlreadyExists is returned when creating an identity for an owner
	// that already has one.
	ErrAlreadyExists = errors.New("identity already exists")

	// ErrNotFound is returned when an operation references an owner, grantor
	// or subject that has no identity.
	ErrNotFound = errors.New("identity not found")

	// ErrNoSuchGrant is returned when revoking a (grantor, grantee) pair for
	// which no grant — active or revoked — was ever recorded.
	ErrNoSuchGrant = errors.New("no such access grant")

	// ErrNotAuthorized is returned when a caller acts on a grant it does not
	// own. With the grantor taken as the authenticated caller this collapses
	// to ErrNoSuchGrant in practice; the API layer surfaces it when the
	// authenticated principal and the named grantor disagree.
	ErrNotAuthorized = errors.New("caller is not the grantor")

	// ErrAccessDenied is returned when recording an attestation without an
	// active, unexpired grant from the subject to the verifier.
	ErrAccessDenied = errors.New("verifier has no access to subject")
)
