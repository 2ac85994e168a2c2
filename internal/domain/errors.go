package domain

import "errors"

// Error taxonomy shared by the control plane and the signaling gateway.
// Adapters translate these into HTTP statuses or error envelopes.
var (
	ErrAuthRequired = errors.New("authentication required")
	ErrForbidden    = errors.New("role insufficient")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("user already in session")
	ErrCapacity     = errors.New("session full")
	ErrInvalid      = errors.New("invalid message")
)
