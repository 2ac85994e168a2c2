// Package domain contains entities without logic, just meta-data.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type (
	SessionID   string
	WorkspaceID string
)

// DefaultCapacity is the participant limit applied to new sessions
// unless config overrides it.
const DefaultCapacity = 8

// Session is the meta-data of one jam session. Membership lives in
// core; nothing outside the store keeps a long-lived reference.
type Session struct {
	ID        SessionID
	Workspace WorkspaceID
	CreatedBy UserID
	CreatedAt time.Time
	Capacity  int
}

// NewSession mints a session with an unguessable identifier.
func NewSession(ws WorkspaceID, creator UserID, capacity int, now time.Time) *Session {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Session{
		ID:        SessionID(uuid.NewString()),
		Workspace: ws,
		CreatedBy: creator,
		CreatedAt: now,
		Capacity:  capacity,
	}
}
