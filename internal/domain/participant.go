package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const MaxUsernameLen = 36

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type (
	UserID string
	PeerID string
)

// Participant is one connected peer of a session. The peer identifier
// is minted at join time and never reused; the user identifier is the
// durable account identity.
type Participant struct {
	Peer     PeerID
	User     UserID
	Username string
	Muted    bool
	Deafened bool
	JoinedAt time.Time
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(user UserID, username string, now time.Time) (*Participant, error) {
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	return &Participant{
		Peer:     PeerID(uuid.NewString()),
		User:     user,
		Username: username,
		JoinedAt: now,
	}, nil
}
