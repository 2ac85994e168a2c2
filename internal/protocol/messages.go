// Package protocol defines the signaling wire envelope. Every frame
// is one JSON object with a mandatory type discriminator; relay
// payloads stay json.RawMessage so they reach the target byte-for-byte.
package protocol

import (
	"encoding/json"

	"github.com/audionoise/jam/internal/core"
	"github.com/audionoise/jam/internal/domain"
)

type MsgType string

// Inbound types.
const (
	TypeJoin         MsgType = "join"
	TypeOffer        MsgType = "offer"
	TypeAnswer       MsgType = "answer"
	TypeICECandidate MsgType = "ice-candidate"
	TypeMuteState    MsgType = "mute-state"
	TypeLeave        MsgType = "leave"
)

// Outbound types.
const (
	TypeJoined            MsgType = "joined"
	TypeParticipantList   MsgType = "participant-list"
	TypeParticipantJoined MsgType = "participant-joined"
	TypeParticipantLeft   MsgType = "participant-left"
	TypeSessionTerminated MsgType = "session-terminated"
	TypeError             MsgType = "error"
)

// Envelope carries the union of all inbound fields; handlers pick the
// ones their type requires and reject the rest as invalid.
type Envelope struct {
	Type      MsgType         `json:"type"`
	UserID    domain.UserID   `json:"userId,omitempty"`
	Username  string          `json:"username,omitempty"`
	Target    domain.PeerID   `json:"target,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Muted     bool            `json:"muted,omitempty"`
	Deafened  bool            `json:"deafened,omitempty"`
}

type Joined struct {
	Type    MsgType          `json:"type"`
	Peer    domain.PeerID    `json:"peerId"`
	Session domain.SessionID `json:"sessionId"`
}

type ParticipantList struct {
	Type         MsgType               `json:"type"`
	Participants []core.ParticipantDTO `json:"participants"`
}

type ParticipantEvent struct {
	Type     MsgType       `json:"type"`
	Peer     domain.PeerID `json:"peerId"`
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
}

type MuteState struct {
	Type     MsgType       `json:"type"`
	Peer     domain.PeerID `json:"peerId"`
	Muted    bool          `json:"muted"`
	Deafened bool          `json:"deafened"`
}

// Relay is an offer/answer/ice-candidate forwarded to its target with
// the sender's identity attached. Exactly one of SDP or Candidate is
// set, copied verbatim from the inbound frame.
type Relay struct {
	Type      MsgType         `json:"type"`
	From      domain.PeerID   `json:"from"`
	UserID    domain.UserID   `json:"userId"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type SessionTerminated struct {
	Type MsgType `json:"type"`
}

type Error struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}

// Marshal encodes a message for the wire. Marshalling our own structs
// cannot fail, so errors collapse to a nil frame the conn layer drops.
func Marshal(v any) core.Frame {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return core.Frame(b)
}

// Terminated is the canonical termination notice frame.
func Terminated() core.Frame {
	return Marshal(SessionTerminated{Type: TypeSessionTerminated})
}
