package signal

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/audionoise/jam/internal/domain"
	"github.com/audionoise/jam/internal/protocol"
)

// handleJoin runs the join handshake. On success the new peer hears,
// in order: its own confirmation, the roster of everyone already
// there, and only then do the others hear the broadcast, so the peer
// never first learns of its own join from the broadcast channel.
func (g *Gateway) handleJoin(ctx context.Context, cl *client, env protocol.Envelope) {
	if cl.joined {
		g.sendError(cl.conn, "conflict", "already joined")
		return
	}
	if env.UserID == "" || env.Username == "" {
		g.sendError(cl.conn, "invalid", "join requires userId and username")
		return
	}
	// The join identity must be the one the token was issued for; the
	// connection cannot speak for another user.
	if env.UserID != cl.user {
		log.Warn().Str("module", "signal").
			Str("session", string(cl.session)).
			Str("user", string(cl.user)).
			Str("claimed", string(env.UserID)).
			Msg("join identity mismatch")
		g.sendError(cl.conn, "forbidden", "userId does not match authenticated user")
		return
	}

	part, others, err := g.Coord.Join(ctx, cl.session, cl.user, env.Username, cl.conn)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").
			Str("session", string(cl.session)).
			Str("user", string(env.UserID)).
			Msg("join rejected")
		g.sendError(cl.conn, errCode(err), err.Error())
		// A vanished session is unrecoverable for this connection.
		if errors.Is(err, domain.ErrNotFound) {
			cl.conn.Close()
		}
		return
	}

	cl.peer = part.Peer
	cl.joined = true

	g.sendJSON(cl.conn, protocol.Joined{
		Type:    protocol.TypeJoined,
		Peer:    part.Peer,
		Session: cl.session,
	})
	g.sendJSON(cl.conn, protocol.ParticipantList{
		Type:         protocol.TypeParticipantList,
		Participants: others,
	})

	if sess, ok := g.Coord.Store.Get(cl.session); ok {
		sess.Broadcast(protocol.Marshal(protocol.ParticipantEvent{
			Type:     protocol.TypeParticipantJoined,
			Peer:     part.Peer,
			UserID:   part.User,
			Username: part.Username,
		}), part.Peer)
	}
}

// handleLeave removes the sender and announces it. The connection
// stays open; only its session membership ends.
func (g *Gateway) handleLeave(cl *client) {
	if !cl.joined {
		g.sendError(cl.conn, "invalid", "not joined")
		return
	}
	g.removePeer(cl)
}

// disconnect is the transport-close path. Identical to leave, minus
// the error reply for peers that never joined.
func (g *Gateway) disconnect(cl *client) {
	if !cl.joined {
		return
	}
	g.removePeer(cl)
}

func (g *Gateway) removePeer(cl *client) {
	sess, part, ok := g.Coord.Leave(cl.peer)
	cl.joined = false
	cl.peer = ""
	if !ok {
		return
	}
	sess.Broadcast(protocol.Marshal(protocol.ParticipantEvent{
		Type:     protocol.TypeParticipantLeft,
		Peer:     part.Peer,
		UserID:   part.User,
		Username: part.Username,
	}), part.Peer)
}

// handleMuteState updates the sender's flags and fans the change out
// to everyone else.
func (g *Gateway) handleMuteState(cl *client, env protocol.Envelope) {
	if !cl.joined {
		g.sendError(cl.conn, "invalid", "not joined")
		return
	}
	if !g.Coord.SetMuteState(cl.session, cl.peer, env.Muted, env.Deafened) {
		return
	}
	if sess, ok := g.Coord.Store.Get(cl.session); ok {
		sess.Broadcast(protocol.Marshal(protocol.MuteState{
			Type:     protocol.TypeMuteState,
			Peer:     cl.peer,
			Muted:    env.Muted,
			Deafened: env.Deafened,
		}), cl.peer)
	}
}
