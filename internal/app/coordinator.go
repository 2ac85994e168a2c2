package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/audionoise/jam/internal/core"
	"github.com/audionoise/jam/internal/domain"
	"github.com/audionoise/jam/internal/protocol"
	"github.com/audionoise/jam/internal/rbac"
)

// Coordinator sits between the adapters and the session store. It
// runs the role checks, owns session lifecycle, and keeps the store
// the only holder of session state.
type Coordinator struct {
	Store    *SessionStore
	Auth     rbac.Authorizer
	Capacity int

	timeNow func() time.Time
}

func NewCoordinator(store *SessionStore, auth rbac.Authorizer, capacity int) *Coordinator {
	if capacity <= 0 {
		capacity = domain.DefaultCapacity
	}
	return &Coordinator{
		Store:    store,
		Auth:     auth,
		Capacity: capacity,
		timeNow:  time.Now,
	}
}

// Create opens a session for the workspace, requiring admin or editor
// role. If the workspace already has a session with participants,
// that one is returned instead (existing=true).
func (c *Coordinator) Create(ctx context.Context, ws domain.WorkspaceID, requester domain.UserID) (*core.Session, bool, error) {
	role, err := c.Auth.RoleOf(ctx, ws, requester)
	if err != nil {
		return nil, false, err
	}
	if !role.CanCreateSession() {
		return nil, false, domain.ErrForbidden
	}
	if sess, ok := c.Store.ActiveForWorkspace(ws); ok {
		return sess, true, nil
	}
	sess := core.NewSession(domain.NewSession(ws, requester, c.Capacity, c.timeNow()))
	c.Store.Put(sess)
	metricSessionsCreated.Inc()
	log.Info().Str("module", "app.coordinator").
		Str("session", string(sess.Meta().ID)).
		Str("workspace", string(ws)).
		Str("creator", string(requester)).
		Msg("session created")
	return sess, false, nil
}

// Info returns the session if the requester holds any workspace role.
func (c *Coordinator) Info(ctx context.Context, id domain.SessionID, requester domain.UserID) (*core.Session, error) {
	sess, ok := c.Store.Get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	role, err := c.Auth.RoleOf(ctx, sess.Meta().Workspace, requester)
	if err != nil {
		return nil, err
	}
	if !role.Member() {
		return nil, domain.ErrForbidden
	}
	return sess, nil
}

// List returns summaries of the workspace's sessions for any member.
func (c *Coordinator) List(ctx context.Context, ws domain.WorkspaceID, requester domain.UserID) ([]Summary, error) {
	role, err := c.Auth.RoleOf(ctx, ws, requester)
	if err != nil {
		return nil, err
	}
	if !role.Member() {
		return nil, domain.ErrForbidden
	}
	return c.Store.Summaries(ws), nil
}

// Delete tears the session down: termination notice to everyone,
// transports force-closed, index entries cleared, session removed.
// Admin only.
func (c *Coordinator) Delete(ctx context.Context, id domain.SessionID, requester domain.UserID) error {
	sess, ok := c.Store.Get(id)
	if !ok {
		return domain.ErrNotFound
	}
	role, err := c.Auth.RoleOf(ctx, sess.Meta().Workspace, requester)
	if err != nil {
		return err
	}
	if !role.CanDeleteSession() {
		return domain.ErrForbidden
	}
	c.terminate(sess)
	log.Info().Str("module", "app.coordinator").
		Str("session", string(id)).
		Str("requester", string(requester)).
		Msg("session deleted")
	return nil
}

// terminate notifies every participant, unregisters the session, then
// closes the connections. Close only stops intake; the queued notice
// is still flushed before each transport goes down.
func (c *Coordinator) terminate(sess *core.Session) {
	sess.Broadcast(protocol.Terminated(), "")
	c.Store.Remove(sess.Meta().ID)
	for _, conn := range sess.Drain() {
		conn.Close()
	}
}

// TerminateAll drains every session. Called on shutdown.
func (c *Coordinator) TerminateAll() {
	for _, sess := range c.Store.All() {
		c.terminate(sess)
	}
}

// Join runs the full join handshake for the gateway: session
// existence, role check, then the capacity and duplicate-user checks
// inside the store's critical section. The role query is the only
// async step, so both preconditions are re-validated after it
// returns. On success the minted participant and the roster present
// just before the join come back.
func (c *Coordinator) Join(ctx context.Context, id domain.SessionID, user domain.UserID, username string, conn core.SignalConn) (*domain.Participant, []core.ParticipantDTO, error) {
	sess, ok := c.Store.Get(id)
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	role, err := c.Auth.RoleOf(ctx, sess.Meta().Workspace, user)
	if err != nil {
		return nil, nil, err
	}
	if !role.Member() {
		return nil, nil, domain.ErrForbidden
	}
	part, err := domain.NewParticipant(user, username, c.timeNow())
	if err != nil {
		return nil, nil, domain.ErrInvalid
	}
	others, err := c.Store.Join(id, part, conn)
	if err != nil {
		return nil, nil, err
	}
	return part, others, nil
}

// Leave removes the peer from its session. Idempotent; an explicit
// leave racing a transport close resolves to one removal. Returns the
// session and participant so the gateway can announce the departure.
func (c *Coordinator) Leave(peer domain.PeerID) (*core.Session, *domain.Participant, bool) {
	return c.Store.RemovePeer(peer)
}

// Relay forwards an opaque signaling payload to the target peer of
// the same session. A missing target is silently dropped.
func (c *Coordinator) Relay(id domain.SessionID, from domain.PeerID, target domain.PeerID, frame core.Frame) {
	sess, ok := c.Store.Get(id)
	if !ok {
		return
	}
	if _, _, ok := sess.Peer(from); !ok {
		return
	}
	_, conn, ok := sess.Peer(target)
	if !ok {
		return
	}
	if err := conn.TrySend(frame); err != nil {
		MetricDeliveriesDropped.Inc()
	}
}

// SetMuteState flips the sender's flags and reports whether the peer
// was still in the session.
func (c *Coordinator) SetMuteState(id domain.SessionID, peer domain.PeerID, muted, deafened bool) bool {
	sess, ok := c.Store.Get(id)
	if !ok {
		return false
	}
	return sess.SetMuteState(peer, muted, deafened)
}
