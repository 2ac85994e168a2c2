package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/audionoise/jam/internal/core"
	"github.com/audionoise/jam/internal/domain"
)

// Summary is the lightweight session view the control plane lists.
type Summary struct {
	ID           domain.SessionID   `json:"sessionId"`
	Workspace    domain.WorkspaceID `json:"workspaceId"`
	Participants int                `json:"participants"`
	Capacity     int                `json:"capacity"`
	AgeSeconds   float64            `json:"ageSeconds"`
}

// SessionStore owns the session registry and the peer-to-session
// index. The two maps are mutated only together, under one mutex;
// session-internal mutation happens while the store lock is still
// held (lock order store -> session, never the reverse), so a peer
// index entry always points at a session that contains that peer.
type SessionStore struct {
	mu     sync.RWMutex
	byID   map[domain.SessionID]*core.Session
	byPeer map[domain.PeerID]domain.SessionID

	timeNow func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byID:    make(map[domain.SessionID]*core.Session),
		byPeer:  make(map[domain.PeerID]domain.SessionID),
		timeNow: time.Now,
	}
}

func (st *SessionStore) Put(sess *core.Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.byID[sess.Meta().ID] = sess
	metricSessionsActive.Inc()
	log.Info().Str("module", "app.store").
		Str("session", string(sess.Meta().ID)).
		Str("workspace", string(sess.Meta().Workspace)).
		Msg("session registered")
}

func (st *SessionStore) Get(id domain.SessionID) (*core.Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.byID[id]
	return sess, ok
}

// ActiveForWorkspace returns a session of the workspace that still
// has participants, if any. Used for idempotent create reuse.
func (st *SessionStore) ActiveForWorkspace(ws domain.WorkspaceID) (*core.Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, sess := range st.byID {
		if sess.Meta().Workspace == ws && sess.Count() > 0 {
			return sess, true
		}
	}
	return nil, false
}

func (st *SessionStore) Summaries(ws domain.WorkspaceID) []Summary {
	st.mu.RLock()
	defer st.mu.RUnlock()
	now := st.timeNow()
	matching := lo.Filter(lo.Values(st.byID), func(s *core.Session, _ int) bool {
		return s.Meta().Workspace == ws
	})
	return lo.Map(matching, func(s *core.Session, _ int) Summary {
		return Summary{
			ID:           s.Meta().ID,
			Workspace:    s.Meta().Workspace,
			Participants: s.Count(),
			Capacity:     s.Meta().Capacity,
			AgeSeconds:   now.Sub(s.Meta().CreatedAt).Seconds(),
		}
	})
}

// Join inserts the participant into the session and records the peer
// index entry in the same critical section.
func (st *SessionStore) Join(id domain.SessionID, p *domain.Participant, conn core.SignalConn) ([]core.ParticipantDTO, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	others, err := sess.Join(p, conn)
	if err != nil {
		return nil, err
	}
	st.byPeer[p.Peer] = id
	metricParticipants.Inc()
	return others, nil
}

// RemovePeer drops the peer from its session and from the index.
// Idempotent: an unknown peer is a no-op. Returns the session and the
// removed participant so the caller can announce the departure.
func (st *SessionStore) RemovePeer(peer domain.PeerID) (*core.Session, *domain.Participant, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	id, ok := st.byPeer[peer]
	if !ok {
		return nil, nil, false
	}
	delete(st.byPeer, peer)
	sess := st.byID[id]
	part, removed := sess.Remove(peer)
	if !removed {
		return nil, nil, false
	}
	metricParticipants.Dec()
	return sess, part, true
}

// SessionOfPeer resolves the session a peer currently belongs to.
func (st *SessionStore) SessionOfPeer(peer domain.PeerID) (*core.Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	id, ok := st.byPeer[peer]
	if !ok {
		return nil, false
	}
	sess, ok := st.byID[id]
	return sess, ok
}

// Remove unregisters the session and clears every index entry that
// pointed at it. The caller is responsible for having notified and
// drained the participants.
func (st *SessionStore) Remove(id domain.SessionID) (*core.Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.byID[id]
	if !ok {
		return nil, false
	}
	for peer, sid := range st.byPeer {
		if sid == id {
			delete(st.byPeer, peer)
			metricParticipants.Dec()
		}
	}
	delete(st.byID, id)
	metricSessionsActive.Dec()
	log.Info().Str("module", "app.store").Str("session", string(id)).Msg("session removed")
	return sess, true
}

// RemoveIfEmptySince deletes the session only if it is still empty
// and has been empty since before the cutoff, re-checked under the
// store lock so a join racing the reaper wins.
func (st *SessionStore) RemoveIfEmptySince(id domain.SessionID, cutoff time.Time) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.byID[id]
	if !ok {
		return false
	}
	empty := sess.EmptySince()
	if empty.IsZero() || empty.After(cutoff) {
		return false
	}
	delete(st.byID, id)
	metricSessionsActive.Dec()
	log.Info().Str("module", "app.store").Str("session", string(id)).Msg("session reaped")
	return true
}

// All snapshots the registered sessions for the reaper's sweep.
func (st *SessionStore) All() []*core.Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return lo.Values(st.byID)
}
