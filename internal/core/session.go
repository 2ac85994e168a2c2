package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/audionoise/jam/internal/domain"
)

// member pairs participant meta with its transport endpoint. The
// session stores a non-owning reference; the adapter owns the conn.
type member struct {
	part *domain.Participant
	conn SignalConn
}

// ParticipantDTO is a read-only view for APIs and wire messages.
type ParticipantDTO struct {
	Peer     domain.PeerID `json:"peerId"`
	User     domain.UserID `json:"userId"`
	Username string        `json:"username"`
	Muted    bool          `json:"muted"`
	Deafened bool          `json:"deafened"`
}

// Session is a threadsafe in-memory jam session. The two maps are
// only ever mutated together under mu, so a user lookup and a peer
// lookup can never disagree. It never closes adapter-owned resources.
type Session struct {
	meta *domain.Session

	mu         sync.RWMutex
	byPeer     map[domain.PeerID]*member
	byUser     map[domain.UserID]domain.PeerID
	emptySince time.Time
}

func NewSession(meta *domain.Session) *Session {
	return &Session{
		meta:       meta,
		byPeer:     make(map[domain.PeerID]*member),
		byUser:     make(map[domain.UserID]domain.PeerID),
		emptySince: meta.CreatedAt,
	}
}

func (s *Session) Meta() *domain.Session { return s.meta }

func (s *Session) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byPeer)
}

// EmptySince returns when the session last dropped to zero
// participants, or the zero time while it is active.
func (s *Session) EmptySince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.byPeer) > 0 {
		return time.Time{}
	}
	return s.emptySince
}

// Join inserts a participant, enforcing the capacity limit and the
// one-participant-per-user rule. Both checks run under the lock, so
// they hold even when the caller's authorization round-trip raced
// another join. On success it returns the participants that were
// present immediately before the insert, captured under the same
// lock so the new peer's roster can never include itself or a
// concurrent joiner it will also hear about via broadcast.
func (s *Session) Join(p *domain.Participant, conn SignalConn) ([]ParticipantDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUser[p.User]; ok {
		return nil, domain.ErrConflict
	}
	if len(s.byPeer) >= s.meta.Capacity {
		return nil, domain.ErrCapacity
	}
	others := lo.MapToSlice(s.byPeer, func(_ domain.PeerID, m *member) ParticipantDTO {
		return ParticipantDTO{
			Peer:     m.part.Peer,
			User:     m.part.User,
			Username: m.part.Username,
			Muted:    m.part.Muted,
			Deafened: m.part.Deafened,
		}
	})
	s.byPeer[p.Peer] = &member{part: p, conn: conn}
	s.byUser[p.User] = p.Peer
	log.Info().Str("module", "core.session").
		Str("session", string(s.meta.ID)).
		Str("peer", string(p.Peer)).
		Str("user", string(p.User)).
		Msg("participant joined")
	return others, nil
}

// Remove deletes the participant if present. Safe to call twice; the
// second call reports false and changes nothing.
func (s *Session) Remove(peer domain.PeerID) (*domain.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byPeer[peer]
	if !ok {
		return nil, false
	}
	delete(s.byPeer, peer)
	delete(s.byUser, m.part.User)
	if len(s.byPeer) == 0 {
		s.emptySince = time.Now()
	}
	log.Info().Str("module", "core.session").
		Str("session", string(s.meta.ID)).
		Str("peer", string(peer)).
		Msg("participant removed")
	return m.part, true
}

// Peer looks up a participant and its transport by peer identifier.
func (s *Session) Peer(peer domain.PeerID) (*domain.Participant, SignalConn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byPeer[peer]
	if !ok {
		return nil, nil, false
	}
	return m.part, m.conn, true
}

// SetMuteState updates the participant's flags, reporting whether the
// peer was present.
func (s *Session) SetMuteState(peer domain.PeerID, muted, deafened bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byPeer[peer]
	if !ok {
		return false
	}
	m.part.Muted = muted
	m.part.Deafened = deafened
	return true
}

func (s *Session) Snapshot() []ParticipantDTO {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.MapToSlice(s.byPeer, func(_ domain.PeerID, m *member) ParticipantDTO {
		return ParticipantDTO{
			Peer:     m.part.Peer,
			User:     m.part.User,
			Username: m.part.Username,
			Muted:    m.part.Muted,
			Deafened: m.part.Deafened,
		}
	})
}

// Broadcast fans data out to every participant except exclude.
// Delivery is best-effort, at-most-once: a member whose transport is
// not writable is skipped, never retried. TrySend does not block, so
// holding the read lock across the loop is safe.
func (s *Session) Broadcast(data Frame, exclude domain.PeerID) PublishResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := PublishResult{}
	for peer, m := range s.byPeer {
		if peer == exclude {
			continue
		}
		if err := m.conn.TrySend(data); err != nil {
			res.Dropped++
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.session").
		Str("session", string(s.meta.ID)).
		Int("sent_to", res.SentTo).
		Int("dropped", res.Dropped).
		Msg("broadcast result")
	return res
}

// Drain removes every participant at once and hands back their
// transports so the caller can force-close them after a termination
// notice. Used by explicit deletion and shutdown.
func (s *Session) Drain() []SignalConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns := make([]SignalConn, 0, len(s.byPeer))
	peers := make([]domain.PeerID, 0, len(s.byPeer))
	for peer, m := range s.byPeer {
		conns = append(conns, m.conn)
		peers = append(peers, peer)
	}
	for _, peer := range peers {
		delete(s.byPeer, peer)
	}
	clear(s.byUser)
	s.emptySince = time.Now()
	return conns
}
