package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/audionoise/jam/internal/core"
	"github.com/audionoise/jam/internal/domain"
)

func TestReaper_SweepsOnlyStaleEmptySessions(t *testing.T) {
	req := require.New(t)
	st := NewSessionStore()

	stale := core.NewSession(domain.NewSession("ws-1", "creator", 8, time.Now().Add(-5*time.Hour)))
	st.Put(stale)
	fresh := core.NewSession(domain.NewSession("ws-1", "creator", 8, time.Now().Add(-time.Hour)))
	st.Put(fresh)
	active := core.NewSession(domain.NewSession("ws-1", "creator", 8, time.Now().Add(-6*time.Hour)))
	st.Put(active)
	joinStore(t, st, active.Meta().ID, "alice")

	r := NewReaper(st, 4*time.Hour, time.Minute)
	req.Equal(1, r.Sweep())

	_, ok := st.Get(stale.Meta().ID)
	req.False(ok)
	_, ok = st.Get(fresh.Meta().ID)
	req.True(ok)
	_, ok = st.Get(active.Meta().ID)
	req.True(ok)
}

func TestReaper_SessionEmptiedRecentlyIsRetained(t *testing.T) {
	req := require.New(t)
	st := NewSessionStore()

	// Created long ago but only just emptied: the TTL clock restarts
	// at the last leave, not at creation.
	sess := core.NewSession(domain.NewSession("ws-1", "creator", 8, time.Now().Add(-10*time.Hour)))
	st.Put(sess)
	p := joinStore(t, st, sess.Meta().ID, "alice")
	_, _, ok := st.RemovePeer(p.Peer)
	req.True(ok)

	r := NewReaper(st, 4*time.Hour, time.Minute)
	req.Equal(0, r.Sweep())
	_, found := st.Get(sess.Meta().ID)
	req.True(found)
}
