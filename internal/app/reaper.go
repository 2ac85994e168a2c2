package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Reaper periodically removes sessions that have sat empty for longer
// than the TTL. Active sessions and freshly emptied ones are left
// alone; explicit deletion stays the coordinator's job.
type Reaper struct {
	store    *SessionStore
	ttl      time.Duration
	interval time.Duration

	timeNow func() time.Time
}

func NewReaper(store *SessionStore, ttl, interval time.Duration) *Reaper {
	return &Reaper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		timeNow:  time.Now,
	}
}

// Run sweeps on the configured interval until the context ends.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	log.Info().Str("module", "app.reaper").
		Dur("ttl", r.ttl).
		Dur("interval", r.interval).
		Msg("reaper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.reaper").Msg("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep removes every session empty since before now-ttl. The store
// re-checks emptiness under its lock, so a join landing mid-sweep
// keeps its session.
func (r *Reaper) Sweep() int {
	cutoff := r.timeNow().Add(-r.ttl)
	reaped := 0
	for _, sess := range r.store.All() {
		empty := sess.EmptySince()
		if empty.IsZero() || empty.After(cutoff) {
			continue
		}
		if r.store.RemoveIfEmptySince(sess.Meta().ID, cutoff) {
			metricSessionsReaped.Inc()
			reaped++
		}
	}
	return reaped
}
