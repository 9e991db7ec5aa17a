package services

import (
	"time"

	"ticketing-realtime/internal/domain"
	"ticketing-realtime/pkg/logger"

	"github.com/jonboulle/clockwork"
)

// IdleEvictor is the part of the connection registry the reaper needs.
type IdleEvictor interface {
	List() []domain.Connection
	EvictIfIdle(connectionID string, cutoff time.Time) bool
}

// IdleReaper evicts connections that are still open but have stopped sending messages.
type IdleReaper struct {
	registry  IdleEvictor
	clock     clockwork.Clock
	threshold time.Duration
	log       logger.Logger
}

func NewIdleReaper(registry IdleEvictor, clock clockwork.Clock, threshold time.Duration, log logger.Logger) *IdleReaper {
	return &IdleReaper{
		registry:  registry,
		clock:     clock,
		threshold: threshold,
		log:       log,
	}
}

// Sweep evicts every connection whose last activity is older than now-idleThreshold
// and returns how many were evicted.
func (r *IdleReaper) Sweep(now time.Time, idleThreshold time.Duration) int {
	cutoff := now.Add(-idleThreshold)

	evicted := 0
	for _, conn := range r.registry.List() {
		if !conn.LastActivityAt.Before(cutoff) {
			continue
		}
		// Re-checked under the registry lock in case the connection was touched meanwhile.
		if r.registry.EvictIfIdle(conn.ID, cutoff) {
			evicted++
		}
	}

	if evicted > 0 {
		r.log.Info("Reaped idle connections", "evicted", evicted, "cutoff", cutoff)
	}
	return evicted
}

// Run sweeps with the configured threshold at the current time.
func (r *IdleReaper) Run() int {
	return r.Sweep(r.clock.Now(), r.threshold)
}
