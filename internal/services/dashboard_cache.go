package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"ticketing-realtime/internal/domain"
	"ticketing-realtime/internal/metrics"
	"ticketing-realtime/pkg/logger"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// ConnectionCounter reports the number of live connections.
type ConnectionCounter interface {
	Count() int
}

// DashboardCache holds the single shared dashboard snapshot. Invalidate only bumps a
// generation counter; the next Get recomputes. Concurrent Gets for the same generation
// share one recomputation.
type DashboardCache struct {
	source      domain.StatsSource
	connections ConnectionCounter
	broadcaster domain.Broadcaster
	clock       clockwork.Clock
	metrics     *metrics.Metrics
	log         logger.Logger

	group       singleflight.Group
	mutex       sync.RWMutex
	snapshot    *domain.DashboardSnapshot
	generation  uint64
	computedGen uint64
}

var _ domain.DashboardPusher = (*DashboardCache)(nil)

func NewDashboardCache(source domain.StatsSource, connections ConnectionCounter, broadcaster domain.Broadcaster,
	clock clockwork.Clock, m *metrics.Metrics, log logger.Logger) *DashboardCache {
	return &DashboardCache{
		source:      source,
		connections: connections,
		broadcaster: broadcaster,
		clock:       clock,
		metrics:     m,
		log:         log,
	}
}

// Get returns the current snapshot, recomputing it first when stale.
//
// If recomputation fails and a previous snapshot exists, that snapshot is returned
// together with an error wrapping domain.ErrRecomputeFailure. Callers should treat the
// error as a warning whenever the snapshot is non-nil.
func (c *DashboardCache) Get(ctx context.Context) (*domain.DashboardSnapshot, error) {
	c.mutex.RLock()
	current, gen := c.snapshot, c.generation
	fresh := current != nil && c.computedGen == gen
	c.mutex.RUnlock()

	if fresh {
		return copySnapshot(current), nil
	}

	// The flight is detached so one caller giving up does not fail everyone sharing it;
	// each caller still stops waiting at its own deadline.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		return c.recompute(flightCtx, gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return c.stale(res.Err)
		}
		if res.Shared {
			c.log.Debug("Joined in-flight dashboard recompute", "generation", gen)
		}
		return copySnapshot(res.Val.(*domain.DashboardSnapshot)), nil
	case <-ctx.Done():
		return c.stale(fmt.Errorf("%w: %w", domain.ErrRecomputeFailure, ctx.Err()))
	}
}

// stale returns the last good snapshot, if any, alongside err.
func (c *DashboardCache) stale(err error) (*domain.DashboardSnapshot, error) {
	last := c.lastGood()
	if last == nil {
		return nil, err
	}
	c.log.Warn("Serving stale dashboard snapshot", "computed_at", last.ComputedAt, "error", err)
	return last, err
}

// Invalidate marks the snapshot stale without recomputing it.
func (c *DashboardCache) Invalidate() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.generation++
}

// Refresh forces a recomputation on behalf of an explicit client request.
func (c *DashboardCache) Refresh(ctx context.Context) (*domain.DashboardSnapshot, error) {
	c.Invalidate()
	return c.Get(ctx)
}

// PushToAdmins sends the current snapshot to every admin connection. A degraded
// snapshot is still pushed; the recompute error is returned as a warning.
func (c *DashboardCache) PushToAdmins(ctx context.Context) error {
	snapshot, err := c.Get(ctx)
	if snapshot == nil {
		return err
	}

	delivered := c.broadcaster.ToRole(domain.RoleAdmin, domain.DashboardStatsUpdate{Snapshot: *snapshot})
	c.log.Debug("Dashboard pushed to admins", "delivered", delivered, "computed_at", snapshot.ComputedAt)
	return err
}

func (c *DashboardCache) recompute(ctx context.Context, gen uint64) (*domain.DashboardSnapshot, error) {
	c.metrics.DashboardRecomputes.Inc()

	stats, err := c.source.ComputeDashboardStats(ctx)
	if err != nil {
		c.metrics.DashboardFailures.Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrRecomputeFailure, err)
	}
	stats.ConnectedClients = c.connections.Count()

	snapshot := &domain.DashboardSnapshot{
		DashboardStats: stats,
		ComputedAt:     c.clock.Now(),
	}

	c.mutex.Lock()
	// A slower flight for an older generation must not overwrite a newer result.
	if c.snapshot == nil || gen >= c.computedGen {
		c.snapshot = snapshot
		c.computedGen = gen
	}
	c.mutex.Unlock()

	return snapshot, nil
}

func (c *DashboardCache) lastGood() *domain.DashboardSnapshot {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if c.snapshot == nil {
		return nil
	}
	return copySnapshot(c.snapshot)
}

func copySnapshot(s *domain.DashboardSnapshot) *domain.DashboardSnapshot {
	c := *s
	return &c
}
