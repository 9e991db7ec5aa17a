package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"ticketing-realtime/internal/domain"
	"ticketing-realtime/pkg/logger"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPusher struct {
	mu            sync.Mutex
	invalidations int
	pushes        int
}

func (p *countingPusher) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidations++
}

func (p *countingPusher) PushToAdmins(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes++
	return nil
}

type staticAdmins []domain.Connection

func (a staticAdmins) ListByRole(domain.Role) []domain.Connection { return a }

func newTestScheduler(admins staticAdmins, pusher *countingPusher) *CronScheduler {
	clock := clockwork.NewFakeClock()
	reaper := NewIdleReaper(staticEvictor{}, clock, time.Minute, logger.NewNop())
	return NewCronScheduler(reaper, pusher, admins, time.Minute, 30*time.Second, logger.NewNop())
}

type staticEvictor struct{}

func (staticEvictor) List() []domain.Connection          { return nil }
func (staticEvictor) EvictIfIdle(string, time.Time) bool { return false }

func TestCronScheduler_SkipsPushWithoutAdmins(t *testing.T) {
	pusher := &countingPusher{}
	s := newTestScheduler(nil, pusher)

	s.pushDashboard(context.Background())

	assert.Zero(t, pusher.invalidations)
	assert.Zero(t, pusher.pushes)
}

func TestCronScheduler_PushRecomputes(t *testing.T) {
	pusher := &countingPusher{}
	s := newTestScheduler(staticAdmins{{ID: "conn_1", Role: domain.RoleAdmin}}, pusher)

	s.pushDashboard(context.Background())

	assert.Equal(t, 1, pusher.invalidations)
	assert.Equal(t, 1, pusher.pushes)
}

func TestCronScheduler_StartStop(t *testing.T) {
	s := newTestScheduler(nil, &countingPusher{})

	require.NoError(t, s.Start(context.Background()))
	assert.Len(t, s.cron.Entries(), 2)
	require.NoError(t, s.Stop())
}

func TestEvery(t *testing.T) {
	assert.Equal(t, "@every 1m0s", every(time.Minute))
	assert.Equal(t, "@every 30s", every(30*time.Second))
}
