package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"ticketing-realtime/internal/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AdmitJoinsRoleRoom(t *testing.T) {
	h := newTestHub()

	id, _ := h.admit(t, "u1", domain.RoleAdmin)

	conn, ok := h.registry.Get(id)
	require.True(t, ok)
	assert.Equal(t, "u1", conn.UserID)
	assert.Equal(t, h.clock.Now(), conn.ConnectedAt)
	assert.Equal(t, conn.ConnectedAt, conn.LastActivityAt)
	assert.True(t, h.registry.Rooms().isMember("admin", id))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ActiveConnections.WithLabelValues("admin")))
}

func TestRegistry_AdmitRejectsInvalidIdentity(t *testing.T) {
	h := newTestHub()

	tests := []struct {
		name    string
		session domain.Session
		userID  string
		role    domain.Role
	}{
		{"nil session", nil, "u1", domain.RoleUser},
		{"empty user", &fakeSession{}, "", domain.RoleUser},
		{"unknown role", &fakeSession{}, "u1", domain.Role("root")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.registry.Admit(tt.session, tt.userID, tt.role)
			assert.ErrorIs(t, err, domain.ErrAuthRejected)
		})
	}
	assert.Zero(t, h.registry.Count())
}

func TestRegistry_SameUserHoldsSeveralConnections(t *testing.T) {
	h := newTestHub()

	a, _ := h.admit(t, "u1", domain.RoleUser)
	b, _ := h.admit(t, "u1", domain.RoleUser)

	assert.NotEqual(t, a, b)
	assert.Len(t, h.registry.ListByUser("u1"), 2)
}

func TestRegistry_RemoveCascadesRooms(t *testing.T) {
	h := newTestHub()
	id, session := h.admit(t, "u1", domain.RoleUser)
	h.registry.Rooms().Join("event_7", id)

	require.True(t, h.registry.Remove(id))

	assert.False(t, h.registry.Remove(id))
	assert.Empty(t, h.registry.Rooms().RoomsOf(id))
	assert.Empty(t, h.registry.Rooms().Members("event_7"))
	assert.False(t, session.isClosed())
}

func TestRegistry_EvictClosesSession(t *testing.T) {
	h := newTestHub()
	id, session := h.admit(t, "u1", domain.RoleUser)

	require.True(t, h.registry.Evict(id, ReasonSendFailure))

	assert.True(t, session.isClosed())
	_, ok := h.registry.Get(id)
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Evictions.WithLabelValues(ReasonSendFailure)))
}

func TestRegistry_OnRemoveHookRunsOnce(t *testing.T) {
	h := newTestHub()
	var removed []string
	h.registry.OnRemove(func(c domain.Connection) { removed = append(removed, c.ID) })

	id, _ := h.admit(t, "u1", domain.RoleAdmin)
	h.registry.Evict(id, ReasonIdle)
	h.registry.Remove(id)

	assert.Equal(t, []string{id}, removed)
}

func TestRegistry_EvictIfIdleRechecksActivity(t *testing.T) {
	h := newTestHub()
	id, session := h.admit(t, "u1", domain.RoleUser)

	h.clock.Advance(10 * time.Minute)
	cutoff := h.clock.Now().Add(-5 * time.Minute)
	h.registry.Touch(id)

	assert.False(t, h.registry.EvictIfIdle(id, cutoff))
	assert.False(t, session.isClosed())

	h.clock.Advance(6 * time.Minute)
	assert.True(t, h.registry.EvictIfIdle(id, h.clock.Now().Add(-5*time.Minute)))
	assert.True(t, session.isClosed())
}

func TestRegistry_TouchUnknownIsIgnored(t *testing.T) {
	h := newTestHub()
	assert.False(t, h.registry.Touch("conn_missing"))
}

func TestRegistry_Stats(t *testing.T) {
	h := newTestHub()
	a, _ := h.admit(t, "u1", domain.RoleAdmin)
	_, _ = h.admit(t, "u2", domain.RoleUser)
	_, _ = h.admit(t, "u3", domain.RoleUser)
	h.registry.Rooms().Join("event_1", a)

	stats := h.registry.Stats()

	assert.Equal(t, 3, stats.TotalConnections)
	assert.Equal(t, map[domain.Role]int{domain.RoleAdmin: 1, domain.RoleUser: 2}, stats.PerRoleCounts)
	assert.Equal(t, map[string]int{"admin": 1, "user": 2, "event_1": 1}, stats.PerRoomCounts)
}

func TestRegistry_Drain(t *testing.T) {
	h := newTestHub()
	_, s1 := h.admit(t, "u1", domain.RoleAdmin)
	_, s2 := h.admit(t, "u2", domain.RoleGuest)

	assert.Equal(t, 2, h.registry.Drain(context.Background()))
	assert.Zero(t, h.registry.Count())
	assert.True(t, s1.isClosed())
	assert.True(t, s2.isClosed())
	assert.Empty(t, h.registry.Rooms().Counts())
}

// flushingFake closes done shortly after Close, like a writer draining its queue.
type flushingFake struct {
	fakeSession
	done chan struct{}
	once sync.Once
}

func (s *flushingFake) Close() error {
	_ = s.fakeSession.Close()
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *flushingFake) Done() <-chan struct{} { return s.done }

func TestRegistry_DrainWaitsForSessionsToClose(t *testing.T) {
	h := newTestHub()
	s := &flushingFake{done: make(chan struct{})}
	_, err := h.registry.Admit(s, "u1", domain.RoleUser)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.Equal(t, 1, h.registry.Drain(ctx))
	select {
	case <-s.Done():
	default:
		t.Fatal("Drain returned before the session closed")
	}
}

func TestRegistry_DrainGivesUpAtDeadline(t *testing.T) {
	h := newTestHub()
	stuck := &stuckSession{done: make(chan struct{})}
	_, err := h.registry.Admit(stuck, "u1", domain.RoleUser)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Equal(t, 1, h.registry.Drain(ctx))
	assert.Zero(t, h.registry.Count())
}

// stuckSession never reports done.
type stuckSession struct {
	fakeSession
	done chan struct{}
}

func (s *stuckSession) Done() <-chan struct{} { return s.done }

func TestRegistry_JoinRoomAfterEviction(t *testing.T) {
	h := newTestHub()
	id, _ := h.admit(t, "u9", domain.RoleUser)

	require.True(t, h.registry.Evict(id, ReasonSendFailure))

	assert.False(t, h.registry.JoinRoom(id, "event_42"))
	assert.False(t, h.registry.Remove(id))
	assert.Empty(t, h.registry.Rooms().Members("event_42"))
	assert.Empty(t, h.registry.Stats().PerRoomCounts)
}

func TestRegistry_JoinRoom(t *testing.T) {
	h := newTestHub()
	id, _ := h.admit(t, "u1", domain.RoleUser)

	assert.True(t, h.registry.JoinRoom(id, "event_42"))
	assert.True(t, h.registry.JoinRoom(id, "event_42"))
	assert.Equal(t, []string{id}, h.registry.Rooms().Members("event_42"))

	h.registry.Remove(id)
	assert.Empty(t, h.registry.Rooms().Members("event_42"))
}
