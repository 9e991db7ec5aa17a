package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"ticketing-realtime/internal/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_EnvelopeShape(t *testing.T) {
	h := newTestHub()
	_, session := h.admit(t, "u1", domain.RoleUser)

	n := h.broadcaster.ToAll(domain.ServerShutdown{Reason: "maintenance"})
	require.Equal(t, 1, n)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(session.frames[0], &raw))
	assert.JSONEq(t, `"server_shutdown"`, string(raw["type"]))
	assert.JSONEq(t, `{"reason":"maintenance"}`, string(raw["data"]))

	var ts time.Time
	require.NoError(t, json.Unmarshal(raw["timestamp"], &ts))
	assert.True(t, ts.Equal(h.clock.Now()))
}

func TestBroadcaster_RoomIsolation(t *testing.T) {
	h := newTestHub()
	inRoom, s1 := h.admit(t, "u1", domain.RoleUser)
	_, s2 := h.admit(t, "u2", domain.RoleUser)
	h.registry.Rooms().Join(domain.EventRoom("42"), inRoom)

	n := h.broadcaster.ToRoom(domain.EventRoom("42"), domain.SeatStatusChange{EventID: "42", SeatID: "A1", Status: domain.SeatSold})

	assert.Equal(t, 1, n)
	assert.Equal(t, []domain.MessageType{domain.MsgSeatStatusChange}, s1.types(t))
	assert.Empty(t, s2.types(t))
}

func TestBroadcaster_RoleIsolation(t *testing.T) {
	h := newTestHub()
	_, admin := h.admit(t, "a1", domain.RoleAdmin)
	_, organizer := h.admit(t, "o1", domain.RoleOrganizer)

	n := h.broadcaster.ToRole(domain.RoleAdmin, domain.NewSale{Sale: domain.Sale{ID: "s1", EventID: "42"}})

	assert.Equal(t, 1, n)
	assert.Len(t, admin.types(t), 1)
	assert.Empty(t, organizer.types(t))
}

func TestBroadcaster_ToUsersReachesEveryConnectionOnce(t *testing.T) {
	h := newTestHub()
	_, tab1 := h.admit(t, "u1", domain.RoleUser)
	_, tab2 := h.admit(t, "u1", domain.RoleUser)
	_, other := h.admit(t, "u2", domain.RoleUser)

	n := h.broadcaster.ToUsers([]string{"u1", "u1", "missing"}, domain.Pong{})

	assert.Equal(t, 2, n)
	assert.Len(t, tab1.types(t), 1)
	assert.Len(t, tab2.types(t), 1)
	assert.Empty(t, other.types(t))
}

func TestBroadcaster_FailedSendEvictsAndContinues(t *testing.T) {
	h := newTestHub()
	broken, brokenSession := h.admit(t, "u1", domain.RoleUser)
	brokenSession.fail = domain.ErrSendBufferFull
	h.registry.Rooms().Join("event_1", broken)
	_, healthy := h.admit(t, "u2", domain.RoleUser)

	n := h.broadcaster.ToAll(domain.Pong{})

	assert.Equal(t, 1, n)
	assert.Len(t, healthy.types(t), 1)
	assert.True(t, brokenSession.isClosed())
	_, ok := h.registry.Get(broken)
	assert.False(t, ok)
	assert.Empty(t, h.registry.Rooms().Members("event_1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SendFailures))
}

func TestBroadcaster_UnknownTargetsAreSkipped(t *testing.T) {
	h := newTestHub()
	assert.Zero(t, h.broadcaster.ToConnections([]string{"conn_gone"}, domain.Pong{}))
	assert.Zero(t, h.broadcaster.ToRoom("event_empty", domain.Pong{}))
}

func TestBroadcaster_PerConnectionOrder(t *testing.T) {
	h := newTestHub()
	id, session := h.admit(t, "u1", domain.RoleAdmin)

	h.broadcaster.ToConnections([]string{id}, domain.Connected{ConnectionID: id})
	h.broadcaster.ToRole(domain.RoleAdmin, domain.NewSale{})
	h.broadcaster.ToAll(domain.ServerShutdown{})

	assert.Equal(t, []domain.MessageType{
		domain.MsgConnected,
		domain.MsgNewSale,
		domain.MsgServerShutdown,
	}, session.types(t))
}
