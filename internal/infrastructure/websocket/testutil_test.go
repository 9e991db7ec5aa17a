package websocket

import (
	"encoding/json"
	"sync"
	"testing"

	"ticketing-realtime/internal/domain"
	"ticketing-realtime/internal/metrics"
	"ticketing-realtime/pkg/logger"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// fakeSession records every frame and can be told to fail.
type fakeSession struct {
	mu     sync.Mutex
	frames [][]byte
	fail   error
	closed bool
}

func (s *fakeSession) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if s.closed {
		return domain.ErrSessionClosed
	}
	s.frames = append(s.frames, data)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type decodedFrame struct {
	Type domain.MessageType `json:"type"`
	Data json.RawMessage    `json:"data"`
}

func (s *fakeSession) messages(t *testing.T) []decodedFrame {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]decodedFrame, 0, len(s.frames))
	for _, raw := range s.frames {
		var f decodedFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		out = append(out, f)
	}
	return out
}

func (s *fakeSession) types(t *testing.T) []domain.MessageType {
	t.Helper()
	var out []domain.MessageType
	for _, f := range s.messages(t) {
		out = append(out, f.Type)
	}
	return out
}

type testHub struct {
	clock       *clockwork.FakeClock
	registry    *Registry
	broadcaster *Broadcaster
	metrics     *metrics.Metrics
}

func newTestHub() *testHub {
	clock := clockwork.NewFakeClock()
	m := metrics.NewUnregistered()
	log := logger.NewNop()
	registry := NewRegistry(NewRoomDirectory(), clock, m, log)
	return &testHub{
		clock:       clock,
		registry:    registry,
		broadcaster: NewBroadcaster(registry, clock, m, log),
		metrics:     m,
	}
}

func (h *testHub) admit(t *testing.T, userID string, role domain.Role) (string, *fakeSession) {
	t.Helper()
	s := &fakeSession{}
	id, err := h.registry.Admit(s, userID, role)
	require.NoError(t, err)
	return id, s
}
