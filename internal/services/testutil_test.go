package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ticketing-realtime/internal/domain"
)

var errDatabaseDown = errors.New("dial tcp: connection refused")

// stubStats counts recomputations. When release is set, every call blocks on it.
type stubStats struct {
	mu      sync.Mutex
	calls   int
	stats   domain.DashboardStats
	err     error
	release chan struct{}
}

func (s *stubStats) ComputeDashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	s.mu.Lock()
	s.calls++
	stats, err, release := s.stats, s.err, s.release
	s.mu.Unlock()

	if release != nil {
		<-release
	}
	return stats, err
}

func (s *stubStats) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubStats) set(stats domain.DashboardStats, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats, s.err = stats, err
}

type fixedCounter int

func (c fixedCounter) Count() int { return int(c) }

// recordingBroadcaster logs every call as "<scope>:<target>:<type>" in call order.
type recordingBroadcaster struct {
	mu       sync.Mutex
	calls    []string
	messages []domain.Message
}

func (b *recordingBroadcaster) record(scope, target string, msg domain.Message) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf("%s:%s:%s", scope, target, msg.MessageType()))
	b.messages = append(b.messages, msg)
	return 1
}

func (b *recordingBroadcaster) ToAll(msg domain.Message) int {
	return b.record("all", "*", msg)
}

func (b *recordingBroadcaster) ToRoom(roomID string, msg domain.Message) int {
	return b.record("room", roomID, msg)
}

func (b *recordingBroadcaster) ToRole(role domain.Role, msg domain.Message) int {
	return b.record("role", string(role), msg)
}

func (b *recordingBroadcaster) ToConnections(ids []string, msg domain.Message) int {
	return b.record("conns", fmt.Sprint(ids), msg)
}

func (b *recordingBroadcaster) ToUsers(userIDs []string, msg domain.Message) int {
	return b.record("users", fmt.Sprint(userIDs), msg)
}

func (b *recordingBroadcaster) recorded() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// failingRepository simulates an unreachable store.
type failingRepository struct{}

func (failingRepository) Insert(context.Context, *domain.Notification) error {
	return errDatabaseDown
}

func (failingRepository) Query(context.Context, domain.NotificationFilter) ([]*domain.Notification, error) {
	return nil, errDatabaseDown
}

func (failingRepository) UpdateReadBy(context.Context, string, string) error {
	return errDatabaseDown
}

type fakeSession struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeSession) Send([]byte) error { return nil }

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
