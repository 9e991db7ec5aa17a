package websocket

import (
	"context"
	"sync"
	"time"

	"ticketing-realtime/internal/domain"
	"ticketing-realtime/internal/metrics"
	"ticketing-realtime/pkg/logger"
	"ticketing-realtime/pkg/utils"

	"github.com/jonboulle/clockwork"
)

// Eviction reasons, used for logs and metrics.
const (
	ReasonSendFailure = "send_failure"
	ReasonIdle        = "idle"
	ReasonShutdown    = "shutdown"
)

type registryEntry struct {
	conn    domain.Connection
	session domain.Session
}

// Registry owns the set of live connections. Removing a connection also removes it
// from every room of the RoomDirectory.
type Registry struct {
	connections map[string]*registryEntry // connectionID -> entry
	rooms       *RoomDirectory
	onRemove    []func(domain.Connection)
	clock       clockwork.Clock
	metrics     *metrics.Metrics
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewRegistry(rooms *RoomDirectory, clock clockwork.Clock, m *metrics.Metrics, log logger.Logger) *Registry {
	return &Registry{
		connections: make(map[string]*registryEntry),
		rooms:       rooms,
		clock:       clock,
		metrics:     m,
		log:         log,
	}
}

// Rooms exposes the directory the registry cascades into.
func (r *Registry) Rooms() *RoomDirectory {
	return r.rooms
}

// OnRemove registers fn to run after a connection leaves the registry, for any reason.
// Hooks run outside the registry lock. Register hooks before admitting connections.
func (r *Registry) OnRemove(fn func(domain.Connection)) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.onRemove = append(r.onRemove, fn)
}

// Admit registers an authenticated session and joins it to its role room.
func (r *Registry) Admit(session domain.Session, userID string, role domain.Role) (string, error) {
	if session == nil || userID == "" || !role.Valid() {
		return "", domain.ErrAuthRejected
	}

	now := r.clock.Now()
	conn := domain.Connection{
		ID:             utils.GenerateID("conn"),
		UserID:         userID,
		Role:           role,
		ConnectedAt:    now,
		LastActivityAt: now,
	}

	r.mutex.Lock()
	r.connections[conn.ID] = &registryEntry{conn: conn, session: session}
	r.rooms.Join(domain.RoleRoom(role), conn.ID)
	r.mutex.Unlock()

	r.metrics.ActiveConnections.WithLabelValues(string(role)).Inc()

	r.log.Info("Connection admitted", "connection_id", conn.ID, "user_id", userID, "role", role)
	return conn.ID, nil
}

// JoinRoom adds a registered connection to roomID. It reports false, and joins nothing,
// when the connection is already gone.
func (r *Registry) JoinRoom(connectionID, roomID string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if _, exists := r.connections[connectionID]; !exists {
		return false
	}
	r.rooms.Join(roomID, connectionID)
	return true
}

// Touch refreshes the connection's last activity time. Unknown ids are ignored.
func (r *Registry) Touch(connectionID string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e, exists := r.connections[connectionID]
	if !exists {
		return false
	}
	e.conn.LastActivityAt = r.clock.Now()
	return true
}

// Remove deletes the connection and its room memberships. Removing an unknown id is a no-op.
// The session is not closed; the transport owns its lifecycle.
func (r *Registry) Remove(connectionID string) bool {
	e, removed := r.removeIf(connectionID, nil)
	if removed {
		r.log.Info("Connection removed", "connection_id", connectionID, "user_id", e.conn.UserID)
	}
	return removed
}

// Evict removes the connection and closes its session so the transport's read loop ends.
func (r *Registry) Evict(connectionID, reason string) bool {
	e, removed := r.removeIf(connectionID, nil)
	if !removed {
		return false
	}
	r.closeEvicted(e, reason)
	return true
}

// EvictIfIdle evicts the connection only if its last activity is before cutoff,
// checked under the registry lock.
func (r *Registry) EvictIfIdle(connectionID string, cutoff time.Time) bool {
	e, removed := r.removeIf(connectionID, func(e *registryEntry) bool {
		return e.conn.LastActivityAt.Before(cutoff)
	})
	if !removed {
		return false
	}
	r.closeEvicted(e, ReasonIdle)
	return true
}

func (r *Registry) closeEvicted(e *registryEntry, reason string) {
	if err := e.session.Close(); err != nil {
		r.log.Debug("Failed to close evicted session", "connection_id", e.conn.ID, "error", err)
	}
	r.metrics.Evictions.WithLabelValues(reason).Inc()
	r.log.Info("Connection evicted", "connection_id", e.conn.ID, "user_id", e.conn.UserID, "reason", reason)
}

func (r *Registry) removeIf(connectionID string, pred func(*registryEntry) bool) (*registryEntry, bool) {
	r.mutex.Lock()
	e, exists := r.connections[connectionID]
	if !exists || (pred != nil && !pred(e)) {
		r.mutex.Unlock()
		return nil, false
	}
	delete(r.connections, connectionID)
	hooks := r.onRemove
	r.mutex.Unlock()

	r.rooms.LeaveAll(connectionID)
	r.metrics.ActiveConnections.WithLabelValues(string(e.conn.Role)).Dec()

	for _, hook := range hooks {
		hook(e.conn)
	}
	return e, true
}

func (r *Registry) Get(connectionID string) (domain.Connection, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	e, exists := r.connections[connectionID]
	if !exists {
		return domain.Connection{}, false
	}
	return e.conn, true
}

func (r *Registry) List() []domain.Connection {
	return r.filter(func(domain.Connection) bool { return true })
}

func (r *Registry) ListByRole(role domain.Role) []domain.Connection {
	return r.filter(func(c domain.Connection) bool { return c.Role == role })
}

func (r *Registry) ListByUser(userID string) []domain.Connection {
	return r.filter(func(c domain.Connection) bool { return c.UserID == userID })
}

func (r *Registry) filter(keep func(domain.Connection) bool) []domain.Connection {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var out []domain.Connection
	for _, e := range r.connections {
		if keep(e.conn) {
			out = append(out, e.conn)
		}
	}
	return out
}

func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.connections)
}

func (r *Registry) session(connectionID string) (domain.Session, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	e, exists := r.connections[connectionID]
	if !exists {
		return nil, false
	}
	return e.session, true
}

// Stats returns connection counts for operational visibility.
func (r *Registry) Stats() domain.ConnectionStats {
	r.mutex.RLock()
	perRole := make(map[domain.Role]int)
	for _, e := range r.connections {
		perRole[e.conn.Role]++
	}
	total := len(r.connections)
	r.mutex.RUnlock()

	return domain.ConnectionStats{
		TotalConnections: total,
		PerRoleCounts:    perRole,
		PerRoomCounts:    r.rooms.Counts(),
	}
}

type flushingSession interface {
	Done() <-chan struct{}
}

// Drain evicts every connection, then waits until ctx ends for evicted sessions to flush
// their queues and close. Called once at shutdown after clients were notified.
func (r *Registry) Drain(ctx context.Context) int {
	var pending []flushingSession

	r.mutex.RLock()
	ids := make([]string, 0, len(r.connections))
	for id, e := range r.connections {
		ids = append(ids, id)
		if fs, ok := e.session.(flushingSession); ok {
			pending = append(pending, fs)
		}
	}
	r.mutex.RUnlock()

	drained := 0
	for _, id := range ids {
		if r.Evict(id, ReasonShutdown) {
			drained++
		}
	}

	for _, fs := range pending {
		select {
		case <-fs.Done():
		case <-ctx.Done():
			r.log.Warn("Drain deadline reached before all sessions closed", "connections", drained)
			return drained
		}
	}

	r.log.Info("Registry drained", "connections", drained)
	return drained
}
