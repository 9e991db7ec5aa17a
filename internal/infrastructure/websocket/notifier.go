package websocket

import (
	"encoding/json"

	"ticketing-realtime/internal/domain"
	"ticketing-realtime/internal/metrics"
	"ticketing-realtime/pkg/logger"

	"github.com/jonboulle/clockwork"
)

// Broadcaster resolves targets from Registry and RoomDirectory snapshots and pushes
// one encoded envelope to each. A failed send evicts that connection; the rest of the
// broadcast continues.
type Broadcaster struct {
	registry *Registry
	clock    clockwork.Clock
	metrics  *metrics.Metrics
	log      logger.Logger
}

var _ domain.Broadcaster = (*Broadcaster)(nil)

func NewBroadcaster(registry *Registry, clock clockwork.Clock, m *metrics.Metrics, log logger.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		clock:    clock,
		metrics:  m,
		log:      log,
	}
}

func (b *Broadcaster) ToAll(msg domain.Message) int {
	return b.deliver(connectionIDs(b.registry.List()), msg)
}

func (b *Broadcaster) ToRoom(roomID string, msg domain.Message) int {
	return b.deliver(b.registry.Rooms().Members(roomID), msg)
}

func (b *Broadcaster) ToRole(role domain.Role, msg domain.Message) int {
	return b.deliver(connectionIDs(b.registry.ListByRole(role)), msg)
}

func (b *Broadcaster) ToConnections(ids []string, msg domain.Message) int {
	return b.deliver(ids, msg)
}

// ToUsers delivers to every connection held by any of the given users.
func (b *Broadcaster) ToUsers(userIDs []string, msg domain.Message) int {
	seen := make(map[string]struct{}, len(userIDs))
	var ids []string
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		ids = append(ids, connectionIDs(b.registry.ListByUser(userID))...)
	}
	return b.deliver(ids, msg)
}

// deliver returns the number of connections the message was handed to.
func (b *Broadcaster) deliver(ids []string, msg domain.Message) int {
	if len(ids) == 0 {
		return 0
	}

	envelope := domain.NewEnvelope(msg, b.clock.Now())
	messageBytes, err := json.Marshal(envelope)
	if err != nil {
		b.log.Error("Failed to encode message", "type", envelope.Type, "error", err)
		return 0
	}

	delivered := 0
	for _, id := range ids {
		session, ok := b.registry.session(id)
		if !ok {
			// Left between target resolution and send.
			continue
		}

		if err := session.Send(messageBytes); err != nil {
			b.metrics.SendFailures.Inc()
			b.log.Warn("Failed to send message", "connection_id", id, "type", envelope.Type, "error", err)
			b.registry.Evict(id, ReasonSendFailure)
			continue
		}
		delivered++
	}

	b.metrics.MessagesSent.WithLabelValues(string(envelope.Type)).Add(float64(delivered))
	b.log.Debug("Broadcast delivered", "type", envelope.Type, "targets", len(ids), "delivered", delivered)
	return delivered
}

func connectionIDs(conns []domain.Connection) []string {
	ids := make([]string, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.ID)
	}
	return ids
}
