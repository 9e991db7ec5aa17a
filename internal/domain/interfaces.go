package domain

import (
	"context"
)

// Session is the borrowed transport handle of a connection. Send must not block.
type Session interface {
	Send(data []byte) error
	Close() error
}

// IdentityVerifier decodes a bearer credential into an identity.
type IdentityVerifier interface {
	Verify(token string) (*Identity, error)
}

// NotificationRepository is the durable notification store.
// UpdateReadBy has set-union semantics: repeating it is a no-op.
type NotificationRepository interface {
	Insert(ctx context.Context, notification *Notification) error
	Query(ctx context.Context, filter NotificationFilter) ([]*Notification, error)
	UpdateReadBy(ctx context.Context, notificationID, userID string) error
}

// StatsSource runs the aggregation query behind the admin dashboard.
type StatsSource interface {
	ComputeDashboardStats(ctx context.Context) (DashboardStats, error)
}

// Broadcaster fans messages out to live connections.
type Broadcaster interface {
	ToAll(msg Message) int
	ToRoom(roomID string, msg Message) int
	ToRole(role Role, msg Message) int
	ToConnections(connectionIDs []string, msg Message) int
	ToUsers(userIDs []string, msg Message) int
}

type DashboardPusher interface {
	Invalidate()
	PushToAdmins(ctx context.Context) error
}

type NotificationPublisher interface {
	Publish(ctx context.Context, target NotificationTarget, recipients []string, payload NotificationPayload) (*Notification, error)
}
