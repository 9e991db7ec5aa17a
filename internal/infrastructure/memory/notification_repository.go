package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"ticketing-realtime/internal/domain"
)

// NotificationRepository keeps notifications in process memory. Used in development
// mode and tests; contents are lost on restart.
type NotificationRepository struct {
	notifications map[string]*domain.Notification
	mutex         sync.RWMutex
}

var _ domain.NotificationRepository = (*NotificationRepository)(nil)

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		notifications: make(map[string]*domain.Notification),
	}
}

func (r *NotificationRepository) Insert(_ context.Context, notification *domain.Notification) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.notifications[notification.ID] = clone(notification)
	return nil
}

// Query returns matching notifications, newest first.
func (r *NotificationRepository) Query(_ context.Context, filter domain.NotificationFilter) ([]*domain.Notification, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var out []*domain.Notification
	for _, n := range r.notifications {
		if filter.ID != "" && n.ID != filter.ID {
			continue
		}
		if filter.UserID != "" && !n.EligibleFor(filter.UserID, filter.Role) {
			continue
		}
		if filter.UnreadOnly && n.IsReadBy(filter.UserID) {
			continue
		}
		out = append(out, clone(n))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].SentAt.After(out[j].SentAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateReadBy adds userID to the read set. Repeating it changes nothing.
func (r *NotificationRepository) UpdateReadBy(_ context.Context, notificationID, userID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	n, exists := r.notifications[notificationID]
	if !exists {
		return domain.ErrNotificationNotFound
	}
	if !slices.Contains(n.ReadBy, userID) {
		n.ReadBy = append(n.ReadBy, userID)
	}
	return nil
}

func clone(n *domain.Notification) *domain.Notification {
	c := *n
	c.Recipients = slices.Clone(n.Recipients)
	c.ReadBy = slices.Clone(n.ReadBy)
	return &c
}
