package services

import (
	"context"
	"fmt"
	"slices"

	"ticketing-realtime/internal/domain"
	"ticketing-realtime/internal/metrics"
	"ticketing-realtime/pkg/logger"
	"ticketing-realtime/pkg/utils"

	"github.com/jonboulle/clockwork"
)

// NotificationService persists notifications and delivers them live. Live delivery is
// best-effort; the store is the source of truth and feeds reconnect catch-up.
type NotificationService struct {
	repo         domain.NotificationRepository
	broadcaster  domain.Broadcaster
	clock        clockwork.Clock
	catchupLimit int
	metrics      *metrics.Metrics
	log          logger.Logger
}

var _ domain.NotificationPublisher = (*NotificationService)(nil)

func NewNotificationService(repo domain.NotificationRepository, broadcaster domain.Broadcaster, clock clockwork.Clock,
	catchupLimit int, m *metrics.Metrics, log logger.Logger) *NotificationService {
	return &NotificationService{
		repo:         repo,
		broadcaster:  broadcaster,
		clock:        clock,
		catchupLimit: catchupLimit,
		metrics:      m,
		log:          log,
	}
}

func (s *NotificationService) Publish(ctx context.Context, target domain.NotificationTarget, recipients []string,
	payload domain.NotificationPayload) (*domain.Notification, error) {
	if target.Kind == domain.TargetSpecific {
		recipients = dedupe(recipients)
	}
	if err := validateTarget(target, recipients); err != nil {
		return nil, err
	}
	if payload.Title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidNotification)
	}

	notification := &domain.Notification{
		ID:      utils.GenerateID("notif"),
		Target:  target,
		Payload: payload,
		SentAt:  s.clock.Now(),
	}
	if target.Kind == domain.TargetSpecific {
		notification.Recipients = recipients
	}
	if target.Kind != domain.TargetRole {
		notification.Target.Role = ""
	}

	if err := s.repo.Insert(ctx, notification); err != nil {
		s.log.Error("Failed to store notification", "notification_id", notification.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.metrics.NotificationsCreated.WithLabelValues(string(target.Kind)).Inc()

	msg := domain.NewNotification{Notification: *notification}
	var delivered int
	switch target.Kind {
	case domain.TargetAll:
		delivered = s.broadcaster.ToAll(msg)
	case domain.TargetRole:
		delivered = s.broadcaster.ToRole(target.Role, msg)
	case domain.TargetSpecific:
		delivered = s.broadcaster.ToUsers(notification.Recipients, msg)
	}

	s.log.Info("Notification published", "notification_id", notification.ID, "target", target.Kind,
		"role", target.Role, "delivered", delivered)
	return notification, nil
}

// UnreadFor returns the catch-up set for a (re)connecting user, newest first. A store
// failure yields an empty set rather than failing the handshake.
func (s *NotificationService) UnreadFor(ctx context.Context, userID string, role domain.Role) []domain.Notification {
	list, err := s.repo.Query(ctx, domain.NotificationFilter{
		UserID:     userID,
		Role:       role,
		UnreadOnly: true,
		Limit:      s.catchupLimit,
	})
	if err != nil {
		s.log.Warn("Notification catch-up unavailable", "user_id", userID, "error", err)
		return []domain.Notification{}
	}

	out := make([]domain.Notification, 0, len(list))
	for _, n := range list {
		if n.IsUnreadFor(userID, role) {
			out = append(out, *n)
		}
	}
	return out
}

// MarkRead records that userID has read the notification. Marking twice is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, userID string, role domain.Role, notificationID string) error {
	list, err := s.repo.Query(ctx, domain.NotificationFilter{ID: notificationID})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if len(list) == 0 {
		return domain.ErrNotificationNotFound
	}

	notification := list[0]
	if !notification.EligibleFor(userID, role) {
		return domain.ErrNotEligible
	}
	if notification.IsReadBy(userID) {
		return nil
	}

	if err := s.repo.UpdateReadBy(ctx, notificationID, userID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// MarkAllRead marks every notification currently unread for the user and returns their ids.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string, role domain.Role) ([]string, error) {
	list, err := s.repo.Query(ctx, domain.NotificationFilter{
		UserID:     userID,
		Role:       role,
		UnreadOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	marked := make([]string, 0, len(list))
	for _, n := range list {
		if err := s.repo.UpdateReadBy(ctx, n.ID, userID); err != nil {
			return marked, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		marked = append(marked, n.ID)
	}

	s.log.Debug("Marked notifications read", "user_id", userID, "count", len(marked))
	return marked, nil
}

func validateTarget(target domain.NotificationTarget, recipients []string) error {
	switch target.Kind {
	case domain.TargetAll:
		return nil
	case domain.TargetRole:
		if !target.Role.Valid() {
			return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidTarget, target.Role)
		}
		return nil
	case domain.TargetSpecific:
		if len(recipients) == 0 {
			return fmt.Errorf("%w: specific target needs recipients", domain.ErrInvalidTarget)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidTarget, target.Kind)
	}
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
