package services

import (
	"context"
	"fmt"

	"ticketing-realtime/internal/domain"
	"ticketing-realtime/internal/metrics"
	"ticketing-realtime/pkg/logger"
)

// SaleRecorder observes completed sales before the dashboard is recomputed.
type SaleRecorder interface {
	RecordSale(sale domain.Sale)
}

// Orchestrator turns business mutations into pushes. Every entry point runs in the same
// order: dashboard first, then the event room, then notifications.
type Orchestrator struct {
	dashboard     domain.DashboardPusher
	broadcaster   domain.Broadcaster
	notifications domain.NotificationPublisher
	notifyOnSale  bool
	sales         SaleRecorder
	metrics       *metrics.Metrics
	log           logger.Logger
}

func NewOrchestrator(dashboard domain.DashboardPusher, broadcaster domain.Broadcaster,
	notifications domain.NotificationPublisher, notifyOnSale bool, m *metrics.Metrics, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		dashboard:     dashboard,
		broadcaster:   broadcaster,
		notifications: notifications,
		notifyOnSale:  notifyOnSale,
		metrics:       m,
		log:           log,
	}
}

// RecordSalesTo feeds every completed sale to r, used when the dashboard is backed by
// an in-process ledger instead of the database.
func (o *Orchestrator) RecordSalesTo(r SaleRecorder) {
	o.sales = r
}

// Start consumes mutation events from the bus until ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	o.log.Info("Starting mutation orchestrator")
	return subscriber.SubscribeToMutations(ctx, o.HandleMutation)
}

func (o *Orchestrator) HandleMutation(ctx context.Context, event *domain.MutationEvent) error {
	if err := event.Validate(); err != nil {
		o.log.Warn("Rejected mutation event", "type", event.Type, "error", err)
		return fmt.Errorf("mutation %q: %w", event.Type, err)
	}
	o.log.Info("Handling mutation event", "type", event.Type, "event_id", event.EventID)
	o.metrics.MutationsHandled.WithLabelValues(string(event.Type)).Inc()

	switch event.Type {
	case domain.MutationSaleCompleted:
		return o.OnSaleCompleted(ctx, *event.Sale)
	case domain.MutationSeatStatusChanged:
		o.OnSeatStatusChanged(ctx, event.EventID, event.SeatID, event.Status)
	case domain.MutationSeatsUpdated:
		o.OnSeatsUpdated(ctx, event.EventID, event.Seats)
	case domain.MutationAlertCreated:
		_, err := o.OnAlertCreated(ctx, *event.Alert)
		return err
	case domain.MutationDataChanged:
		o.OnDataChanged(ctx, event.Reason)
	}
	return nil
}

// OnSaleCompleted pushes the refreshed dashboard and the sale to admins, the sale to the
// event room, then publishes a sale notification to admins when enabled. Only the
// notification can fail the call.
func (o *Orchestrator) OnSaleCompleted(ctx context.Context, sale domain.Sale) error {
	if o.sales != nil {
		o.sales.RecordSale(sale)
	}
	o.refreshDashboard(ctx)
	o.broadcaster.ToRole(domain.RoleAdmin, domain.NewSale{Sale: sale})

	o.broadcaster.ToRoom(domain.EventRoom(sale.EventID), domain.SalesUpdate{EventID: sale.EventID, Sale: sale})

	if !o.notifyOnSale {
		return nil
	}
	_, err := o.notifications.Publish(ctx,
		domain.NotificationTarget{Kind: domain.TargetRole, Role: domain.RoleAdmin},
		nil,
		domain.NotificationPayload{
			Title:       "New sale",
			Body:        fmt.Sprintf("%d ticket(s) sold for event %s, total %.2f", sale.TicketCount, sale.EventID, sale.Amount),
			Category:    domain.CategorySale,
			Link:        "/events/" + sale.EventID + "/sales",
			ReferenceID: sale.ID,
		})
	if err != nil {
		return fmt.Errorf("sale notification: %w", err)
	}
	return nil
}

func (o *Orchestrator) OnSeatStatusChanged(ctx context.Context, eventID, seatID string, status domain.SeatStatus) {
	o.refreshDashboard(ctx)
	o.broadcaster.ToRoom(domain.EventRoom(eventID), domain.SeatStatusChange{
		EventID: eventID,
		SeatID:  seatID,
		Status:  status,
	})
}

// OnSeatsUpdated replaces a batch of seat states, for example after a seat-map edit.
func (o *Orchestrator) OnSeatsUpdated(ctx context.Context, eventID string, seats []domain.SeatState) {
	o.refreshDashboard(ctx)
	o.broadcaster.ToRoom(domain.EventRoom(eventID), domain.SeatsUpdate{EventID: eventID, Seats: seats})
}

// OnAlertCreated publishes a producer's alert. The store error is returned to the producer.
func (o *Orchestrator) OnAlertCreated(ctx context.Context, alert domain.Alert) (*domain.Notification, error) {
	o.refreshDashboard(ctx)
	return o.notifications.Publish(ctx, alert.Target, alert.Recipients, alert.Payload)
}

// OnDataChanged is the bare invalidation for mutations with no room or notification side.
func (o *Orchestrator) OnDataChanged(ctx context.Context, reason string) {
	o.log.Debug("Data changed", "reason", reason)
	o.refreshDashboard(ctx)
}

func (o *Orchestrator) refreshDashboard(ctx context.Context) {
	o.dashboard.Invalidate()
	if err := o.dashboard.PushToAdmins(ctx); err != nil {
		o.log.Warn("Dashboard push degraded", "error", err)
	}
}
