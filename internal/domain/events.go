package domain

import (
	"context"
	"time"
)

type MutationType string

const (
	MutationSaleCompleted     MutationType = "sale_completed"
	MutationSeatStatusChanged MutationType = "seat_status_changed"
	MutationSeatsUpdated      MutationType = "seats_updated"
	MutationAlertCreated      MutationType = "alert_created"
	MutationDataChanged       MutationType = "data_changed"
)

// MutationEvent is a business-side state change relayed to the realtime service.
// Which fields are set depends on Type.
type MutationEvent struct {
	Type       MutationType `json:"type"`
	Sale       *Sale        `json:"sale,omitempty"`
	EventID    string       `json:"event_id,omitempty"`
	SeatID     string       `json:"seat_id,omitempty"`
	Status     SeatStatus   `json:"status,omitempty"`
	Seats      []SeatState  `json:"seats,omitempty"`
	Alert      *Alert       `json:"alert,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Validate checks that the fields required by Type are present.
func (e *MutationEvent) Validate() error {
	switch e.Type {
	case MutationSaleCompleted:
		if e.Sale == nil || e.Sale.EventID == "" {
			return ErrInvalidMutation
		}
	case MutationSeatStatusChanged:
		if e.EventID == "" || e.SeatID == "" || !e.Status.Valid() {
			return ErrInvalidMutation
		}
	case MutationSeatsUpdated:
		if e.EventID == "" {
			return ErrInvalidMutation
		}
	case MutationAlertCreated:
		if e.Alert == nil {
			return ErrInvalidMutation
		}
	case MutationDataChanged:
	default:
		return ErrUnknownMutation
	}
	return nil
}

type EventPublisher interface {
	PublishMutation(ctx context.Context, event *MutationEvent) error
}

type EventSubscriber interface {
	SubscribeToMutations(ctx context.Context, handler EventHandler) error
}

type EventHandler func(ctx context.Context, event *MutationEvent) error
