package handlers

import (
	"context"
	"net/http"
	"time"

	"ticketing-realtime/internal/domain"
	"ticketing-realtime/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MutationSink is the set of business triggers collaborators can fire over REST.
type MutationSink interface {
	OnSaleCompleted(ctx context.Context, sale domain.Sale) error
	OnSeatStatusChanged(ctx context.Context, eventID, seatID string, status domain.SeatStatus)
	OnSeatsUpdated(ctx context.Context, eventID string, seats []domain.SeatState)
	OnAlertCreated(ctx context.Context, alert domain.Alert) (*domain.Notification, error)
	OnDataChanged(ctx context.Context, reason string)
}

type MutationHandler struct {
	sink MutationSink
	log  logger.Logger
}

type SeatStatusRequest struct {
	Status domain.SeatStatus `json:"status"`
}

type SeatsRequest struct {
	Seats []domain.SeatState `json:"seats"`
}

type InvalidateRequest struct {
	Reason string `json:"reason"`
}

func NewMutationHandler(sink MutationSink, log logger.Logger) *MutationHandler {
	return &MutationHandler{
		sink: sink,
		log:  log,
	}
}

// SaleCompleted handles POST /api/v1/mutations/sales.
func (h *MutationHandler) SaleCompleted(c echo.Context) error {
	var sale domain.Sale
	if err := c.Bind(&sale); err != nil {
		h.log.Error("Failed to bind sale", "error", err)
		return badRequest(c, "Invalid request body")
	}
	if sale.EventID == "" {
		return badRequest(c, "event_id is required")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	if err := h.sink.OnSaleCompleted(c.Request().Context(), sale); err != nil {
		h.log.Error("Sale fan-out incomplete", "sale_id", sale.ID, "error", err)
		return errorJSON(c, err)
	}

	h.log.Info("Sale pushed", "sale_id", sale.ID, "event_id", sale.EventID)
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

// SeatStatusChanged handles POST /api/v1/mutations/events/:eventId/seats/:seatId.
func (h *MutationHandler) SeatStatusChanged(c echo.Context) error {
	eventID, seatID := c.Param("eventId"), c.Param("seatId")

	var req SeatStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if !req.Status.Valid() {
		return badRequest(c, "Unknown seat status")
	}

	h.sink.OnSeatStatusChanged(c.Request().Context(), eventID, seatID, req.Status)
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

// SeatsUpdated handles POST /api/v1/mutations/events/:eventId/seats.
func (h *MutationHandler) SeatsUpdated(c echo.Context) error {
	var req SeatsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	for _, seat := range req.Seats {
		if seat.SeatID == "" || !seat.Status.Valid() {
			return badRequest(c, "Every seat needs an id and a known status")
		}
	}

	h.sink.OnSeatsUpdated(c.Request().Context(), c.Param("eventId"), req.Seats)
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Invalidate handles POST /api/v1/mutations/invalidate for mutations that only move the
// dashboard figures.
func (h *MutationHandler) Invalidate(c echo.Context) error {
	var req InvalidateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	h.sink.OnDataChanged(c.Request().Context(), req.Reason)
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

// CreateNotification handles POST /api/v1/notifications.
func (h *MutationHandler) CreateNotification(c echo.Context) error {
	var alert domain.Alert
	if err := c.Bind(&alert); err != nil {
		return badRequest(c, "Invalid request body")
	}

	notification, err := h.sink.OnAlertCreated(c.Request().Context(), alert)
	if err != nil {
		h.log.Warn("Notification rejected", "target", alert.Target.Kind, "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusCreated, notification)
}
