package handlers

import (
	"net/http"

	"ticketing-realtime/internal/domain"

	"github.com/labstack/echo/v4"
)

type StatsProvider interface {
	Stats() domain.ConnectionStats
}

type StatsHandler struct {
	stats StatsProvider
}

func NewStatsHandler(stats StatsProvider) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// ConnectionStats handles GET /api/v1/connections/stats.
func (h *StatsHandler) ConnectionStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.stats.Stats())
}
