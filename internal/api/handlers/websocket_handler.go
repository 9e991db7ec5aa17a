package handlers

import (
	"net/http"

	"ticketing-realtime/internal/infrastructure/websocket"

	"github.com/labstack/echo/v4"
)

type connectionHandler interface {
	HandleConnection(w http.ResponseWriter, r *http.Request)
}

type WebSocketHandlers struct {
	wsHandler connectionHandler
}

func NewWebSocketHandlers(wsHandler *websocket.WebSocketHandler) *WebSocketHandlers {
	return &WebSocketHandlers{
		wsHandler: wsHandler,
	}
}

// HandleConnection hands the raw request to the websocket handshake. The upgrader writes
// its own response, so echo must not write one after it.
func (h *WebSocketHandlers) HandleConnection(c echo.Context) error {
	h.wsHandler.HandleConnection(c.Response(), c.Request())
	return nil
}
