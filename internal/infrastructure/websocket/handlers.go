package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"ticketing-realtime/internal/domain"
	"ticketing-realtime/pkg/logger"

	"github.com/gorilla/websocket"
)

const handshakeTimeout = 5 * time.Second

// NotificationInbox is the per-user side of notification delivery.
type NotificationInbox interface {
	UnreadFor(ctx context.Context, userID string, role domain.Role) []domain.Notification
	MarkRead(ctx context.Context, userID string, role domain.Role, notificationID string) error
	MarkAllRead(ctx context.Context, userID string, role domain.Role) ([]string, error)
}

// DashboardReader serves dashboard snapshots to admin connections.
type DashboardReader interface {
	Get(ctx context.Context) (*domain.DashboardSnapshot, error)
	Refresh(ctx context.Context) (*domain.DashboardSnapshot, error)
}

type HandlerOptions struct {
	Session        SessionOptions
	MaxMessageSize int64
	AllowedOrigins []string
}

// WebSocketHandler performs the authenticated handshake and serves client actions.
type WebSocketHandler struct {
	verifier      domain.IdentityVerifier
	registry      *Registry
	broadcaster   *Broadcaster
	notifications NotificationInbox
	dashboard     DashboardReader
	upgrader      websocket.Upgrader
	opts          HandlerOptions
	log           logger.Logger
}

// NewWebSocketHandler also hooks the registry so admins hear about admin departures.
func NewWebSocketHandler(verifier domain.IdentityVerifier, registry *Registry, broadcaster *Broadcaster,
	notifications NotificationInbox, dashboard DashboardReader, opts HandlerOptions, log logger.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		verifier:      verifier,
		registry:      registry,
		broadcaster:   broadcaster,
		notifications: notifications,
		dashboard:     dashboard,
		opts:          opts,
		log:           log,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}

	registry.OnRemove(func(c domain.Connection) {
		if c.Role == domain.RoleAdmin {
			h.announceAdmins()
		}
	})
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.opts.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(h.opts.AllowedOrigins, origin)
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	identity, err := h.verifier.Verify(bearerToken(r))
	if err != nil {
		h.log.Info("Rejected handshake", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	session := NewWebSocketSession(conn, h.opts.Session, h.log.With("user_id", identity.UserID))

	connectionID, err := h.registry.Admit(session, identity.UserID, identity.Role)
	if err != nil {
		h.log.Error("Failed to admit connection", "user_id", identity.UserID, "error", err)
		_ = session.Close()
		return
	}

	h.welcome(connectionID, identity)

	// Start message handling
	go h.handleMessages(conn, session, connectionID, identity)
}

// welcome pushes the connection-scoped state a client needs after (re)connecting.
func (h *WebSocketHandler) welcome(connectionID string, identity *domain.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()

	target := []string{connectionID}
	h.broadcaster.ToConnections(target, domain.Connected{
		ConnectionID: connectionID,
		UserID:       identity.UserID,
		Role:         identity.Role,
	})

	unread := h.notifications.UnreadFor(ctx, identity.UserID, identity.Role)
	h.broadcaster.ToConnections(target, domain.UnreadNotifications{
		Notifications: unread,
		Count:         len(unread),
	})

	if identity.Role != domain.RoleAdmin {
		return
	}

	snapshot, err := h.dashboard.Get(ctx)
	if err != nil {
		h.log.Warn("Serving degraded dashboard snapshot", "connection_id", connectionID, "error", err)
	}
	if snapshot != nil {
		h.broadcaster.ToConnections(target, domain.DashboardStatsUpdate{Snapshot: *snapshot})
	}
	h.announceAdmins()
}

func (h *WebSocketHandler) announceAdmins() {
	admins := h.registry.ListByRole(domain.RoleAdmin)
	userIDs := make([]string, 0, len(admins))
	for _, a := range admins {
		if !slices.Contains(userIDs, a.UserID) {
			userIDs = append(userIDs, a.UserID)
		}
	}
	slices.Sort(userIDs)

	h.broadcaster.ToRole(domain.RoleAdmin, domain.ConnectedAdmins{
		Count:   len(admins),
		UserIDs: userIDs,
	})
}

func (h *WebSocketHandler) handleMessages(conn *websocket.Conn, session *WebSocketSession, connectionID string, identity *domain.Identity) {
	defer func() {
		h.registry.Remove(connectionID)
		_ = session.Close()
	}()

	readWait := 2 * h.opts.Session.PingInterval
	conn.SetReadLimit(h.opts.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Connection closed unexpectedly", "connection_id", connectionID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		// Only application traffic counts as activity; pongs keep the socket open
		// but do not protect an idle session from the reaper.
		h.registry.Touch(connectionID)

		var action domain.ClientAction
		if err := json.Unmarshal(data, &action); err != nil {
			h.reply(connectionID, domain.ErrorMessage{Code: "invalid_message", Message: "message must be a JSON object"})
			continue
		}
		h.HandleAction(context.Background(), connectionID, identity, action)
	}
}

// HandleAction executes one client action and replies to the originating connection.
func (h *WebSocketHandler) HandleAction(ctx context.Context, connectionID string, identity *domain.Identity, action domain.ClientAction) {
	switch action.Type {
	case domain.ActionMarkNotificationRead:
		var data domain.MarkNotificationReadData
		if err := json.Unmarshal(action.Data, &data); err != nil || data.NotificationID == "" {
			h.reply(connectionID, domain.ErrorMessage{Code: "invalid_payload", Message: "notification_id is required"})
			return
		}
		if err := h.notifications.MarkRead(ctx, identity.UserID, identity.Role, data.NotificationID); err != nil {
			h.replyError(connectionID, err)
			return
		}
		h.reply(connectionID, domain.NotificationRead{NotificationIDs: []string{data.NotificationID}})

	case domain.ActionMarkAllNotificationsRead:
		ids, err := h.notifications.MarkAllRead(ctx, identity.UserID, identity.Role)
		if err != nil {
			h.replyError(connectionID, err)
			return
		}
		h.reply(connectionID, domain.NotificationRead{NotificationIDs: ids})

	case domain.ActionJoinRoom, domain.ActionLeaveRoom:
		var data domain.RoomData
		if err := json.Unmarshal(action.Data, &data); err != nil || data.RoomID == "" {
			h.reply(connectionID, domain.ErrorMessage{Code: "invalid_payload", Message: "room_id is required"})
			return
		}
		if !domain.IsResourceRoom(data.RoomID) {
			h.replyError(connectionID, domain.ErrForbiddenRoom)
			return
		}
		if action.Type == domain.ActionJoinRoom {
			if !h.registry.JoinRoom(connectionID, data.RoomID) {
				h.log.Debug("Join from an evicted connection ignored", "connection_id", connectionID, "room_id", data.RoomID)
				return
			}
			h.reply(connectionID, domain.RoomJoined{RoomID: data.RoomID})
		} else {
			h.registry.Rooms().Leave(data.RoomID, connectionID)
			h.reply(connectionID, domain.RoomLeft{RoomID: data.RoomID})
		}

	case domain.ActionRequestDashboardRefresh:
		if identity.Role != domain.RoleAdmin {
			h.replyError(connectionID, domain.ErrForbidden)
			return
		}
		snapshot, err := h.dashboard.Refresh(ctx)
		if err != nil {
			h.log.Warn("Dashboard refresh degraded", "connection_id", connectionID, "error", err)
		}
		if snapshot != nil {
			h.reply(connectionID, domain.DashboardStatsUpdate{Snapshot: *snapshot})
		}

	case domain.ActionPing:
		h.reply(connectionID, domain.Pong{})

	default:
		h.log.Warn("Unknown client action", "connection_id", connectionID, "type", action.Type)
		h.reply(connectionID, domain.ErrorMessage{Code: "unknown_action", Message: "unknown action type"})
	}
}

func (h *WebSocketHandler) reply(connectionID string, msg domain.Message) {
	h.broadcaster.ToConnections([]string{connectionID}, msg)
}

func (h *WebSocketHandler) replyError(connectionID string, err error) {
	code := "internal_error"
	switch {
	case errors.Is(err, domain.ErrNotificationNotFound):
		code = "not_found"
	case errors.Is(err, domain.ErrNotEligible), errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrForbiddenRoom):
		code = "forbidden"
	case errors.Is(err, domain.ErrStoreUnavailable):
		code = "unavailable"
	}
	h.reply(connectionID, domain.ErrorMessage{Code: code, Message: err.Error()})
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
