package domain

import (
	"encoding/json"
	"time"
)

type MessageType string

// Server-pushed message types.
const (
	MsgDashboardStatsUpdate MessageType = "dashboard_stats_update"
	MsgNewSale              MessageType = "new_sale"
	MsgSeatsUpdate          MessageType = "seats_update"
	MsgSalesUpdate          MessageType = "sales_update"
	MsgSeatStatusChange     MessageType = "seat_status_change"
	MsgNewNotification      MessageType = "newNotification"
	MsgUnreadNotifications  MessageType = "unreadNotifications"
	MsgConnectedAdmins      MessageType = "connected_admins"
	MsgConnected            MessageType = "connected"
	MsgRoomJoined           MessageType = "room_joined"
	MsgRoomLeft             MessageType = "room_left"
	MsgNotificationRead     MessageType = "notification_read"
	MsgPong                 MessageType = "pong"
	MsgError                MessageType = "error"
	MsgServerShutdown       MessageType = "server_shutdown"
)

// Message is a typed server payload; its concrete type decides the envelope type.
type Message interface {
	MessageType() MessageType
}

// Envelope is the wire frame pushed to clients.
type Envelope struct {
	Type      MessageType `json:"type"`
	Data      Message     `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewEnvelope(msg Message, at time.Time) Envelope {
	return Envelope{Type: msg.MessageType(), Data: msg, Timestamp: at}
}

type DashboardStatsUpdate struct {
	Snapshot DashboardSnapshot `json:"snapshot"`
}

type NewSale struct {
	Sale Sale `json:"sale"`
}

type SeatsUpdate struct {
	EventID string      `json:"event_id"`
	Seats   []SeatState `json:"seats"`
}

type SalesUpdate struct {
	EventID string `json:"event_id"`
	Sale    Sale   `json:"sale"`
}

type SeatStatusChange struct {
	EventID string     `json:"event_id"`
	SeatID  string     `json:"seat_id"`
	Status  SeatStatus `json:"status"`
}

type NewNotification struct {
	Notification Notification `json:"notification"`
}

type UnreadNotifications struct {
	Notifications []Notification `json:"notifications"`
	Count         int            `json:"count"`
}

type ConnectedAdmins struct {
	Count   int      `json:"count"`
	UserIDs []string `json:"user_ids"`
}

type Connected struct {
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id"`
	Role         Role   `json:"role"`
}

type RoomJoined struct {
	RoomID string `json:"room_id"`
}

type RoomLeft struct {
	RoomID string `json:"room_id"`
}

type NotificationRead struct {
	NotificationIDs []string `json:"notification_ids"`
}

type Pong struct{}

type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ServerShutdown struct {
	Reason string `json:"reason"`
}

func (DashboardStatsUpdate) MessageType() MessageType { return MsgDashboardStatsUpdate }
func (NewSale) MessageType() MessageType              { return MsgNewSale }
func (SeatsUpdate) MessageType() MessageType          { return MsgSeatsUpdate }
func (SalesUpdate) MessageType() MessageType          { return MsgSalesUpdate }
func (SeatStatusChange) MessageType() MessageType     { return MsgSeatStatusChange }
func (NewNotification) MessageType() MessageType      { return MsgNewNotification }
func (UnreadNotifications) MessageType() MessageType  { return MsgUnreadNotifications }
func (ConnectedAdmins) MessageType() MessageType      { return MsgConnectedAdmins }
func (Connected) MessageType() MessageType            { return MsgConnected }
func (RoomJoined) MessageType() MessageType           { return MsgRoomJoined }
func (RoomLeft) MessageType() MessageType             { return MsgRoomLeft }
func (NotificationRead) MessageType() MessageType     { return MsgNotificationRead }
func (Pong) MessageType() MessageType                 { return MsgPong }
func (ErrorMessage) MessageType() MessageType         { return MsgError }
func (ServerShutdown) MessageType() MessageType       { return MsgServerShutdown }

type ActionType string

// Client-initiated actions.
const (
	ActionMarkNotificationRead     ActionType = "markNotificationRead"
	ActionMarkAllNotificationsRead ActionType = "markAllNotificationsRead"
	ActionJoinRoom                 ActionType = "joinRoom"
	ActionLeaveRoom                ActionType = "leaveRoom"
	ActionRequestDashboardRefresh  ActionType = "requestDashboardRefresh"
	ActionPing                     ActionType = "ping"
)

// ClientAction is an inbound frame; Data is decoded per Type.
type ClientAction struct {
	Type ActionType      `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type MarkNotificationReadData struct {
	NotificationID string `json:"notification_id"`
}

type RoomData struct {
	RoomID string `json:"room_id"`
}
