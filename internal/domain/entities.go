package domain

import (
	"slices"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleOrganizer Role = "organizer"
	RoleUser      Role = "user"
	RoleGuest     Role = "guest"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOrganizer, RoleUser, RoleGuest:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// Connection is the registry's view of one live transport session.
type Connection struct {
	ID             string    `json:"connection_id"`
	UserID         string    `json:"user_id"`
	Role           Role      `json:"role"`
	ConnectedAt    time.Time `json:"connected_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Identity is the decoded result of verifying a bearer credential.
type Identity struct {
	UserID string
	Role   Role
}

const eventRoomPrefix = "event_"

// RoleRoom is the room every connection of the given role joins on admission.
func RoleRoom(role Role) string {
	return string(role)
}

// EventRoom is the resource-scoped room for a single event.
func EventRoom(eventID string) string {
	return eventRoomPrefix + eventID
}

// IsResourceRoom reports whether clients may join or leave the room themselves.
func IsResourceRoom(roomID string) bool {
	return len(roomID) > len(eventRoomPrefix) && roomID[:len(eventRoomPrefix)] == eventRoomPrefix
}

type TargetKind string

const (
	TargetAll      TargetKind = "all"
	TargetRole     TargetKind = "role"
	TargetSpecific TargetKind = "specific"
)

type NotificationTarget struct {
	Kind TargetKind `json:"kind"`
	Role Role       `json:"role,omitempty"`
}

type NotificationCategory string

const (
	CategorySystem NotificationCategory = "system"
	CategorySale   NotificationCategory = "sale"
	CategoryAlert  NotificationCategory = "alert"
	CategoryEvent  NotificationCategory = "event"
)

type NotificationPayload struct {
	Title       string               `json:"title"`
	Body        string               `json:"body"`
	Category    NotificationCategory `json:"category"`
	Link        string               `json:"link,omitempty"`
	ReferenceID string               `json:"reference_id,omitempty"`
}

type Notification struct {
	ID         string              `json:"id"`
	Target     NotificationTarget  `json:"target"`
	Recipients []string            `json:"recipients,omitempty"`
	Payload    NotificationPayload `json:"payload"`
	SentAt     time.Time           `json:"sent_at"`
	ReadBy     []string            `json:"read_by,omitempty"`
}

// EligibleFor reports whether the notification is addressed to userID holding role.
func (n *Notification) EligibleFor(userID string, role Role) bool {
	switch n.Target.Kind {
	case TargetAll:
		return true
	case TargetRole:
		return n.Target.Role == role
	case TargetSpecific:
		return slices.Contains(n.Recipients, userID)
	default:
		return false
	}
}

func (n *Notification) IsReadBy(userID string) bool {
	return slices.Contains(n.ReadBy, userID)
}

func (n *Notification) IsUnreadFor(userID string, role Role) bool {
	return n.EligibleFor(userID, role) && !n.IsReadBy(userID)
}

// NotificationFilter selects notifications from the durable store.
type NotificationFilter struct {
	ID         string
	UserID     string
	Role       Role
	UnreadOnly bool
	Limit      int
}

type DashboardStats struct {
	TotalSales       int64   `json:"total_sales"`
	TicketsSold      int64   `json:"tickets_sold"`
	TotalRevenue     float64 `json:"total_revenue"`
	SalesToday       int64   `json:"sales_today"`
	RevenueToday     float64 `json:"revenue_today"`
	ActiveEvents     int64   `json:"active_events"`
	TotalUsers       int64   `json:"total_users"`
	ConnectedClients int     `json:"connected_clients"`
}

type DashboardSnapshot struct {
	DashboardStats
	ComputedAt time.Time `json:"computed_at"`
}

type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatReserved  SeatStatus = "reserved"
	SeatSold      SeatStatus = "sold"
	SeatBlocked   SeatStatus = "blocked"
)

func (s SeatStatus) Valid() bool {
	switch s {
	case SeatAvailable, SeatReserved, SeatSold, SeatBlocked:
		return true
	default:
		return false
	}
}

type SeatState struct {
	SeatID string     `json:"seat_id"`
	Status SeatStatus `json:"status"`
}

type Sale struct {
	ID           string    `json:"id"`
	EventID      string    `json:"event_id"`
	SalesPointID string    `json:"sales_point_id,omitempty"`
	OperatorID   string    `json:"operator_id,omitempty"`
	TicketCount  int       `json:"ticket_count"`
	Amount       float64   `json:"amount"`
	Seats        []string  `json:"seats,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Alert is a producer's request to publish a notification.
type Alert struct {
	Target     NotificationTarget  `json:"target"`
	Recipients []string            `json:"recipients,omitempty"`
	Payload    NotificationPayload `json:"payload"`
}

type ConnectionStats struct {
	TotalConnections int            `json:"totalConnections"`
	PerRoleCounts    map[Role]int   `json:"perRoleCounts"`
	PerRoomCounts    map[string]int `json:"perRoomCounts"`
}
