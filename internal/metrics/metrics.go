package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "ticketing_realtime"

// Metrics holds the Prometheus collectors of the realtime core.
type Metrics struct {
	ActiveConnections    *prometheus.GaugeVec
	MessagesSent         *prometheus.CounterVec
	SendFailures         prometheus.Counter
	Evictions            *prometheus.CounterVec
	DashboardRecomputes  prometheus.Counter
	DashboardFailures    prometheus.Counter
	NotificationsCreated *prometheus.CounterVec
	MutationsHandled     *prometheus.CounterVec
}

// New creates and registers the metrics on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of admitted connections by role.",
		}, []string{"role"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_sent_total",
			Help:      "Messages handed to connection send buffers, by message type.",
		}, []string{"type"}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "send_failures_total",
			Help:      "Sends that failed and caused an eviction.",
		}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "evictions_total",
			Help:      "Connections evicted by the server, by reason.",
		}, []string{"reason"}),
		DashboardRecomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "recomputes_total",
			Help:      "Dashboard snapshot recomputations started.",
		}),
		DashboardFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "recompute_failures_total",
			Help:      "Dashboard snapshot recomputations that failed.",
		}),
		NotificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "published_total",
			Help:      "Notifications persisted, by target kind.",
		}, []string{"target"}),
		MutationsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "mutations_total",
			Help:      "Mutation triggers handled, by type.",
		}, []string{"type"}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.MessagesSent,
		m.SendFailures,
		m.Evictions,
		m.DashboardRecomputes,
		m.DashboardFailures,
		m.NotificationsCreated,
		m.MutationsHandled,
	)
	return m
}

// NewUnregistered returns metrics that are not exported anywhere. Used by tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
