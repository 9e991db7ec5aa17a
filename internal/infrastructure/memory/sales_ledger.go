package memory

import (
	"context"
	"sync"
	"time"

	"ticketing-realtime/internal/domain"

	"github.com/jonboulle/clockwork"
)

type dayTotals struct {
	sales   int64
	revenue float64
}

// SalesLedger aggregates the sales seen by this process. It stands in for the MySQL
// aggregation query when the service runs without a database.
type SalesLedger struct {
	clock   clockwork.Clock
	mutex   sync.RWMutex
	sales   int64
	tickets int64
	revenue float64
	daily   map[string]dayTotals
	events  map[string]struct{}
	users   map[string]struct{}
}

var _ domain.StatsSource = (*SalesLedger)(nil)

func NewSalesLedger(clock clockwork.Clock) *SalesLedger {
	return &SalesLedger{
		clock:  clock,
		daily:  make(map[string]dayTotals),
		events: make(map[string]struct{}),
		users:  make(map[string]struct{}),
	}
}

func (l *SalesLedger) RecordSale(sale domain.Sale) {
	at := sale.CreatedAt
	if at.IsZero() {
		at = l.clock.Now()
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.sales++
	l.tickets += int64(sale.TicketCount)
	l.revenue += sale.Amount

	key := dayKey(at)
	d := l.daily[key]
	d.sales++
	d.revenue += sale.Amount
	l.daily[key] = d

	l.events[sale.EventID] = struct{}{}
	if sale.OperatorID != "" {
		l.users[sale.OperatorID] = struct{}{}
	}
}

func (l *SalesLedger) ComputeDashboardStats(context.Context) (domain.DashboardStats, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	today := l.daily[dayKey(l.clock.Now())]
	return domain.DashboardStats{
		TotalSales:   l.sales,
		TicketsSold:  l.tickets,
		TotalRevenue: l.revenue,
		SalesToday:   today.sales,
		RevenueToday: today.revenue,
		ActiveEvents: int64(len(l.events)),
		TotalUsers:   int64(len(l.users)),
	}, nil
}

func dayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
