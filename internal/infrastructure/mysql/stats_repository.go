package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ticketing-realtime/internal/domain"
)

// MySQLStatsRepository runs the dashboard aggregation over the platform's sales,
// events and users tables. It only reads.
type MySQLStatsRepository struct {
	db *sql.DB
}

var _ domain.StatsSource = (*MySQLStatsRepository)(nil)

func NewMySQLStatsRepository(db *sql.DB) *MySQLStatsRepository {
	return &MySQLStatsRepository{db: db}
}

func (r *MySQLStatsRepository) ComputeDashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	query := `
        SELECT
            (SELECT COUNT(*) FROM sales),
            (SELECT COALESCE(SUM(ticket_count), 0) FROM sales),
            (SELECT COALESCE(SUM(amount), 0) FROM sales),
            (SELECT COUNT(*) FROM sales WHERE created_at >= ?),
            (SELECT COALESCE(SUM(amount), 0) FROM sales WHERE created_at >= ?),
            (SELECT COUNT(*) FROM events WHERE status = 'active'),
            (SELECT COUNT(*) FROM users)
    `

	startOfDay := truncateToDay(time.Now().UTC())

	var stats domain.DashboardStats
	err := r.db.QueryRowContext(ctx, query, startOfDay, startOfDay).Scan(
		&stats.TotalSales, &stats.TicketsSold, &stats.TotalRevenue,
		&stats.SalesToday, &stats.RevenueToday,
		&stats.ActiveEvents, &stats.TotalUsers)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("compute dashboard stats: %w", err)
	}

	return stats, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
