package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticketing-realtime/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLNotificationRepository struct {
	db *sql.DB
}

var _ domain.NotificationRepository = (*MySQLNotificationRepository)(nil)

func NewMySQLNotificationRepository(db *sql.DB) *MySQLNotificationRepository {
	return &MySQLNotificationRepository{db: db}
}

func (r *MySQLNotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `
        INSERT INTO notifications (id, target_kind, target_role, title, body, category, link, reference_id, sent_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = tx.ExecContext(ctx, query,
		n.ID, string(n.Target.Kind), string(n.Target.Role),
		n.Payload.Title, n.Payload.Body, string(n.Payload.Category), n.Payload.Link, n.Payload.ReferenceID,
		n.SentAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	for _, userID := range n.Recipients {
		_, err := tx.ExecContext(ctx,
			`INSERT IGNORE INTO notification_recipients (notification_id, user_id) VALUES (?, ?)`,
			n.ID, userID)
		if err != nil {
			return fmt.Errorf("insert recipient: %w", err)
		}
	}

	return tx.Commit()
}

func (r *MySQLNotificationRepository) Query(ctx context.Context, filter domain.NotificationFilter) ([]*domain.Notification, error) {
	query, args := buildNotificationQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		var kind, role, category string

		err := rows.Scan(&n.ID, &kind, &role,
			&n.Payload.Title, &n.Payload.Body, &category, &n.Payload.Link, &n.Payload.ReferenceID,
			&n.SentAt)
		if err != nil {
			return nil, err
		}

		n.Target = domain.NotificationTarget{Kind: domain.TargetKind(kind), Role: domain.Role(role)}
		n.Payload.Category = domain.NotificationCategory(category)
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(notifications) == 0 {
		return notifications, nil
	}

	ids := make([]string, len(notifications))
	for i, n := range notifications {
		ids[i] = n.ID
	}

	recipients, err := r.loadUsers(ctx, recipientsTable, ids)
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	reads, err := r.loadUsers(ctx, readsTable, ids)
	if err != nil {
		return nil, fmt.Errorf("load reads: %w", err)
	}
	for _, n := range notifications {
		n.Recipients = recipients[n.ID]
		n.ReadBy = reads[n.ID]
	}

	return notifications, nil
}

const (
	recipientsTable = "notification_recipients"
	readsTable      = "notification_reads"
)

// loadUsers returns the user ids of table grouped by notification id.
func (r *MySQLNotificationRepository) loadUsers(ctx context.Context, table string, notificationIDs []string) (map[string][]string, error) {
	query, args := buildUsersQuery(table, notificationIDs)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []userRow
	for rows.Next() {
		var row userRow
		if err := rows.Scan(&row.notificationID, &row.userID); err != nil {
			return nil, err
		}
		pairs = append(pairs, row)
	}
	return groupUsers(pairs), rows.Err()
}

type userRow struct {
	notificationID string
	userID         string
}

func groupUsers(rows []userRow) map[string][]string {
	out := make(map[string][]string)
	for _, row := range rows {
		out[row.notificationID] = append(out[row.notificationID], row.userID)
	}
	return out
}

// UpdateReadBy records a read. The (notification_id, user_id) primary key makes the
// insert a set union.
func (r *MySQLNotificationRepository) UpdateReadBy(ctx context.Context, notificationID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO notification_reads (notification_id, user_id, read_at) VALUES (?, ?, ?)`,
		notificationID, userID, time.Now().UTC())
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil || affected > 0 {
		return err
	}

	// Nothing inserted: either already read or the notification does not exist.
	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM notifications WHERE id = ?`, notificationID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotificationNotFound
	}
	return err
}

func buildNotificationQuery(filter domain.NotificationFilter) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	sb.WriteString(`
        SELECT n.id, n.target_kind, n.target_role, n.title, n.body, n.category, n.link, n.reference_id, n.sent_at
        FROM notifications n
        WHERE 1 = 1`)

	if filter.ID != "" {
		sb.WriteString(` AND n.id = ?`)
		args = append(args, filter.ID)
	}

	if filter.UserID != "" {
		sb.WriteString(` AND (n.target_kind = 'all'
            OR (n.target_kind = 'role' AND n.target_role = ?)
            OR (n.target_kind = 'specific' AND EXISTS (
                SELECT 1 FROM notification_recipients nr2 WHERE nr2.notification_id = n.id AND nr2.user_id = ?)))`)
		args = append(args, string(filter.Role), filter.UserID)

		if filter.UnreadOnly {
			sb.WriteString(` AND NOT EXISTS (
                SELECT 1 FROM notification_reads rd2 WHERE rd2.notification_id = n.id AND rd2.user_id = ?)`)
			args = append(args, filter.UserID)
		}
	}

	sb.WriteString(` ORDER BY n.sent_at DESC, n.id DESC`)

	if filter.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	return sb.String(), args
}

// buildUsersQuery selects (notification_id, user_id) pairs of table for the given
// notifications. table is one of the package constants, never caller input.
func buildUsersQuery(table string, notificationIDs []string) (string, []interface{}) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(notificationIDs)), ", ")
	args := make([]interface{}, len(notificationIDs))
	for i, id := range notificationIDs {
		args[i] = id
	}

	query := `
        SELECT notification_id, user_id
        FROM ` + table + `
        WHERE notification_id IN (` + placeholders + `)
        ORDER BY notification_id, user_id`
	return query, args
}
