package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"ticketing-realtime/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNotificationQuery(t *testing.T) {
	tests := []struct {
		name     string
		filter   domain.NotificationFilter
		args     []interface{}
		contains []string
		excludes []string
	}{
		{
			name:     "by id",
			filter:   domain.NotificationFilter{ID: "notif_1"},
			args:     []interface{}{"notif_1"},
			contains: []string{"n.id = ?"},
			excludes: []string{"LIMIT", "target_role = ?"},
		},
		{
			name:     "unread for user with limit",
			filter:   domain.NotificationFilter{UserID: "u1", Role: domain.RoleAdmin, UnreadOnly: true, Limit: 50},
			args:     []interface{}{"admin", "u1", "u1", 50},
			contains: []string{"target_role = ?", "NOT EXISTS", "LIMIT ?"},
		},
		{
			name:     "eligible including read",
			filter:   domain.NotificationFilter{UserID: "u1", Role: domain.RoleUser},
			args:     []interface{}{"user", "u1"},
			excludes: []string{"NOT EXISTS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildNotificationQuery(tt.filter)
			assert.Equal(t, tt.args, args)
			assert.Equal(t, len(tt.args), strings.Count(query, "?"))
			for _, s := range tt.contains {
				assert.Contains(t, query, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, query, s)
			}
		})
	}
}

func TestBuildNotificationQuery_NoAggregatedLists(t *testing.T) {
	query, _ := buildNotificationQuery(domain.NotificationFilter{UserID: "u1", Role: domain.RoleUser, UnreadOnly: true})
	assert.NotContains(t, query, "GROUP_CONCAT")
}

func TestBuildUsersQuery(t *testing.T) {
	query, args := buildUsersQuery(recipientsTable, []string{"n1", "n2", "n3"})

	assert.Contains(t, query, "FROM notification_recipients")
	assert.Contains(t, query, "IN (?, ?, ?)")
	assert.Equal(t, []interface{}{"n1", "n2", "n3"}, args)
}

func TestGroupUsers_KeepsLongRecipientLists(t *testing.T) {
	var rows []userRow
	var want []string
	for i := range 40 {
		// uuid-sized ids, some containing commas, well past a 1024 byte aggregate.
		userID := fmt.Sprintf("user,%02d-6f1c2a7e-3b1d-4c55-9a0e-1f2d3c4b5a6f", i)
		want = append(want, userID)
		rows = append(rows, userRow{notificationID: "notif_1", userID: userID})
	}
	rows = append(rows, userRow{notificationID: "notif_2", userID: "u1"})

	grouped := groupUsers(rows)

	require.Len(t, grouped["notif_1"], 40)
	assert.Equal(t, want, grouped["notif_1"])
	assert.Equal(t, []string{"u1"}, grouped["notif_2"])

	n := domain.Notification{Target: domain.NotificationTarget{Kind: domain.TargetSpecific}, Recipients: grouped["notif_1"]}
	assert.True(t, n.EligibleFor(want[29], domain.RoleUser))
	assert.True(t, n.EligibleFor(want[39], domain.RoleUser))
}

// Runs against a real database when MYSQL_TEST_DSN points at a schema created from
// migrations/001_notifications.sql.
func TestMySQLNotificationRepository_Integration(t *testing.T) {
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	repo := NewMySQLNotificationRepository(db)
	id := "notif_it_" + time.Now().Format("150405.000000")

	require.NoError(t, repo.Insert(ctx, &domain.Notification{
		ID:         id,
		Target:     domain.NotificationTarget{Kind: domain.TargetSpecific},
		Recipients: []string{"it-user"},
		Payload:    domain.NotificationPayload{Title: "integration", Category: domain.CategorySystem},
		SentAt:     time.Now().UTC().Truncate(time.Second),
	}))
	t.Cleanup(func() {
		_, _ = db.ExecContext(ctx, `DELETE FROM notification_reads WHERE notification_id = ?`, id)
		_, _ = db.ExecContext(ctx, `DELETE FROM notification_recipients WHERE notification_id = ?`, id)
		_, _ = db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	})

	unread, err := repo.Query(ctx, domain.NotificationFilter{UserID: "it-user", Role: domain.RoleUser, UnreadOnly: true})
	require.NoError(t, err)
	require.NotEmpty(t, unread)

	require.NoError(t, repo.UpdateReadBy(ctx, id, "it-user"))
	require.NoError(t, repo.UpdateReadBy(ctx, id, "it-user"))

	got, err := repo.Query(ctx, domain.NotificationFilter{ID: id})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"it-user"}, got[0].Recipients)
	assert.Equal(t, []string{"it-user"}, got[0].ReadBy)

	assert.ErrorIs(t, repo.UpdateReadBy(ctx, "notif_missing", "it-user"), domain.ErrNotificationNotFound)
}
