package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"habit_notifier/internal/domain/notification"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDefinition() *notification.Definition {
	return &notification.Definition{
		ID:    "water-reminder",
		Time:  "21:00",
		Title: "Water check",
		Body:  "Log your water",
		Type:  notification.TypeWaterReminder,
		Actions: []notification.Action{
			{Action: notification.ActionLogWater, Title: "Log water"},
			{Action: notification.ActionSnooze, Title: "Snooze", Icon: "/icons/snooze.svg"},
		},
		Enabled:        true,
		SnoozeEnabled:  true,
		SnoozeDuration: 10,
	}
}

var definitionColumns = []string{"id", "fire_time", "title", "body", "type", "actions", "enabled", "snooze_enabled", "snooze_duration"}
var logColumns = []string{"id", "user_id", "notification_id", "type", "triggered_at", "clicked_at", "action_taken", "snoozed", "snooze_duration"}

func TestDialectRebind(t *testing.T) {
	q := "UPDATE t SET a = ?, b = ? WHERE id = ?"
	assert.Equal(t, q, DialectSQLite.Rebind(q))
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE id = $3", DialectPostgres.Rebind(q))
}

func TestPut(t *testing.T) {
	tests := []struct {
		name        string
		dialect     Dialect
		setupMock   func(sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name:    "sqlite upsert",
			dialect: DialectSQLite,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO notifications`)+`(.|\n)*VALUES \(\?, \?`).
					WithArgs("water-reminder", "21:00", "Water check", "Log your water", "water-reminder",
						sqlmock.AnyArg(), true, true, 10, sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name:    "postgres placeholders",
			dialect: DialectPostgres,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(`VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name:    "database error",
			dialect: DialectSQLite,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO notifications`).WillReturnError(sql.ErrConnDone)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			repo := NewSQLNotificationRepository(db, tt.dialect)

			tt.setupMock(mock)

			err = repo.Put(context.Background(), sampleDefinition())
			if tt.expectError {
				assert.ErrorIs(t, err, sql.ErrConnDone)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGet(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT (.+) FROM notifications WHERE id = \?`).
			WithArgs("water-reminder").
			WillReturnRows(sqlmock.NewRows(definitionColumns).AddRow(
				"water-reminder", "21:00", "Water check", "Log your water", "water-reminder",
				`[{"action":"log-water","title":"Log water"},{"action":"snooze","title":"Snooze","icon":"/icons/snooze.svg"}]`,
				true, true, 10,
			))

		def, err := NewSQLNotificationRepository(db, DialectSQLite).Get(context.Background(), "water-reminder")
		require.NoError(t, err)
		assert.Equal(t, sampleDefinition(), def)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT (.+) FROM notifications WHERE id = \$1`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(definitionColumns))

		_, err = NewSQLNotificationRepository(db, DialectPostgres).Get(context.Background(), "missing")
		assert.ErrorIs(t, err, notification.ErrDefinitionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM notifications ORDER BY fire_time, id`).
		WillReturnRows(sqlmock.NewRows(definitionColumns).
			AddRow("a", "06:00", "A", "a", "custom", `[]`, true, false, 5).
			AddRow("b", "07:00", "B", "b", "custom", `[]`, false, true, 15))

	defs, err := NewSQLNotificationRepository(db, DialectSQLite).GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].ID)
	assert.False(t, defs[1].Enabled)
	assert.Empty(t, defs[0].Actions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendLog(t *testing.T) {
	triggered := time.Date(2025, 4, 1, 21, 0, 0, 0, time.UTC)
	entry := notification.NewLogEntry("local", sampleDefinition(), triggered)

	tests := []struct {
		name      string
		dialect   Dialect
		setupMock func(sqlmock.Sqlmock)
		wantErr   error
	}{
		{
			name:    "success",
			dialect: DialectSQLite,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO notification_logs`).
					WithArgs(entry.ID, "local", "water-reminder", "water-reminder", triggered.UnixMilli(),
						sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name:    "duplicate on postgres",
			dialect: DialectPostgres,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO notification_logs`).
					WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})
			},
			wantErr: notification.ErrDuplicateLog,
		},
		{
			name:    "other error",
			dialect: DialectSQLite,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO notification_logs`).WillReturnError(sql.ErrConnDone)
			},
			wantErr: sql.ErrConnDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.setupMock(mock)

			err = NewSQLNotificationRepository(db, tt.dialect).AppendLog(context.Background(), entry)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpdateLog_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE notification_logs`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	e := notification.NewLogEntry("local", sampleDefinition(), time.Now())
	e.RecordInteraction(time.Now(), notification.ActionSkip, false, 0)

	err = NewSQLNotificationRepository(db, DialectSQLite).UpdateLog(context.Background(), e)
	assert.ErrorIs(t, err, notification.ErrLogNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestLogForDefinition(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	triggered := time.Date(2025, 4, 1, 21, 0, 0, 0, time.UTC)
	clicked := triggered.Add(2 * time.Minute)
	mock.ExpectQuery(`SELECT (.+) FROM notification_logs WHERE notification_id = \? ORDER BY triggered_at DESC LIMIT 1`).
		WithArgs("water-reminder").
		WillReturnRows(sqlmock.NewRows(logColumns).AddRow(
			"water-reminder-1743541200000", "local", "water-reminder", "water-reminder", triggered.UnixMilli(),
			clicked.UnixMilli(), "snooze", true, 10,
		))
	mock.ExpectQuery(`SELECT (.+) FROM notification_logs`).
		WithArgs("weight-tracking").
		WillReturnRows(sqlmock.NewRows(logColumns))

	repo := NewSQLNotificationRepository(db, DialectSQLite)
	e, err := repo.LatestLogForDefinition(context.Background(), "water-reminder")
	require.NoError(t, err)
	assert.True(t, triggered.Equal(e.TriggeredAt))
	require.NotNil(t, e.ClickedAt)
	assert.True(t, clicked.Equal(*e.ClickedAt))
	assert.Equal(t, "snooze", *e.ActionTaken)
	assert.True(t, *e.Snoozed)
	assert.Equal(t, 10, *e.SnoozeDuration)

	_, err = repo.LatestLogForDefinition(context.Background(), "weight-tracking")
	assert.ErrorIs(t, err, notification.ErrLogNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := NewSQLiteConnection(ctx, filepath.Join(t.TempDir(), "store", "notifier.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer db.Close()

	repo := NewSQLNotificationRepository(db, DialectSQLite)
	require.NoError(t, repo.Migrate(ctx))
	require.NoError(t, repo.Migrate(ctx))

	def := sampleDefinition()
	require.NoError(t, repo.Put(ctx, def))
	got, err := repo.Get(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, def, got)

	def.Time = "21:30"
	def.Enabled = false
	require.NoError(t, repo.Put(ctx, def))
	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "21:30", all[0].Time)
	assert.False(t, all[0].Enabled)

	first := notification.NewLogEntry("local", def, time.Date(2025, 4, 1, 21, 0, 0, 0, time.UTC))
	second := notification.NewLogEntry("local", def, time.Date(2025, 4, 2, 21, 0, 0, 0, time.UTC))
	require.NoError(t, repo.AppendLog(ctx, second))
	require.NoError(t, repo.AppendLog(ctx, first))
	assert.ErrorIs(t, repo.AppendLog(ctx, first), notification.ErrDuplicateLog)

	logs, err := repo.GetLogsForDefinition(ctx, def.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, first.ID, logs[0].ID)

	latest, err := repo.LatestLogForDefinition(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.False(t, latest.Interacted())

	latest.RecordInteraction(time.Date(2025, 4, 2, 21, 3, 0, 0, time.UTC), notification.ActionSnooze, true, 10)
	require.NoError(t, repo.UpdateLog(ctx, latest))
	latest, err = repo.LatestLogForDefinition(ctx, def.ID)
	require.NoError(t, err)
	assert.True(t, latest.Interacted())
	assert.Equal(t, notification.ActionSnooze, *latest.ActionTaken)
	assert.True(t, *latest.Snoozed)
}
