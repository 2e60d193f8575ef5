// internal/infra/database/notification_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"habit_notifier/internal/domain/notification"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pquerna/ffjson/ffjson"
)

// SQLNotificationRepository implements notification.Repository over database/sql
// for SQLite and PostgreSQL.
type SQLNotificationRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLNotificationRepository(db *sql.DB, dialect Dialect) *SQLNotificationRepository {
	return &SQLNotificationRepository{db: db, dialect: dialect}
}

func (r *SQLNotificationRepository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error applying schema on %s: %w", r.dialect, err)
		}
	}
	return nil
}

// --- Definition Methods ---

func (r *SQLNotificationRepository) Put(ctx context.Context, def *notification.Definition) error {
	actions, err := ffjson.Marshal(def.Actions)
	if err != nil {
		return fmt.Errorf("error encoding actions of %s: %w", def.ID, err)
	}
	if def.Actions == nil {
		actions = []byte("[]")
	}

	query := r.dialect.Rebind(`INSERT INTO notifications
		(id, fire_time, title, body, type, actions, enabled, snooze_enabled, snooze_duration, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			fire_time       = excluded.fire_time,
			title           = excluded.title,
			body            = excluded.body,
			type            = excluded.type,
			actions         = excluded.actions,
			enabled         = excluded.enabled,
			snooze_enabled  = excluded.snooze_enabled,
			snooze_duration = excluded.snooze_duration,
			updated_at      = excluded.updated_at`)
	_, err = r.db.ExecContext(ctx, query,
		def.ID, def.Time, def.Title, def.Body, string(def.Type), string(actions),
		def.Enabled, def.SnoozeEnabled, def.SnoozeDuration, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("error upserting notification %s: %w", def.ID, err)
	}
	return nil
}

const selectDefinition = `SELECT id, fire_time, title, body, type, actions, enabled, snooze_enabled, snooze_duration FROM notifications`

func (r *SQLNotificationRepository) Get(ctx context.Context, id string) (*notification.Definition, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(selectDefinition+` WHERE id = ?`), id)
	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notification.ErrDefinitionNotFound
		}
		return nil, fmt.Errorf("error getting notification %s: %w", id, err)
	}
	return def, nil
}

func (r *SQLNotificationRepository) GetAll(ctx context.Context) ([]*notification.Definition, error) {
	rows, err := r.db.QueryContext(ctx, selectDefinition+` ORDER BY fire_time, id`)
	if err != nil {
		return nil, fmt.Errorf("error querying notifications: %w", err)
	}
	defer rows.Close()

	defs := make([]*notification.Definition, 0)
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning notification row: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return defs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDefinition(s scanner) (*notification.Definition, error) {
	var (
		def     notification.Definition
		typ     string
		actions string
	)
	if err := s.Scan(&def.ID, &def.Time, &def.Title, &def.Body, &typ, &actions,
		&def.Enabled, &def.SnoozeEnabled, &def.SnoozeDuration); err != nil {
		return nil, err
	}
	def.Type = notification.Type(typ)
	def.Actions = make([]notification.Action, 0)
	if err := ffjson.Unmarshal([]byte(actions), &def.Actions); err != nil {
		return nil, fmt.Errorf("error decoding actions of %s: %w", def.ID, err)
	}
	return &def, nil
}

// --- Log Methods ---

func (r *SQLNotificationRepository) AppendLog(ctx context.Context, e *notification.LogEntry) error {
	query := r.dialect.Rebind(`INSERT INTO notification_logs
		(id, user_id, notification_id, type, triggered_at, clicked_at, action_taken, snoozed, snooze_duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	clickedAt, action, snoozed, snoozeDuration := logNullables(e)
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.NotificationID, string(e.Type), e.TriggeredAt.UnixMilli(),
		clickedAt, action, snoozed, snoozeDuration,
	)
	if err != nil {
		if r.isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", notification.ErrDuplicateLog, e.ID)
		}
		return fmt.Errorf("error appending notification log %s: %w", e.ID, err)
	}
	return nil
}

func (r *SQLNotificationRepository) UpdateLog(ctx context.Context, e *notification.LogEntry) error {
	query := r.dialect.Rebind(`UPDATE notification_logs
		SET clicked_at = ?, action_taken = ?, snoozed = ?, snooze_duration = ?
		WHERE id = ?`)
	clickedAt, action, snoozed, snoozeDuration := logNullables(e)
	res, err := r.db.ExecContext(ctx, query, clickedAt, action, snoozed, snoozeDuration, e.ID)
	if err != nil {
		return fmt.Errorf("error updating notification log %s: %w", e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows for log %s: %w", e.ID, err)
	}
	if n == 0 {
		return notification.ErrLogNotFound
	}
	return nil
}

const selectLog = `SELECT id, user_id, notification_id, type, triggered_at, clicked_at, action_taken, snoozed, snooze_duration FROM notification_logs`

func (r *SQLNotificationRepository) GetLogsForDefinition(ctx context.Context, definitionID string) ([]*notification.LogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		r.dialect.Rebind(selectLog+` WHERE notification_id = ? ORDER BY triggered_at ASC`), definitionID)
	if err != nil {
		return nil, fmt.Errorf("error querying logs for %s: %w", definitionID, err)
	}
	defer rows.Close()

	entries := make([]*notification.LogEntry, 0)
	for rows.Next() {
		e, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning log row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log rows: %w", err)
	}
	return entries, nil
}

func (r *SQLNotificationRepository) LatestLogForDefinition(ctx context.Context, definitionID string) (*notification.LogEntry, error) {
	row := r.db.QueryRowContext(ctx,
		r.dialect.Rebind(selectLog+` WHERE notification_id = ? ORDER BY triggered_at DESC LIMIT 1`), definitionID)
	e, err := scanLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notification.ErrLogNotFound
		}
		return nil, fmt.Errorf("error getting latest log for %s: %w", definitionID, err)
	}
	return e, nil
}

func scanLog(s scanner) (*notification.LogEntry, error) {
	var (
		e              notification.LogEntry
		typ            string
		triggeredAt    int64
		clickedAt      sql.NullInt64
		action         sql.NullString
		snoozed        sql.NullBool
		snoozeDuration sql.NullInt64
	)
	if err := s.Scan(&e.ID, &e.UserID, &e.NotificationID, &typ, &triggeredAt,
		&clickedAt, &action, &snoozed, &snoozeDuration); err != nil {
		return nil, err
	}
	e.Type = notification.Type(typ)
	e.TriggeredAt = time.UnixMilli(triggeredAt)
	if clickedAt.Valid {
		t := time.UnixMilli(clickedAt.Int64)
		e.ClickedAt = &t
	}
	if action.Valid {
		e.ActionTaken = &action.String
	}
	if snoozed.Valid {
		e.Snoozed = &snoozed.Bool
	}
	if snoozeDuration.Valid {
		d := int(snoozeDuration.Int64)
		e.SnoozeDuration = &d
	}
	return &e, nil
}

func logNullables(e *notification.LogEntry) (sql.NullInt64, sql.NullString, sql.NullBool, sql.NullInt64) {
	var (
		clickedAt      sql.NullInt64
		action         sql.NullString
		snoozed        sql.NullBool
		snoozeDuration sql.NullInt64
	)
	if e.ClickedAt != nil {
		clickedAt = sql.NullInt64{Int64: e.ClickedAt.UnixMilli(), Valid: true}
	}
	if e.ActionTaken != nil {
		action = sql.NullString{String: *e.ActionTaken, Valid: true}
	}
	if e.Snoozed != nil {
		snoozed = sql.NullBool{Bool: *e.Snoozed, Valid: true}
	}
	if e.SnoozeDuration != nil {
		snoozeDuration = sql.NullInt64{Int64: int64(*e.SnoozeDuration), Valid: true}
	}
	return clickedAt, action, snoozed, snoozeDuration
}

func (r *SQLNotificationRepository) isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
