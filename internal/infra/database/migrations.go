package database

// schema is valid for both SQLite and PostgreSQL. Instants are unix milliseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS notifications (
		id              TEXT PRIMARY KEY,
		fire_time       TEXT NOT NULL,
		title           TEXT NOT NULL,
		body            TEXT NOT NULL,
		type            TEXT NOT NULL,
		actions         TEXT NOT NULL,
		enabled         BOOLEAN NOT NULL,
		snooze_enabled  BOOLEAN NOT NULL,
		snooze_duration INTEGER NOT NULL,
		updated_at      BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notification_logs (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		notification_id TEXT NOT NULL,
		type            TEXT NOT NULL,
		triggered_at    BIGINT NOT NULL,
		clicked_at      BIGINT,
		action_taken    TEXT,
		snoozed         BOOLEAN,
		snooze_duration INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notification_logs_notification_id ON notification_logs (notification_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notification_logs_triggered_at ON notification_logs (triggered_at)`,
	`CREATE INDEX IF NOT EXISTS idx_notification_logs_user_notification_triggered ON notification_logs (user_id, notification_id, triggered_at)`,
}
