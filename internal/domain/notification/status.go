// internal/domain/notification/status.go
package notification

import (
	"fmt"
	"time"
)

// LogEntry records one delivery and, at most once, the user's reaction to it.
// Corresponds to the 'notification_logs' table / collection.
type LogEntry struct {
	ID             string     `json:"id" bson:"_id"` // "{definitionId}-{deliveryMillis}"
	UserID         string     `json:"userId" bson:"userId"`
	NotificationID string     `json:"notificationId" bson:"notificationId"`
	Type           Type       `json:"type" bson:"type"`
	TriggeredAt    time.Time  `json:"triggeredAt" bson:"triggeredAt"`
	ClickedAt      *time.Time `json:"clickedAt,omitempty" bson:"clickedAt,omitempty"`
	ActionTaken    *string    `json:"actionTaken,omitempty" bson:"actionTaken,omitempty"`
	Snoozed        *bool      `json:"snoozed,omitempty" bson:"snoozed,omitempty"`
	SnoozeDuration *int       `json:"snoozeDuration,omitempty" bson:"snoozeDuration,omitempty"`
}

// LogID builds the log key for a delivery of definitionID at triggeredAt.
func LogID(definitionID string, triggeredAt time.Time) string {
	return fmt.Sprintf("%s-%d", definitionID, triggeredAt.UnixMilli())
}

// NewLogEntry builds the entry appended after a delivery.
func NewLogEntry(userID string, def *Definition, triggeredAt time.Time) *LogEntry {
	return &LogEntry{
		ID:             LogID(def.ID, triggeredAt),
		UserID:         userID,
		NotificationID: def.ID,
		Type:           def.Type,
		TriggeredAt:    triggeredAt,
	}
}

// Interacted reports whether a click has already been recorded.
func (e *LogEntry) Interacted() bool {
	return e.ClickedAt != nil
}

// RecordInteraction stores the click. snoozeMinutes is only kept when snoozed is true.
func (e *LogEntry) RecordInteraction(at time.Time, action string, snoozed bool, snoozeMinutes int) {
	e.ClickedAt = &at
	e.ActionTaken = &action
	if snoozed {
		e.Snoozed = &snoozed
		e.SnoozeDuration = &snoozeMinutes
	}
}
