// internal/domain/notification/shared_types.go
package notification

// Type classifies a notification definition. The set is closed.
type Type string

const (
	TypeWeightTracking Type = "weight-tracking"
	TypePriorityReview Type = "priority-review"
	TypeMealLogging    Type = "meal-logging"
	TypeWaterReminder  Type = "water-reminder"
	TypeEveningJournal Type = "evening-journal"
	TypeCustom         Type = "custom"
)

// Valid reports whether t is one of the known notification types.
func (t Type) Valid() bool {
	switch t {
	case TypeWeightTracking, TypePriorityReview, TypeMealLogging,
		TypeWaterReminder, TypeEveningJournal, TypeCustom:
		return true
	}
	return false
}

// Well-known action names carried on notification buttons.
const (
	ActionLogWeight        = "log-weight"
	ActionReviewPriorities = "review-priorities"
	ActionLogMeal          = "log-meal"
	ActionLogWater         = "log-water"
	ActionWriteJournal     = "write-journal"
	ActionOpen             = "open"
	ActionSnooze           = "snooze"
	ActionSkip             = "skip"
	ActionDismiss          = "dismiss"
)

// Action is a button attached to a delivered notification.
type Action struct {
	Action string `json:"action" bson:"action"`
	Title  string `json:"title" bson:"title"`
	Icon   string `json:"icon,omitempty" bson:"icon,omitempty"`
}
