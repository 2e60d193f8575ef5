package notification

// DefaultSnoozeMinutes is the snooze length of every seeded definition.
const DefaultSnoozeMinutes = 10

var (
	snoozeButton = Action{Action: ActionSnooze, Title: "Snooze 10 min", Icon: "/icons/snooze.svg"}
	skipButton   = Action{Action: ActionSkip, Title: "Skip today"}
)

// Defaults returns a fresh copy of the seeded catalog, one definition per id.
func Defaults() []*Definition {
	return []*Definition{
		{
			ID:             "weight-tracking",
			Time:           "06:00",
			Title:          "Morning weigh-in",
			Body:           "Step on the scale and log today's weight.",
			Type:           TypeWeightTracking,
			Actions:        []Action{{Action: ActionLogWeight, Title: "Log weight"}, snoozeButton},
			Enabled:        true,
			SnoozeEnabled:  true,
			SnoozeDuration: DefaultSnoozeMinutes,
		},
		{
			ID:             "priority-review",
			Time:           "06:30",
			Title:          "Plan your day",
			Body:           "Review and pick today's top priorities.",
			Type:           TypePriorityReview,
			Actions:        []Action{{Action: ActionReviewPriorities, Title: "Review priorities"}, snoozeButton},
			Enabled:        true,
			SnoozeEnabled:  true,
			SnoozeDuration: DefaultSnoozeMinutes,
		},
		{
			ID:             "lunch-logging",
			Time:           "12:00",
			Title:          "Lunch time",
			Body:           "Remember to log what you had for lunch.",
			Type:           TypeMealLogging,
			Actions:        []Action{{Action: ActionLogMeal, Title: "Log meal"}, skipButton},
			Enabled:        true,
			SnoozeEnabled:  true,
			SnoozeDuration: DefaultSnoozeMinutes,
		},
		{
			ID:             "dinner-logging",
			Time:           "18:00",
			Title:          "Dinner time",
			Body:           "Remember to log what you had for dinner.",
			Type:           TypeMealLogging,
			Actions:        []Action{{Action: ActionLogMeal, Title: "Log meal"}, skipButton},
			Enabled:        true,
			SnoozeEnabled:  true,
			SnoozeDuration: DefaultSnoozeMinutes,
		},
		{
			ID:             "water-reminder",
			Time:           "21:00",
			Title:          "Water check",
			Body:           "How many glasses of water did you drink today?",
			Type:           TypeWaterReminder,
			Actions:        []Action{{Action: ActionLogWater, Title: "Log water"}, snoozeButton},
			Enabled:        true,
			SnoozeEnabled:  true,
			SnoozeDuration: DefaultSnoozeMinutes,
		},
		{
			ID:             "evening-journal",
			Time:           "22:00",
			Title:          "Evening journal",
			Body:           "Take a few minutes to reflect on your day.",
			Type:           TypeEveningJournal,
			Actions:        []Action{{Action: ActionWriteJournal, Title: "Write entry"}, snoozeButton},
			Enabled:        true,
			SnoozeEnabled:  true,
			SnoozeDuration: DefaultSnoozeMinutes,
		},
	}
}
