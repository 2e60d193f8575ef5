// internal/domain/notification/definition.go
package notification

import (
	"fmt"
	"regexp"
	"strconv"
)

var timeOfDayPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Definition is a persisted daily notification template.
// Corresponds to the 'notifications' table / collection.
type Definition struct {
	ID             string   `json:"id" bson:"_id"`
	Time           string   `json:"time" bson:"time"` // "HH:MM", local wall clock
	Title          string   `json:"title" bson:"title"`
	Body           string   `json:"body" bson:"body"`
	Type           Type     `json:"type" bson:"type"`
	Actions        []Action `json:"actions" bson:"actions"`
	Enabled        bool     `json:"enabled" bson:"enabled"`
	SnoozeEnabled  bool     `json:"snoozeEnabled" bson:"snoozeEnabled"`
	SnoozeDuration int      `json:"snoozeDuration" bson:"snoozeDuration"` // minutes
}

// TimeOfDay is a parsed "HH:MM" wall clock value.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay accepts exactly two-digit hours 00-23 and minutes 00-59.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	m := timeOfDayPattern.FindStringSubmatch(s)
	if m == nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return TimeOfDay{Hour: h, Minute: mm}, nil
}

// Validate checks the definition invariants before it is persisted.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDefinition)
	}
	if _, err := ParseTimeOfDay(d.Time); err != nil {
		return err
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidDefinition, d.Type)
	}
	if d.SnoozeDuration <= 0 {
		return fmt.Errorf("%w: snooze duration must be positive, got %d", ErrInvalidDefinition, d.SnoozeDuration)
	}
	seen := make(map[string]struct{}, len(d.Actions))
	for _, a := range d.Actions {
		if a.Action == "" {
			return fmt.Errorf("%w: action without name", ErrInvalidDefinition)
		}
		if _, dup := seen[a.Action]; dup {
			return fmt.Errorf("%w: duplicate action %q", ErrInvalidDefinition, a.Action)
		}
		seen[a.Action] = struct{}{}
	}
	return nil
}

// HasAction reports whether the definition carries the named button.
func (d *Definition) HasAction(name string) bool {
	for _, a := range d.Actions {
		if a.Action == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can keep snapshots independent of later edits.
func (d *Definition) Clone() *Definition {
	c := *d
	c.Actions = append([]Action(nil), d.Actions...)
	return &c
}
