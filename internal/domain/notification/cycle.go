// internal/domain/notification/cycle.go
package notification

import "time"

// OccurrenceOn returns the wall-clock instant of tod on the calendar day of day,
// in day's location.
func OccurrenceOn(tod TimeOfDay, day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour, tod.Minute, 0, 0, day.Location())
}

// NextFireTime returns the first instant strictly after now whose local
// wall clock reads tod. The result is always in (now, now+~24h].
// Calendar-day arithmetic keeps the wall clock stable across DST changes.
func NextFireTime(tod TimeOfDay, now time.Time) time.Time {
	candidate := OccurrenceOn(tod, now)
	if candidate.After(now) {
		return candidate
	}
	return time.Date(now.Year(), now.Month(), now.Day()+1, tod.Hour, tod.Minute, 0, 0, now.Location())
}

// PreviousFireTime returns the latest occurrence of tod at or before now.
func PreviousFireTime(tod TimeOfDay, now time.Time) time.Time {
	candidate := OccurrenceOn(tod, now)
	if !candidate.After(now) {
		return candidate
	}
	return time.Date(now.Year(), now.Month(), now.Day()-1, tod.Hour, tod.Minute, 0, 0, now.Location())
}

// DueWithin returns the occurrence of tod lying within tolerance of now, if any.
// Occurrences on the neighbouring days are considered so midnight schedules match.
func DueWithin(tod TimeOfDay, now time.Time, tolerance time.Duration) (time.Time, bool) {
	for _, offset := range []int{0, -1, 1} {
		occ := time.Date(now.Year(), now.Month(), now.Day()+offset, tod.Hour, tod.Minute, 0, 0, now.Location())
		diff := now.Sub(occ)
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			return occ, true
		}
	}
	return time.Time{}, false
}
