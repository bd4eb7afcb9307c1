// Package schedule computes occurrence projections for reminders. All
// functions are pure: the reference instant is an explicit parameter and
// data-quality problems surface as sentinel values, never as panics.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"remindash-server/models"
)

// Sentinel strings returned for states that have no computable occurrence.
const (
	TextNoRepeat    = "no repeat"
	TextInvalidDate = "date configuration error"
	TextPaused      = "paused"
	TextEnded       = "ended or misconfigured"
)

const (
	nextTimeLayout  = "January 2 (Mon) 15:04"
	timeOfDayLayout = "15:04"
)

var startTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseStartTime parses a reminder's anchor timestamp. Besides RFC 3339 it
// accepts the zone-less forms the dashboard's datetime inputs produce.
func ParseStartTime(value string) (time.Time, error) {
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("schedule: unparseable start time %q", value)
}

// Describe renders the cadence independent of the current time: the
// time-of-day comes from the start time, the repetition from the rule.
func Describe(r models.Reminder) string {
	start, err := ParseStartTime(r.StartTime)
	if err != nil {
		return TextInvalidDate
	}
	clock := start.Format(timeOfDayLayout)

	switch r.Recurrence.Type {
	case models.RecurrenceDaily:
		return fmt.Sprintf("notifies daily at %s", clock)
	case models.RecurrenceWeekly:
		names := make([]string, 0, len(r.Recurrence.Days))
		for _, d := range r.Recurrence.Days {
			if w, ok := d.TimeWeekday(); ok {
				names = append(names, w.String())
			}
		}
		return fmt.Sprintf("notifies every %s at %s", strings.Join(names, ", "), clock)
	case models.RecurrenceInterval:
		return fmt.Sprintf("notifies every %d hours", r.Recurrence.Hours)
	default:
		return TextNoRepeat
	}
}

// NextOccurrence computes the first fire time strictly after now, or false
// when none exists: the start time is unparseable, a one-shot already
// fired, or a weekly rule has no target days.
func NextOccurrence(r models.Reminder, now time.Time) (time.Time, bool) {
	start, err := ParseStartTime(r.StartTime)
	if err != nil {
		return time.Time{}, false
	}

	switch r.Recurrence.Type {
	case models.RecurrenceNone:
		if start.After(now) {
			return start, true
		}
		return time.Time{}, false

	case models.RecurrenceDaily:
		return dailyAnchor(start, now), true

	case models.RecurrenceInterval:
		if r.Recurrence.Hours < 1 {
			return time.Time{}, false
		}
		step := time.Duration(r.Recurrence.Hours) * time.Hour
		next := start
		for !next.After(now) {
			next = next.Add(step)
		}
		return next, true

	case models.RecurrenceWeekly:
		targets := make(map[time.Weekday]bool, len(r.Recurrence.Days))
		for _, d := range r.Recurrence.Days {
			if w, ok := d.TimeWeekday(); ok {
				targets[w] = true
			}
		}
		if len(targets) == 0 {
			return time.Time{}, false
		}
		candidate := dailyAnchor(start, now)
		for i := 0; i < 7; i++ {
			if targets[candidate.Weekday()] {
				return candidate, true
			}
			candidate = candidate.AddDate(0, 0, 1)
		}
		return time.Time{}, false

	default:
		return time.Time{}, false
	}
}

// dailyAnchor builds the next instant matching the start time's clock:
// today (or the start date if that is later) at start's hour and minute,
// pushed one day forward when not strictly after now. Seconds are dropped,
// matching what the dashboard's time pickers submit.
func dailyAnchor(start, now time.Time) time.Time {
	base := now
	if start.After(now) {
		base = start
	}
	y, m, d := base.Date()
	candidate := time.Date(y, m, d, start.Hour(), start.Minute(), 0, 0, base.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// FormatNext renders the next occurrence for display. A paused reminder
// short-circuits to the paused sentinel before any date math.
func FormatNext(r models.Reminder, now time.Time) string {
	if r.Status == models.StatusPaused {
		return TextPaused
	}
	next, ok := NextOccurrence(r, now)
	if !ok {
		return TextEnded
	}
	return next.Format(nextTimeLayout)
}
