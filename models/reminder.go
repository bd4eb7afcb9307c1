package models

import (
	"errors"
	"fmt"
	"time"
)

// RecurrenceType identifies how a reminder repeats.
type RecurrenceType string

const (
	RecurrenceNone     RecurrenceType = "none"
	RecurrenceDaily    RecurrenceType = "daily"
	RecurrenceWeekly   RecurrenceType = "weekly"
	RecurrenceInterval RecurrenceType = "interval"
)

func (t RecurrenceType) IsValid() bool {
	switch t {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceInterval:
		return true
	default:
		return false
	}
}

// Weekday is the lowercase wire form used by the dashboard API.
type Weekday string

const (
	Sunday    Weekday = "sunday"
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
)

var weekdayToTime = map[Weekday]time.Weekday{
	Sunday:    time.Sunday,
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
}

func (d Weekday) IsValid() bool {
	_, ok := weekdayToTime[d]
	return ok
}

// TimeWeekday maps the wire form onto time.Weekday. The second return is
// false for unrecognized values.
func (d Weekday) TimeWeekday() (time.Weekday, bool) {
	w, ok := weekdayToTime[d]
	return w, ok
}

// Recurrence is the tagged union describing a reminder's cadence. Days is
// meaningful only for weekly, Hours only for interval.
type Recurrence struct {
	Type  RecurrenceType `json:"type"`
	Days  []Weekday      `json:"days,omitempty"`
	Hours int            `json:"hours,omitempty"`
}

var (
	ErrInvalidRecurrenceType = errors.New("models: invalid recurrence type")
	ErrInvalidIntervalHours  = errors.New("models: interval hours must be at least 1")
	ErrInvalidWeekday        = errors.New("models: invalid weekday")
)

func (r Recurrence) Validate() error {
	if !r.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRecurrenceType, r.Type)
	}
	if r.Type == RecurrenceInterval && r.Hours < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidIntervalHours, r.Hours)
	}
	if r.Type == RecurrenceWeekly {
		seen := make(map[Weekday]bool, len(r.Days))
		for _, d := range r.Days {
			if !d.IsValid() {
				return fmt.Errorf("%w: %q", ErrInvalidWeekday, d)
			}
			if seen[d] {
				return fmt.Errorf("models: duplicate weekday %q", d)
			}
			seen[d] = true
		}
	}
	return nil
}

// ReminderStatus is active or paused. Paused reminders are suspended, not
// deleted, and never produce a next occurrence.
type ReminderStatus string

const (
	StatusActive ReminderStatus = "active"
	StatusPaused ReminderStatus = "paused"
)

func (s ReminderStatus) IsValid() bool {
	return s == StatusActive || s == StatusPaused
}

// ReminderKind replaces the old heuristic that inferred a boss timer from
// a 20-hour interval. The kind is stored explicitly.
type ReminderKind string

const (
	KindNormal ReminderKind = "normal"
	KindBoss   ReminderKind = "boss"
)

func (k ReminderKind) IsValid() bool {
	return k == KindNormal || k == KindBoss
}

type Reminder struct {
	ID                  string         `json:"id"`
	ServerID            string         `json:"serverId"`
	Message             string         `json:"message"`
	ChannelID           string         `json:"channelId"`
	Channel             string         `json:"channel"`
	StartTime           string         `json:"startTime"` // ISO 8601; validity is checked at use, not on load
	Recurrence          Recurrence     `json:"recurrence"`
	Status              ReminderStatus `json:"status"`
	Kind                ReminderKind   `json:"kind"`
	NotificationOffsets []int          `json:"notificationOffsets,omitempty"`
	SelectedEmojis      []string       `json:"selectedEmojis,omitempty"`
	HideNextTime        bool           `json:"hideNextTime,omitempty"`
	CreatedBy           string         `json:"createdBy"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

func (r Reminder) Validate() error {
	if r.Message == "" {
		return errors.New("models: reminder message is required")
	}
	if r.ChannelID == "" {
		return errors.New("models: reminder channel is required")
	}
	if r.StartTime == "" {
		return errors.New("models: reminder start time is required")
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("models: invalid status %q", r.Status)
	}
	if !r.Kind.IsValid() {
		return fmt.Errorf("models: invalid kind %q", r.Kind)
	}
	for _, off := range r.NotificationOffsets {
		if off < 0 {
			return fmt.Errorf("models: negative notification offset %d", off)
		}
	}
	return r.Recurrence.Validate()
}

type CreateReminderRequest struct {
	Message             string     `json:"message"`
	ChannelID           string     `json:"channelId"`
	Channel             string     `json:"channel"`
	StartTime           string     `json:"startTime"`
	Recurrence          Recurrence `json:"recurrence"`
	Status              string     `json:"status"`
	Kind                string     `json:"kind"`
	NotificationOffsets []int      `json:"notificationOffsets,omitempty"`
	SelectedEmojis      []string   `json:"selectedEmojis,omitempty"`
	HideNextTime        bool       `json:"hideNextTime,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type AdjustTimeRequest struct {
	Minutes int `json:"minutes"`
}

// ReminderView is a reminder plus the projections the dashboard renders:
// the recurrence description and the computed next occurrence.
type ReminderView struct {
	Reminder
	RecurrenceText string `json:"recurrenceText"`
	NextOccurrence string `json:"nextOccurrence"`
}
