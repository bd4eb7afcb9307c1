package models

import "time"

const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionPause      = "pause"
	ActionResume     = "resume"
	ActionAdjustTime = "adjust_time"
	ActionRestore    = "restore"
)

// ActionLog is one audit entry for a server. Snapshot holds the reminder
// as JSON at the time of the action so a delete or overwrite can be
// restored from the log.
type ActionLog struct {
	ID         string    `json:"id"`
	ServerID   string    `json:"serverId"`
	UserID     string    `json:"userId"`
	Action     string    `json:"action"`
	ReminderID string    `json:"reminderId"`
	Snapshot   string    `json:"snapshot,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
