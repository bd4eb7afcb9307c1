package models

import "time"

// MissedNotification records an occurrence that passed without being
// delivered, so the dashboard can surface it until acknowledged.
type MissedNotification struct {
	ID              string    `json:"id"`
	ServerID        string    `json:"serverId"`
	ReminderMessage string    `json:"reminderMessage"`
	ChannelName     string    `json:"channelName"`
	MissedAt        time.Time `json:"missedAt"`
	Acknowledged    bool      `json:"acknowledged"`
}

// WSMessage is the envelope for every websocket event.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	WSTypeReminderCreated    = "reminder_created"
	WSTypeReminderUpdated    = "reminder_updated"
	WSTypeReminderDeleted    = "reminder_deleted"
	WSTypeMissedNotification = "missed_notification"
	WSTypeServerUpdated      = "server_updated"
)
