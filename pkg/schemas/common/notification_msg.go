package common

// Core carries the audit fields shared by every outbound notification.
type Core struct {
	NotificationCode string        `json:"notification_code,omitempty"`
	RecipientRole    RecipientRole `json:"recipient_role,omitempty"`
	RecipientID      string        `json:"recipient_id,omitempty"`

	Meta map[string]any `json:"meta,omitempty"`
}

type RecipientRole string

const (
	Participant RecipientRole = "participant"
	Host        RecipientRole = "host"
	User        RecipientRole = "user"
)
