package conversations

import (
	"time"

	"github.com/roboricindustries/raycon-bus/pkg/validation"
)

// Longest preview forwarded to push payloads.
const MaxPreviewLen = 512

type ChatMessageSentEvent struct {
	ConversationID        string   `json:"conversation_id"`
	MessageID             string   `json:"message_id"`
	SenderID              string   `json:"sender_id"`
	SenderName            string   `json:"sender_name"`
	RecipientIDs          []string `json:"recipient_ids"`
	RecipientDeviceTokens []string `json:"recipient_device_tokens,omitempty"`
	Preview               string   `json:"preview,omitempty"`
}

func (ChatMessageSentEvent) EventType() string { return "ChatMessageSentEvent" }

func (e ChatMessageSentEvent) Rules() validation.Rules {
	return validation.Rules{
		validation.F("ConversationID", e.ConversationID, validation.Required()),
		validation.F("MessageID", e.MessageID, validation.Required()),
		validation.F("SenderID", e.SenderID, validation.Required()),
		validation.F("RecipientIDs", e.RecipientIDs, validation.Required(), validation.MaxLength(1000)),
		validation.F("Preview", e.Preview, validation.MaxLength(MaxPreviewLen)),
	}
}

type CallMissedEvent struct {
	CallID             string    `json:"call_id"`
	CallerID           string    `json:"caller_id"`
	CallerName         string    `json:"caller_name"`
	CalleeID           string    `json:"callee_id"`
	CalleeDeviceTokens []string  `json:"callee_device_tokens,omitempty"`
	CalleePhoneNumber  string    `json:"callee_phone_number,omitempty"`
	Video              bool      `json:"video"`
	StartedAt          time.Time `json:"started_at"`
}

func (CallMissedEvent) EventType() string { return "CallMissedEvent" }

func (e CallMissedEvent) Rules() validation.Rules {
	return validation.Rules{
		validation.F("CallID", e.CallID, validation.Required()),
		validation.F("CallerID", e.CallerID, validation.Required()),
		validation.F("CalleeID", e.CalleeID, validation.Required()),
		validation.F("StartedAt", e.StartedAt, validation.Required()),
	}
}
