package contacts

import "github.com/roboricindustries/raycon-bus/pkg/validation"

type ContactRequestSentEvent struct {
	RequestID       string   `json:"request_id"`
	FromUserID      string   `json:"from_user_id"`
	FromDisplayName string   `json:"from_display_name"`
	ToUserID        string   `json:"to_user_id"`
	ToEmail         string   `json:"to_email,omitempty"`
	ToDeviceTokens  []string `json:"to_device_tokens,omitempty"`
	Message         string   `json:"message,omitempty"`
}

func (ContactRequestSentEvent) EventType() string { return "ContactRequestSentEvent" }

func (e ContactRequestSentEvent) Rules() validation.Rules {
	return validation.Rules{
		validation.F("RequestID", e.RequestID, validation.Required()),
		validation.F("FromUserID", e.FromUserID, validation.Required()),
		validation.F("ToUserID", e.ToUserID, validation.Required()),
		validation.F("Message", e.Message, validation.MaxLength(280)),
	}
}

type ContactRequestAcceptedEvent struct {
	RequestID        string   `json:"request_id"`
	FromUserID       string   `json:"from_user_id"` // original requester
	FromDeviceTokens []string `json:"from_device_tokens,omitempty"`
	ToUserID         string   `json:"to_user_id"`
	ToDisplayName    string   `json:"to_display_name"`
}

func (ContactRequestAcceptedEvent) EventType() string { return "ContactRequestAcceptedEvent" }

func (e ContactRequestAcceptedEvent) Rules() validation.Rules {
	return validation.Rules{
		validation.F("RequestID", e.RequestID, validation.Required()),
		validation.F("FromUserID", e.FromUserID, validation.Required()),
		validation.F("ToUserID", e.ToUserID, validation.Required()),
	}
}
