package notifications

import (
	"github.com/roboricindustries/raycon-bus/pkg/schemas/common"
	"github.com/roboricindustries/raycon-bus/pkg/validation"
)

type SendSmsNotificationEvent struct {
	common.Core

	// E.164 digits, leading '+' allowed
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
}

func (SendSmsNotificationEvent) EventType() string { return "SendSmsNotificationEvent" }

func (e SendSmsNotificationEvent) Rules() validation.Rules {
	return validation.Rules{
		validation.F("PhoneNumber", e.PhoneNumber, validation.Required(), validation.MinLength(7), validation.MaxLength(16)),
		validation.F("Message", e.Message, validation.Required(), validation.MaxLength(1600)),
	}
}
