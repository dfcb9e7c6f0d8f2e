package notifications

import (
	"github.com/roboricindustries/raycon-bus/pkg/schemas/common"
	"github.com/roboricindustries/raycon-bus/pkg/validation"
)

type SendEmailNotificationEvent struct {
	common.Core

	To      string   `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body,omitempty"`
	IsHTML  bool     `json:"is_html,omitempty"`
}

func (SendEmailNotificationEvent) EventType() string { return "SendEmailNotificationEvent" }

func (e SendEmailNotificationEvent) Rules() validation.Rules {
	return validation.Rules{
		validation.F("To", e.To, validation.Required(), validation.MaxLength(320)),
		validation.F("Cc", e.Cc, validation.MaxLength(50)),
		validation.F("Subject", e.Subject, validation.Required(), validation.MaxLength(255)),
		validation.F("Body", e.Body, validation.MaxLength(100_000)),
	}
}
