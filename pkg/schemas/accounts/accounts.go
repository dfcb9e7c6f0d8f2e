package accounts

import (
	"time"

	"github.com/roboricindustries/raycon-bus/pkg/validation"
)

type UserRegisteredEvent struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	PhoneNumber string   `json:"phone_number,omitempty"`
	DeviceToken []string `json:"device_tokens,omitempty"`
}

func (UserRegisteredEvent) EventType() string { return "UserRegisteredEvent" }

func (e UserRegisteredEvent) Rules() validation.Rules {
	return validation.Rules{
		validation.F("UserID", e.UserID, validation.Required()),
		validation.F("Email", e.Email, validation.Required(), validation.MaxLength(320)),
		validation.F("DisplayName", e.DisplayName, validation.Required(), validation.MinLength(2), validation.MaxLength(64)),
	}
}

type PasswordResetRequestedEvent struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (PasswordResetRequestedEvent) EventType() string { return "PasswordResetRequestedEvent" }

func (e PasswordResetRequestedEvent) Rules() validation.Rules {
	return validation.Rules{
		validation.F("UserID", e.UserID, validation.Required()),
		validation.F("Email", e.Email, validation.Required()),
		validation.F("ResetToken", e.ResetToken, validation.Required(), validation.MinLength(16)),
		validation.F("ExpiresAt", e.ExpiresAt, validation.Required()),
	}
}

type AccountDeletedEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (AccountDeletedEvent) EventType() string { return "AccountDeletedEvent" }
