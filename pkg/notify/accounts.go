package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/roboricindustries/raycon-bus/pkg/schemas/accounts"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/common"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/notifications"
)

const (
	CodeWelcome       = "account.welcome"
	CodeWelcomeSms    = "account.welcome.sms"
	CodePasswordReset = "account.password_reset"
	CodeGoodbye       = "account.deleted"
)

type AccountNotifier struct {
	Publisher Publisher
	Config    Config
	Logger    *slog.Logger
}

// OnUserRegistered sends a welcome email, and an SMS when the user left a
// phone number.
func (n *AccountNotifier) OnUserRegistered(ctx context.Context, env common.GenericEnvelope[accounts.UserRegisteredEvent]) error {
	u := env.Data
	events := []common.Event{
		notifications.SendEmailNotificationEvent{
			Core:    userCore(CodeWelcome, u.UserID),
			To:      u.Email,
			Subject: fmt.Sprintf("Welcome to %s", n.Config.AppName),
			Body:    fmt.Sprintf("Hi %s, your %s account is ready.", u.DisplayName, n.Config.AppName),
		},
	}
	if u.PhoneNumber != "" {
		events = append(events, notifications.SendSmsNotificationEvent{
			Core:        userCore(CodeWelcomeSms, u.UserID),
			PhoneNumber: u.PhoneNumber,
			Message:     fmt.Sprintf("Welcome to %s, %s!", n.Config.AppName, u.DisplayName),
		})
	}
	return publishAll(ctx, n.Publisher, env.Meta, events...)
}

func (n *AccountNotifier) OnPasswordResetRequested(ctx context.Context, env common.GenericEnvelope[accounts.PasswordResetRequestedEvent]) error {
	r := env.Data
	link, err := n.resetLink(r.ResetToken)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Use this link to reset your %s password: %s", n.Config.AppName, link)
	if !r.ExpiresAt.IsZero() {
		body += fmt.Sprintf("\nThe link expires at %s.", r.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	return publishAll(ctx, n.Publisher, env.Meta, notifications.SendEmailNotificationEvent{
		Core:    userCore(CodePasswordReset, r.UserID),
		To:      r.Email,
		Subject: fmt.Sprintf("Reset your %s password", n.Config.AppName),
		Body:    body,
	})
}

func (n *AccountNotifier) OnAccountDeleted(ctx context.Context, env common.GenericEnvelope[accounts.AccountDeletedEvent]) error {
	d := env.Data
	if d.Email == "" {
		n.Logger.Warn("account deleted without email, skipping goodbye",
			slog.String("event_id", env.Meta.ID),
			slog.String("user_id", d.UserID),
		)
		return nil
	}
	return publishAll(ctx, n.Publisher, env.Meta, notifications.SendEmailNotificationEvent{
		Core:    userCore(CodeGoodbye, d.UserID),
		To:      d.Email,
		Subject: fmt.Sprintf("Your %s account was deleted", n.Config.AppName),
		Body:    "Your account and its data have been removed.",
	})
}

func (n *AccountNotifier) resetLink(token string) (string, error) {
	u, err := url.Parse(n.Config.ResetURL)
	if err != nil {
		return "", fmt.Errorf("parse reset url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func userCore(code, userID string) common.Core {
	return common.Core{
		NotificationCode: code,
		RecipientRole:    common.User,
		RecipientID:      userID,
	}
}
