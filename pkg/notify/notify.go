// Package notify holds the side-effect handlers subscribed on the bus:
// senders for email, SMS and push, and notifiers that turn business events
// into notification events.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roboricindustries/raycon-bus/pkg/pubsub"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/common"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/notifications"
)

type EmailSender interface {
	SendEmail(ctx context.Context, msg notifications.SendEmailNotificationEvent) error
}

type SmsSender interface {
	SendSms(ctx context.Context, msg notifications.SendSmsNotificationEvent) error
}

type PushSender interface {
	SendPush(ctx context.Context, msg notifications.SendFirebasePushNotificationEvent) error
}

// Publisher is satisfied by *pubsub.Publisher.
type Publisher interface {
	Publish(ctx context.Context, payload common.Event, opts ...pubsub.PublishOption) (common.Meta, error)
}

// Config is read from NOTIFY_* variables.
type Config struct {
	AppName  string `env:"NOTIFY_APP_NAME" envDefault:"Raycon"`
	ResetURL string `env:"NOTIFY_RESET_URL" envDefault:"https://app.raycon.io/reset-password"`
}

type Deps struct {
	Config    Config
	Email     EmailSender
	Sms       SmsSender
	Push      PushSender
	Publisher Publisher
	Logger    *slog.Logger
}

// Register subscribes every handler of this package on r.
func Register(r *pubsub.Registry, d Deps) error {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	var errs []error
	sub := func(err error) { errs = append(errs, err) }

	if d.Email != nil {
		sub(pubsub.Subscribe(r, func() pubsub.Handler[notifications.SendEmailNotificationEvent] {
			return &EmailHandler{Sender: d.Email, Logger: d.Logger}
		}))
	}
	if d.Sms != nil {
		sub(pubsub.Subscribe(r, func() pubsub.Handler[notifications.SendSmsNotificationEvent] {
			return &SmsHandler{Sender: d.Sms, Logger: d.Logger}
		}))
	}
	if d.Push != nil {
		sub(pubsub.Subscribe(r, func() pubsub.Handler[notifications.SendFirebasePushNotificationEvent] {
			return &PushHandler{Sender: d.Push, Logger: d.Logger}
		}))
	}

	if d.Publisher != nil {
		accounts := &AccountNotifier{Publisher: d.Publisher, Config: d.Config, Logger: d.Logger}
		sub(pubsub.SubscribeFunc(r, accounts.OnUserRegistered))
		sub(pubsub.SubscribeFunc(r, accounts.OnPasswordResetRequested))
		sub(pubsub.SubscribeFunc(r, accounts.OnAccountDeleted))

		contacts := &ContactNotifier{Publisher: d.Publisher, Logger: d.Logger}
		sub(pubsub.SubscribeFunc(r, contacts.OnRequestSent))
		sub(pubsub.SubscribeFunc(r, contacts.OnRequestAccepted))

		conversations := &ConversationNotifier{Publisher: d.Publisher, Logger: d.Logger}
		sub(pubsub.SubscribeFunc(r, conversations.OnMessageSent))
		sub(pubsub.SubscribeFunc(r, conversations.OnCallMissed))
	}
	return errors.Join(errs...)
}

// publishAll publishes each follow-up event under the correlation id of
// the event that caused it and stops at the first failure.
func publishAll(ctx context.Context, p Publisher, cause common.Meta, events ...common.Event) error {
	for _, ev := range events {
		if _, err := p.Publish(ctx, ev, pubsub.WithCorrelationID(cause.Correlation())); err != nil {
			return err
		}
	}
	return nil
}
