package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roboricindustries/raycon-bus/pkg/schemas/common"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/notifications"
)

type EmailHandler struct {
	Sender EmailSender
	Logger *slog.Logger
}

func (h *EmailHandler) Handle(ctx context.Context, env common.GenericEnvelope[notifications.SendEmailNotificationEvent]) error {
	if err := h.Sender.SendEmail(ctx, env.Data); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	h.Logger.Info("email sent",
		slog.String("event_id", env.Meta.ID),
		slog.String("notification_code", env.Data.NotificationCode),
	)
	return nil
}

type SmsHandler struct {
	Sender SmsSender
	Logger *slog.Logger
}

func (h *SmsHandler) Handle(ctx context.Context, env common.GenericEnvelope[notifications.SendSmsNotificationEvent]) error {
	if err := h.Sender.SendSms(ctx, env.Data); err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	h.Logger.Info("sms sent", slog.String("event_id", env.Meta.ID))
	return nil
}

type PushHandler struct {
	Sender PushSender
	Logger *slog.Logger
}

func (h *PushHandler) Handle(ctx context.Context, env common.GenericEnvelope[notifications.SendFirebasePushNotificationEvent]) error {
	if err := h.Sender.SendPush(ctx, env.Data); err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	h.Logger.Info("push sent",
		slog.String("event_id", env.Meta.ID),
		slog.String("push_type", string(env.Data.Type)),
	)
	return nil
}

// LogSenders stands in for real delivery providers by logging each
// notification.
type LogSenders struct {
	Logger *slog.Logger
}

func (s LogSenders) SendEmail(_ context.Context, msg notifications.SendEmailNotificationEvent) error {
	s.Logger.Info("email", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return nil
}

func (s LogSenders) SendSms(_ context.Context, msg notifications.SendSmsNotificationEvent) error {
	s.Logger.Info("sms", slog.String("to", mask(msg.PhoneNumber)), slog.Int("length", len(msg.Message)))
	return nil
}

func (s LogSenders) SendPush(_ context.Context, msg notifications.SendFirebasePushNotificationEvent) error {
	targets := len(msg.DeviceTokens)
	if msg.DeviceToken != "" {
		targets = 1
	}
	s.Logger.Info("push",
		slog.String("type", string(msg.Type)),
		slog.String("topic", msg.Topic),
		slog.Int("targets", targets),
		slog.String("title", msg.Title),
	)
	return nil
}

// mask keeps the last four characters of a phone number.
func mask(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return "****" + phone[len(phone)-4:]
}
