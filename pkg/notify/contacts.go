package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roboricindustries/raycon-bus/pkg/schemas/common"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/contacts"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/notifications"
)

const (
	CodeContactRequest  = "contacts.request"
	CodeContactAccepted = "contacts.accepted"
)

type ContactNotifier struct {
	Publisher Publisher
	Logger    *slog.Logger
}

// OnRequestSent pushes to the invitee's devices and mails them when an
// address is known.
func (n *ContactNotifier) OnRequestSent(ctx context.Context, env common.GenericEnvelope[contacts.ContactRequestSentEvent]) error {
	r := env.Data
	title := fmt.Sprintf("%s wants to connect", r.FromDisplayName)

	var events []common.Event
	for _, batch := range chunk(r.ToDeviceTokens, notifications.MaxMulticastTokens) {
		push := notifications.NewDevicePush(batch, title, r.Message)
		push.Core = userCore(CodeContactRequest, r.ToUserID)
		push.Data = map[string]string{"request_id": r.RequestID, "from_user_id": r.FromUserID}
		events = append(events, push)
	}
	if r.ToEmail != "" {
		body := fmt.Sprintf("%s sent you a contact request.", r.FromDisplayName)
		if r.Message != "" {
			body += "\n\n" + r.Message
		}
		events = append(events, notifications.SendEmailNotificationEvent{
			Core:    userCore(CodeContactRequest, r.ToUserID),
			To:      r.ToEmail,
			Subject: title,
			Body:    body,
		})
	}
	if len(events) == 0 {
		n.Logger.Info("contact request has no reachable recipient",
			slog.String("event_id", env.Meta.ID),
			slog.String("request_id", r.RequestID),
		)
		return nil
	}
	return publishAll(ctx, n.Publisher, env.Meta, events...)
}

func (n *ContactNotifier) OnRequestAccepted(ctx context.Context, env common.GenericEnvelope[contacts.ContactRequestAcceptedEvent]) error {
	a := env.Data
	title := fmt.Sprintf("%s accepted your request", a.ToDisplayName)

	var events []common.Event
	for _, batch := range chunk(a.FromDeviceTokens, notifications.MaxMulticastTokens) {
		push := notifications.NewDevicePush(batch, title, "")
		push.Core = userCore(CodeContactAccepted, a.FromUserID)
		push.Data = map[string]string{"request_id": a.RequestID, "user_id": a.ToUserID}
		events = append(events, push)
	}
	return publishAll(ctx, n.Publisher, env.Meta, events...)
}

// chunk splits tokens into batches of at most size.
func chunk(tokens []string, size int) [][]string {
	var out [][]string
	for len(tokens) > size {
		out = append(out, tokens[:size])
		tokens = tokens[size:]
	}
	if len(tokens) > 0 {
		out = append(out, tokens)
	}
	return out
}
