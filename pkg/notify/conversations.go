package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roboricindustries/raycon-bus/pkg/schemas/common"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/conversations"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/notifications"
)

const (
	CodeChatMessage = "conversations.message"
	CodeMissedCall  = "conversations.missed_call"
)

type ConversationNotifier struct {
	Publisher Publisher
	Logger    *slog.Logger
}

func (n *ConversationNotifier) OnMessageSent(ctx context.Context, env common.GenericEnvelope[conversations.ChatMessageSentEvent]) error {
	m := env.Data
	preview := truncate(m.Preview, conversations.MaxPreviewLen)

	var events []common.Event
	for _, batch := range chunk(m.RecipientDeviceTokens, notifications.MaxMulticastTokens) {
		push := notifications.NewDevicePush(batch, m.SenderName, preview)
		push.Core = common.Core{
			NotificationCode: CodeChatMessage,
			RecipientRole:    common.Participant,
		}
		push.Data = map[string]string{
			"conversation_id": m.ConversationID,
			"message_id":      m.MessageID,
			"sender_id":       m.SenderID,
		}
		events = append(events, push)
	}
	if len(events) == 0 {
		n.Logger.Debug("chat message has no registered devices",
			slog.String("event_id", env.Meta.ID),
			slog.String("conversation_id", m.ConversationID),
		)
		return nil
	}
	return publishAll(ctx, n.Publisher, env.Meta, events...)
}

// OnCallMissed pushes to the callee, falling back to SMS when they have no
// registered devices.
func (n *ConversationNotifier) OnCallMissed(ctx context.Context, env common.GenericEnvelope[conversations.CallMissedEvent]) error {
	c := env.Data
	kind := "call"
	if c.Video {
		kind = "video call"
	}
	text := fmt.Sprintf("Missed %s from %s", kind, c.CallerName)
	core := common.Core{
		NotificationCode: CodeMissedCall,
		RecipientRole:    common.Participant,
		RecipientID:      c.CalleeID,
	}

	switch {
	case len(c.CalleeDeviceTokens) > 0:
		var events []common.Event
		for _, batch := range chunk(c.CalleeDeviceTokens, notifications.MaxMulticastTokens) {
			push := notifications.NewDevicePush(batch, text, "")
			push.Core = core
			push.Data = map[string]string{"call_id": c.CallID, "caller_id": c.CallerID}
			events = append(events, push)
		}
		return publishAll(ctx, n.Publisher, env.Meta, events...)
	case c.CalleePhoneNumber != "":
		return publishAll(ctx, n.Publisher, env.Meta, notifications.SendSmsNotificationEvent{
			Core:        core,
			PhoneNumber: c.CalleePhoneNumber,
			Message:     text,
		})
	default:
		n.Logger.Info("missed call callee unreachable",
			slog.String("event_id", env.Meta.ID),
			slog.String("call_id", c.CallID),
		)
		return nil
	}
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
