package notifications

import (
	"github.com/roboricindustries/raycon-bus/pkg/schemas/common"
	"github.com/roboricindustries/raycon-bus/pkg/validation"
)

// PushType selects how a Firebase push is addressed.
type PushType string

const (
	SingleDevice    PushType = "SingleDevice"
	MultipleDevices PushType = "MultipleDevices"
	Topic           PushType = "Topic"
)

// FCM multicast accepts at most this many registration tokens.
const MaxMulticastTokens = 500

type SendFirebasePushNotificationEvent struct {
	common.Core

	Type         PushType          `json:"type"`
	DeviceToken  string            `json:"device_token,omitempty"`
	DeviceTokens []string          `json:"device_tokens,omitempty"`
	Topic        string            `json:"topic,omitempty"`
	Title        string            `json:"title"`
	Body         string            `json:"body,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
}

func (SendFirebasePushNotificationEvent) EventType() string {
	return "SendFirebasePushNotificationEvent"
}

func (e SendFirebasePushNotificationEvent) Rules() validation.Rules {
	return validation.Rules{
		validation.F("Type", string(e.Type), validation.Required()),
		validation.F("DeviceToken", e.DeviceToken, validation.RequiredWhen("Type", SingleDevice)),
		validation.F("DeviceTokens", e.DeviceTokens,
			validation.RequiredWhen("Type", MultipleDevices),
			validation.MaxLength(MaxMulticastTokens),
		),
		validation.F("Topic", e.Topic, validation.RequiredWhen("Type", Topic), validation.MaxLength(900)),
		validation.F("Title", e.Title, validation.Required(), validation.MaxLength(200)),
		validation.F("Data", e.Data, validation.MaxLength(100)),
	}
}

// NewDevicePush addresses a push to one or many devices, picking the
// matching PushType.
func NewDevicePush(tokens []string, title, body string) SendFirebasePushNotificationEvent {
	ev := SendFirebasePushNotificationEvent{Title: title, Body: body}
	if len(tokens) == 1 {
		ev.Type = SingleDevice
		ev.DeviceToken = tokens[0]
		return ev
	}
	ev.Type = MultipleDevices
	ev.DeviceTokens = tokens
	return ev
}
