package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboricindustries/raycon-bus/pkg/validation"
)

func TestPushSingleDeviceRequiresToken(t *testing.T) {
	res := validation.Validate(SendFirebasePushNotificationEvent{Type: SingleDevice, Title: "Missed call"})
	require.False(t, res.IsValid())
	require.Len(t, res.Errors(), 1)
	assert.Contains(t, res.Errors()[0], "DeviceToken")
}

func TestPushAddressing(t *testing.T) {
	cases := []struct {
		name  string
		ev    SendFirebasePushNotificationEvent
		field string
	}{
		{"multi without tokens", SendFirebasePushNotificationEvent{Type: MultipleDevices, Title: "t"}, "DeviceTokens"},
		{"topic without topic", SendFirebasePushNotificationEvent{Type: Topic, Title: "t"}, "Topic"},
		{"missing type", SendFirebasePushNotificationEvent{Title: "t"}, "Type"},
		{"missing title", SendFirebasePushNotificationEvent{Type: Topic, Topic: "news"}, "Title"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := validation.Validate(tc.ev)
			require.Len(t, res.Issues, 1)
			assert.Equal(t, tc.field, res.Issues[0].Field)
		})
	}
}

func TestNewDevicePush(t *testing.T) {
	one := NewDevicePush([]string{"tok"}, "Hi", "")
	assert.Equal(t, SingleDevice, one.Type)
	assert.Equal(t, "tok", one.DeviceToken)
	assert.True(t, validation.Validate(one).IsValid())

	many := NewDevicePush([]string{"a", "b"}, "Hi", "")
	assert.Equal(t, MultipleDevices, many.Type)
	assert.True(t, validation.Validate(many).IsValid())
}

func TestEmailAndSmsRules(t *testing.T) {
	assert.True(t, validation.Validate(SendEmailNotificationEvent{To: "a@x.com", Subject: "Hi"}).IsValid())
	assert.Equal(t,
		[]string{"To is required", "Subject is required"},
		validation.Validate(SendEmailNotificationEvent{}).Errors(),
	)

	sms := validation.Validate(SendSmsNotificationEvent{PhoneNumber: "123", Message: "code 1234"})
	require.Len(t, sms.Issues, 1)
	assert.Equal(t, "PhoneNumber must have a minimum length of 7", sms.Errors()[0])
}
