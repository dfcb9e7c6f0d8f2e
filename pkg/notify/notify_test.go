package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboricindustries/raycon-bus/pkg/pubsub"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/accounts"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/common"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/contacts"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/conversations"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/notifications"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type published struct {
	event common.Event
	meta  common.Meta
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, ev common.Event, opts ...pubsub.PublishOption) (common.Meta, error) {
	if f.err != nil {
		return common.Meta{}, f.err
	}
	meta := common.Meta{ID: "out", Type: ev.EventType()}
	for _, opt := range opts {
		opt(&meta)
	}
	f.mu.Lock()
	f.events = append(f.events, published{event: ev, meta: meta})
	f.mu.Unlock()
	return meta, nil
}

type fakeSenders struct {
	mu     sync.Mutex
	emails []notifications.SendEmailNotificationEvent
	sms    []notifications.SendSmsNotificationEvent
	pushes []notifications.SendFirebasePushNotificationEvent
	err    error
}

func (f *fakeSenders) SendEmail(_ context.Context, msg notifications.SendEmailNotificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, msg)
	return f.err
}

func (f *fakeSenders) SendSms(_ context.Context, msg notifications.SendSmsNotificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sms = append(f.sms, msg)
	return f.err
}

func (f *fakeSenders) SendPush(_ context.Context, msg notifications.SendFirebasePushNotificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, msg)
	return f.err
}

func envelope[T common.Event](payload T, correlation string) common.GenericEnvelope[T] {
	env := common.NewEnvelope(payload)
	if correlation != "" {
		env.Meta.CorrelationID = &correlation
	}
	return env
}

func testConfig() Config {
	return Config{AppName: "Raycon", ResetURL: "https://example.test/reset"}
}

func TestUserRegisteredSendsWelcomeEmailAndSms(t *testing.T) {
	pub := &fakePublisher{}
	n := &AccountNotifier{Publisher: pub, Config: testConfig(), Logger: discard()}

	env := envelope(accounts.UserRegisteredEvent{
		UserID:      "u-1",
		Email:       "ann@example.test",
		DisplayName: "Ann",
		PhoneNumber: "+15551234567",
	}, "req-42")
	require.NoError(t, n.OnUserRegistered(context.Background(), env))

	require.Len(t, pub.events, 2)
	email, ok := pub.events[0].event.(notifications.SendEmailNotificationEvent)
	require.True(t, ok)
	assert.Equal(t, "ann@example.test", email.To)
	assert.Equal(t, "Welcome to Raycon", email.Subject)
	assert.Equal(t, CodeWelcome, email.NotificationCode)
	assert.Equal(t, common.User, email.RecipientRole)
	assert.Equal(t, "u-1", email.RecipientID)

	sms, ok := pub.events[1].event.(notifications.SendSmsNotificationEvent)
	require.True(t, ok)
	assert.Equal(t, "+15551234567", sms.PhoneNumber)

	for _, p := range pub.events {
		assert.Equal(t, "req-42", p.meta.Correlation())
	}
}

func TestUserRegisteredWithoutPhoneSkipsSms(t *testing.T) {
	pub := &fakePublisher{}
	n := &AccountNotifier{Publisher: pub, Config: testConfig(), Logger: discard()}

	env := envelope(accounts.UserRegisteredEvent{UserID: "u-1", Email: "ann@example.test", DisplayName: "Ann"}, "")
	require.NoError(t, n.OnUserRegistered(context.Background(), env))

	require.Len(t, pub.events, 1)
	// Without an explicit correlation id the cause's event id is used.
	assert.Equal(t, env.Meta.ID, pub.events[0].meta.Correlation())
}

func TestPasswordResetBuildsLink(t *testing.T) {
	pub := &fakePublisher{}
	n := &AccountNotifier{Publisher: pub, Config: testConfig(), Logger: discard()}

	expires := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	env := envelope(accounts.PasswordResetRequestedEvent{
		UserID:     "u-1",
		Email:      "ann@example.test",
		ResetToken: "tok en&123456789",
		ExpiresAt:  expires,
	}, "")
	require.NoError(t, n.OnPasswordResetRequested(context.Background(), env))

	require.Len(t, pub.events, 1)
	email := pub.events[0].event.(notifications.SendEmailNotificationEvent)
	assert.Contains(t, email.Body, "https://example.test/reset?token=tok+en%26123456789")
	assert.Contains(t, email.Body, "2026-03-01 12:30 UTC")
	assert.Equal(t, CodePasswordReset, email.NotificationCode)
}

func TestPasswordResetBadURL(t *testing.T) {
	pub := &fakePublisher{}
	cfg := testConfig()
	cfg.ResetURL = "://bad"
	n := &AccountNotifier{Publisher: pub, Config: cfg, Logger: discard()}

	err := n.OnPasswordResetRequested(context.Background(), envelope(accounts.PasswordResetRequestedEvent{
		UserID: "u-1", Email: "a@b.c", ResetToken: "0123456789abcdef",
	}, ""))
	require.Error(t, err)
	assert.Empty(t, pub.events)
}

func TestAccountDeleted(t *testing.T) {
	pub := &fakePublisher{}
	n := &AccountNotifier{Publisher: pub, Config: testConfig(), Logger: discard()}

	require.NoError(t, n.OnAccountDeleted(context.Background(), envelope(accounts.AccountDeletedEvent{UserID: "u-1"}, "")))
	assert.Empty(t, pub.events)

	require.NoError(t, n.OnAccountDeleted(context.Background(), envelope(accounts.AccountDeletedEvent{UserID: "u-1", Email: "a@b.c"}, "")))
	require.Len(t, pub.events, 1)
	assert.Equal(t, CodeGoodbye, pub.events[0].event.(notifications.SendEmailNotificationEvent).NotificationCode)
}

func TestPublishFailurePropagates(t *testing.T) {
	boom := errors.New("broker down")
	n := &AccountNotifier{Publisher: &fakePublisher{err: boom}, Config: testConfig(), Logger: discard()}

	err := n.OnUserRegistered(context.Background(), envelope(accounts.UserRegisteredEvent{
		UserID: "u-1", Email: "a@b.c", DisplayName: "A",
	}, ""))
	require.ErrorIs(t, err, boom)
}

func TestContactRequestSent(t *testing.T) {
	pub := &fakePublisher{}
	n := &ContactNotifier{Publisher: pub, Logger: discard()}

	env := envelope(contacts.ContactRequestSentEvent{
		RequestID:       "r-1",
		FromUserID:      "u-1",
		FromDisplayName: "Ann",
		ToUserID:        "u-2",
		ToEmail:         "bob@example.test",
		ToDeviceTokens:  []string{"d1", "d2"},
		Message:         "hi",
	}, "")
	require.NoError(t, n.OnRequestSent(context.Background(), env))

	require.Len(t, pub.events, 2)
	push := pub.events[0].event.(notifications.SendFirebasePushNotificationEvent)
	assert.Equal(t, notifications.MultipleDevices, push.Type)
	assert.Equal(t, []string{"d1", "d2"}, push.DeviceTokens)
	assert.Equal(t, "Ann wants to connect", push.Title)
	assert.Equal(t, "r-1", push.Data["request_id"])

	email := pub.events[1].event.(notifications.SendEmailNotificationEvent)
	assert.Equal(t, "bob@example.test", email.To)
	assert.True(t, strings.HasSuffix(email.Body, "hi"))
}

func TestContactRequestSentUnreachable(t *testing.T) {
	pub := &fakePublisher{}
	n := &ContactNotifier{Publisher: pub, Logger: discard()}

	require.NoError(t, n.OnRequestSent(context.Background(), envelope(contacts.ContactRequestSentEvent{
		RequestID: "r-1", FromUserID: "u-1", FromDisplayName: "Ann", ToUserID: "u-2",
	}, "")))
	assert.Empty(t, pub.events)
}

func TestContactRequestAccepted(t *testing.T) {
	pub := &fakePublisher{}
	n := &ContactNotifier{Publisher: pub, Logger: discard()}

	require.NoError(t, n.OnRequestAccepted(context.Background(), envelope(contacts.ContactRequestAcceptedEvent{
		RequestID: "r-1", FromUserID: "u-1", FromDeviceTokens: []string{"d1"}, ToUserID: "u-2", ToDisplayName: "Bob",
	}, "")))

	require.Len(t, pub.events, 1)
	push := pub.events[0].event.(notifications.SendFirebasePushNotificationEvent)
	assert.Equal(t, notifications.SingleDevice, push.Type)
	assert.Equal(t, "d1", push.DeviceToken)
	assert.Equal(t, "u-1", push.RecipientID)
}

func TestChatMessageBatchesTokensAndTruncates(t *testing.T) {
	pub := &fakePublisher{}
	n := &ConversationNotifier{Publisher: pub, Logger: discard()}

	tokens := make([]string, notifications.MaxMulticastTokens+3)
	for i := range tokens {
		tokens[i] = "d"
	}
	env := envelope(conversations.ChatMessageSentEvent{
		ConversationID:        "c-1",
		MessageID:             "m-1",
		SenderID:              "u-1",
		SenderName:            "Ann",
		RecipientIDs:          []string{"u-2"},
		RecipientDeviceTokens: tokens,
		Preview:               strings.Repeat("é", conversations.MaxPreviewLen+10),
	}, "")
	require.NoError(t, n.OnMessageSent(context.Background(), env))

	require.Len(t, pub.events, 2)
	first := pub.events[0].event.(notifications.SendFirebasePushNotificationEvent)
	second := pub.events[1].event.(notifications.SendFirebasePushNotificationEvent)
	assert.Len(t, first.DeviceTokens, notifications.MaxMulticastTokens)
	assert.Len(t, second.DeviceTokens, 3)
	assert.Equal(t, conversations.MaxPreviewLen, len([]rune(first.Body)))
	assert.Equal(t, "c-1", first.Data["conversation_id"])
	assert.Equal(t, "m-1", first.Data["message_id"])
}

func TestCallMissedFallsBackToSms(t *testing.T) {
	pub := &fakePublisher{}
	n := &ConversationNotifier{Publisher: pub, Logger: discard()}

	call := conversations.CallMissedEvent{
		CallID: "call-1", CallerID: "u-1", CallerName: "Ann", CalleeID: "u-2",
		CalleePhoneNumber: "+15550001111", Video: true,
	}
	require.NoError(t, n.OnCallMissed(context.Background(), envelope(call, "")))
	require.Len(t, pub.events, 1)
	sms := pub.events[0].event.(notifications.SendSmsNotificationEvent)
	assert.Equal(t, "Missed video call from Ann", sms.Message)

	call.CalleeDeviceTokens = []string{"d1"}
	require.NoError(t, n.OnCallMissed(context.Background(), envelope(call, "")))
	require.Len(t, pub.events, 2)
	_, isPush := pub.events[1].event.(notifications.SendFirebasePushNotificationEvent)
	assert.True(t, isPush)
}

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk(nil, 2))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, chunk([]string{"a", "b", "c"}, 2))
	assert.Equal(t, [][]string{{"a", "b"}}, chunk([]string{"a", "b"}, 2))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****4567", mask("+15551234567"))
	assert.Equal(t, "123", mask("123"))
}

func TestSenderHandlersWrapErrors(t *testing.T) {
	boom := errors.New("smtp down")
	senders := &fakeSenders{err: boom}
	h := &EmailHandler{Sender: senders, Logger: discard()}

	err := h.Handle(context.Background(), envelope(notifications.SendEmailNotificationEvent{To: "a@b.c", Subject: "s"}, ""))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "send email")
}

// A registration flows through the embedded bus into a welcome email and
// SMS delivered by the senders.
func TestRegisterEndToEndOnEmbeddedBus(t *testing.T) {
	registry := pubsub.NewRegistry()
	bus, err := pubsub.New(context.Background(),
		pubsub.Config{Backend: "embedded", ValidationPolicy: pubsub.ValidationReject},
		registry,
		pubsub.WithLogger(discard()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	senders := &fakeSenders{}
	require.NoError(t, Register(registry, Deps{
		Config:    testConfig(),
		Email:     senders,
		Sms:       senders,
		Push:      senders,
		Publisher: bus.Publisher(),
		Logger:    discard(),
	}))

	_, err = pubsub.PublishAsyncWith(context.Background(), bus.Publisher(), accounts.UserRegisteredEvent{
		UserID:      "u-1",
		Email:       "ann@example.test",
		DisplayName: "Ann",
		PhoneNumber: "+15551234567",
	}, pubsub.WithCorrelationID("req-1"))
	require.NoError(t, err)

	require.Len(t, senders.emails, 1)
	require.Len(t, senders.sms, 1)
	assert.Equal(t, "ann@example.test", senders.emails[0].To)
	assert.Equal(t, "+15551234567", senders.sms[0].PhoneNumber)
	assert.Empty(t, senders.pushes)
}

func TestRegisterFailsOnFrozenRegistry(t *testing.T) {
	registry := pubsub.NewRegistry()
	bus, err := pubsub.New(context.Background(), pubsub.Config{Backend: "embedded"}, registry, pubsub.WithLogger(discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, bus.Run(ctx))

	err = Register(registry, Deps{Email: &fakeSenders{}, Logger: discard()})
	require.ErrorIs(t, err, pubsub.ErrRegistryFrozen)
}
