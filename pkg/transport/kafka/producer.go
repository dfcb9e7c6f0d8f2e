package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/roboricindustries/raycon-bus/pkg/transport"
)

// Publish writes msg to the topic named after its event type, keyed by
// event id. SendMessage blocks until the leader and all in-sync replicas
// acknowledged the record.
func (t *Transport) Publish(ctx context.Context, msg transport.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := t.mgr.Producer()
	if err != nil {
		return err
	}
	if _, _, err := p.SendMessage(record(msg.Type, msg)); err != nil {
		return fmt.Errorf("produce %s: %w", msg.Type, err)
	}
	return nil
}

func record(topic string, msg transport.Message) *sarama.ProducerMessage {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	headers := make([]sarama.RecordHeader, 0, len(msg.Headers)+3)
	headers = append(headers,
		sarama.RecordHeader{Key: []byte(transport.HeaderEventType), Value: []byte(msg.Type)},
		sarama.RecordHeader{Key: []byte(transport.HeaderEventID), Value: []byte(msg.ID)},
		sarama.RecordHeader{Key: []byte(transport.HeaderTimestamp), Value: []byte(ts.Format(time.RFC3339Nano))},
	)
	for k, v := range msg.Headers {
		switch k {
		case transport.HeaderEventType, transport.HeaderEventID, transport.HeaderTimestamp:
			continue
		}
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	return &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(msg.ID),
		Value:     sarama.ByteEncoder(msg.Body),
		Headers:   headers,
		Timestamp: ts,
	}
}

// message rebuilds a transport message from a consumed record.
func message(eventType string, m *sarama.ConsumerMessage) transport.Message {
	msg := transport.Message{
		ID:        string(m.Key),
		Type:      eventType,
		Timestamp: m.Timestamp,
		Body:      m.Value,
		Headers:   make(map[string]string, len(m.Headers)),
	}
	for _, h := range m.Headers {
		if h == nil {
			continue
		}
		msg.Headers[string(h.Key)] = string(h.Value)
	}
	if id := msg.Headers[transport.HeaderEventID]; id != "" {
		msg.ID = id
	}
	if ts, err := time.Parse(time.RFC3339Nano, msg.Headers[transport.HeaderTimestamp]); err == nil {
		msg.Timestamp = ts
	}
	return msg
}
