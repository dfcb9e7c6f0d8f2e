package kafka

import (
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// Config is read from KAFKA_* variables by the bus config.
type Config struct {
	Brokers  []string `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	ClientID string   `env:"CLIENT_ID" envDefault:"raycon-bus"`
	// ConsumerGroup prefixes the group id; each event type joins
	// "{ConsumerGroup}.{EventType}".
	ConsumerGroup    string `env:"CONSUMER_GROUP" envDefault:"raycon-notifier"`
	DeadLetterSuffix string `env:"DEAD_LETTER_SUFFIX" envDefault:"_dlq"`
	ProducerRetryMax int    `env:"PRODUCER_RETRY_MAX" envDefault:"5"`
	// InitialOffset is where a new group starts: "oldest" or "newest".
	InitialOffset    string        `env:"INITIAL_OFFSET" envDefault:"oldest"`
	SessionTimeout   time.Duration `env:"SESSION_TIMEOUT" envDefault:"10s"`
	RebalanceBackoff time.Duration `env:"REBALANCE_BACKOFF" envDefault:"2s"`
	DialTimeout      time.Duration `env:"DIAL_TIMEOUT" envDefault:"10s"`
	Version          string        `env:"VERSION" envDefault:"3.6.0"`
}

func (c Config) Validate() error {
	var errs []error
	if len(c.Brokers) == 0 {
		errs = append(errs, errors.New("kafka: at least one broker is required"))
	}
	if c.ConsumerGroup == "" {
		errs = append(errs, errors.New("kafka: consumer group is required"))
	}
	if c.DeadLetterSuffix == "" {
		errs = append(errs, errors.New("kafka: dead-letter suffix is required"))
	}
	if c.ProducerRetryMax < 0 {
		errs = append(errs, errors.New("kafka: producer retry max must not be negative"))
	}
	switch c.InitialOffset {
	case "", "oldest", "newest":
	default:
		errs = append(errs, fmt.Errorf("kafka: unknown initial offset %q", c.InitialOffset))
	}
	if _, err := c.saramaConfig(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) groupID(eventType string) string {
	return c.ConsumerGroup + "." + eventType
}

func (c Config) deadLetterTopic(eventType string) string {
	return eventType + c.DeadLetterSuffix
}

// saramaConfig builds the client config shared by producer and consumers:
// idempotent producer, manual offset commit.
func (c Config) saramaConfig() (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.ClientID = c.ClientID

	if c.Version != "" {
		v, err := sarama.ParseKafkaVersion(c.Version)
		if err != nil {
			return nil, fmt.Errorf("kafka: %w", err)
		}
		sc.Version = v
	}
	if c.DialTimeout > 0 {
		sc.Net.DialTimeout = c.DialTimeout
	}

	sc.Net.MaxOpenRequests = 1
	sc.Producer.Idempotent = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = c.ProducerRetryMax
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Partitioner = sarama.NewHashPartitioner

	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.AutoCommit.Enable = false
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	if c.InitialOffset == "newest" {
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	if c.SessionTimeout > 0 {
		sc.Consumer.Group.Session.Timeout = c.SessionTimeout
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("kafka: %w", err)
	}
	return sc, nil
}
