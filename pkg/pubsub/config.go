package pubsub

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/roboricindustries/raycon-bus/pkg/transport/embedded"
	"github.com/roboricindustries/raycon-bus/pkg/transport/kafka"
	"github.com/roboricindustries/raycon-bus/pkg/transport/rabbitmq"
)

// ValidationPolicy decides what happens to a payload that breaks its
// declared rules.
type ValidationPolicy string

const (
	// ValidationLog logs the issues and still runs the handlers.
	ValidationLog ValidationPolicy = "log"
	// ValidationReject treats the message as poison.
	ValidationReject ValidationPolicy = "reject"
)

// Config selects and configures the bus backend. Each backend only reads
// its own section.
type Config struct {
	// Backend is one of "embedded", "rabbitmq" or "kafka".
	Backend          string           `env:"BUS_BACKEND" envDefault:"embedded"`
	ValidationPolicy ValidationPolicy `env:"BUS_VALIDATION_POLICY" envDefault:"log"`
	// FallbackToEmbedded degrades to the embedded bus when the broker
	// cannot be reached at start-up instead of failing.
	FallbackToEmbedded bool          `env:"BUS_FALLBACK_TO_EMBEDDED" envDefault:"false"`
	ConnectTimeout     time.Duration `env:"BUS_CONNECT_TIMEOUT" envDefault:"10s"`
	// Producer is stamped into every envelope published by this process.
	Producer string `env:"BUS_PRODUCER"`

	RabbitMQ rabbitmq.Config `envPrefix:"RABBITMQ_"`
	Kafka    kafka.Config    `envPrefix:"KAFKA_"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse bus config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) backend() string {
	if c.Backend == "" {
		return embedded.Name
	}
	return strings.ToLower(c.Backend)
}

func (c Config) Validate() error {
	var errs []error
	switch c.backend() {
	case embedded.Name:
	case rabbitmq.Name:
		errs = append(errs, c.RabbitMQ.Validate())
	case kafka.Name:
		errs = append(errs, c.Kafka.Validate())
	default:
		errs = append(errs, fmt.Errorf("%w %q", ErrUnknownBackend, c.Backend))
	}
	switch c.ValidationPolicy {
	case "", ValidationLog, ValidationReject:
	default:
		errs = append(errs, fmt.Errorf("pubsub: unknown validation policy %q", c.ValidationPolicy))
	}
	if c.ConnectTimeout < 0 {
		errs = append(errs, errors.New("pubsub: connect timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// String renders the config with broker credentials redacted.
func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "backend=%s validation=%s fallback=%t", c.backend(), c.ValidationPolicy, c.FallbackToEmbedded)
	switch c.backend() {
	case rabbitmq.Name:
		fmt.Fprintf(&b, " url=%s exchange=%s retry_attempts=%d", c.RabbitMQ.RedactedURL(), c.RabbitMQ.Exchange, c.RabbitMQ.RetryAttempts)
	case kafka.Name:
		fmt.Fprintf(&b, " brokers=%s group=%s", strings.Join(c.Kafka.Brokers, ","), c.Kafka.ConsumerGroup)
	}
	return b.String()
}
