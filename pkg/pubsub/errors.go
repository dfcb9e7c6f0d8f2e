package pubsub

import "errors"

var (
	ErrRegistryFrozen = errors.New("pubsub: registry is frozen, subscribe before the bus starts")
	ErrNilHandler     = errors.New("pubsub: nil handler")
	ErrUnknownBackend = errors.New("pubsub: unknown backend")
	ErrNilPublisher   = errors.New("pubsub: nil publisher")
	ErrNilEvent       = errors.New("pubsub: nil event")
	ErrAlreadyRunning = errors.New("pubsub: bus already running")
)
