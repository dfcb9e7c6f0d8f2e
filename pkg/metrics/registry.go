package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch outcomes.
const (
	OutcomeAck    = "ack"
	OutcomeFailed = "failed"
	OutcomePoison = "poison"
)

// Registry owns every bus metric. A nil *Registry is valid and records
// nothing, so components can run without metrics wired.
type Registry struct {
	registry *prometheus.Registry

	publishTotal    *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec

	dispatchTotal      *prometheus.CounterVec
	dispatchDuration   *prometheus.HistogramVec
	handlerPanics      *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	deadLetterTotal    *prometheus.CounterVec

	reconnectTotal *prometheus.CounterVec
	connectionUp   *prometheus.GaugeVec
	consumersUp    *prometheus.GaugeVec

	startTime prometheus.Gauge
}

func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		publishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raycon_bus_publish_total",
				Help: "Total number of publish calls",
			},
			[]string{"event_type", "backend", "status"}, // status: success, error
		),
		publishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "raycon_bus_publish_duration_seconds",
				Help:    "Time spent handing an event to the transport",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event_type", "backend"},
		),

		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raycon_bus_dispatch_total",
				Help: "Total number of delivered messages by outcome",
			},
			[]string{"event_type", "backend", "outcome"},
		),
		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "raycon_bus_dispatch_duration_seconds",
				Help:    "Time spent running the handler set for one message",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event_type", "backend"},
		),
		handlerPanics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raycon_bus_handler_panics_total",
				Help: "Handler panics recovered by the dispatcher",
			},
			[]string{"event_type"},
		),
		validationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raycon_bus_validation_failures_total",
				Help: "Payloads that failed contract validation",
			},
			[]string{"event_type"},
		),
		deadLetterTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raycon_bus_dead_letter_total",
				Help: "Messages routed to a dead-letter destination",
			},
			[]string{"event_type", "backend"},
		),

		reconnectTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raycon_bus_reconnect_total",
				Help: "Broker (re)connection attempts",
			},
			[]string{"backend", "status"},
		),
		connectionUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "raycon_bus_connection_up",
				Help: "1 when the broker connection is open",
			},
			[]string{"backend"},
		),
		consumersUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "raycon_bus_consumers_running",
				Help: "Consumer loops currently attached to the broker",
			},
			[]string{"backend"},
		),

		startTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "raycon_bus_start_time_seconds",
				Help: "Unix timestamp when the process started",
			},
		),
	}

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(
		r.publishTotal,
		r.publishDuration,
		r.dispatchTotal,
		r.dispatchDuration,
		r.handlerPanics,
		r.validationFailures,
		r.deadLetterTotal,
		r.reconnectTotal,
		r.connectionUp,
		r.consumersUp,
		r.startTime,
	)
	r.startTime.SetToCurrentTime()

	return r
}

// Gatherer exposes the underlying registry, mostly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}

func (r *Registry) RecordPublish(eventType, backend string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.publishTotal.WithLabelValues(eventType, backend, status(err)).Inc()
	r.publishDuration.WithLabelValues(eventType, backend).Observe(duration.Seconds())
}

func (r *Registry) RecordDispatch(eventType, backend, outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.dispatchTotal.WithLabelValues(eventType, backend, outcome).Inc()
	r.dispatchDuration.WithLabelValues(eventType, backend).Observe(duration.Seconds())
}

func (r *Registry) RecordHandlerPanic(eventType string) {
	if r == nil {
		return
	}
	r.handlerPanics.WithLabelValues(eventType).Inc()
}

func (r *Registry) RecordValidationFailure(eventType string) {
	if r == nil {
		return
	}
	r.validationFailures.WithLabelValues(eventType).Inc()
}

func (r *Registry) RecordDeadLetter(eventType, backend string) {
	if r == nil {
		return
	}
	r.deadLetterTotal.WithLabelValues(eventType, backend).Inc()
}

func (r *Registry) RecordReconnect(backend string, err error) {
	if r == nil {
		return
	}
	r.reconnectTotal.WithLabelValues(backend, status(err)).Inc()
}

func (r *Registry) SetConnected(backend string, up bool) {
	if r == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	r.connectionUp.WithLabelValues(backend).Set(v)
}

func (r *Registry) ConsumerStarted(backend string) {
	if r == nil {
		return
	}
	r.consumersUp.WithLabelValues(backend).Inc()
}

func (r *Registry) ConsumerStopped(backend string) {
	if r == nil {
		return
	}
	r.consumersUp.WithLabelValues(backend).Dec()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
