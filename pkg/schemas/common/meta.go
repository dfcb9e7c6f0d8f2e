package common

import "time"

type Meta struct {
	// Trace / request correlation ID
	CorrelationID *string `json:"correlation_id,omitempty"`
	// Unique event ID, generated once per publish
	ID string `json:"id"`
	// Emitting service and version
	Producer *string `json:"producer,omitempty"`
	// Timestamp when the event was published (UTC)
	Time time.Time `json:"time"`
	// Event type name, e.g. SendEmailNotificationEvent
	Type string `json:"type"`
}

// Correlation returns the correlation id, falling back to the event id.
func (m Meta) Correlation() string {
	if m.CorrelationID != nil && *m.CorrelationID != "" {
		return *m.CorrelationID
	}
	return m.ID
}
