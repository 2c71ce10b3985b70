package logging

import "log/slog"

// Common field names for consistent logging across the event services.
const (
	FieldService        = "service"
	FieldRequestID      = "request_id"
	FieldEventID        = "event_id"
	FieldEventType      = "event_type"
	FieldSubscriptionID = "subscription_id"
	FieldConsumer       = "consumer"
	FieldEndpoint       = "endpoint"
	FieldStatus         = "status"
	FieldDuration       = "duration_ms"
	FieldError          = "error"
	FieldSubject        = "subject"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// EventID returns a slog attribute for a cloud event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// EventType returns a slog attribute for a cloud event type.
func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

// SubscriptionID returns a slog attribute for a subscription ID.
func SubscriptionID(id int64) slog.Attr {
	return slog.Int64(FieldSubscriptionID, id)
}

// Consumer returns a slog attribute for a consumer identity.
func Consumer(consumer string) slog.Attr {
	return slog.String(FieldConsumer, consumer)
}

// Endpoint returns a slog attribute for a webhook endpoint.
func Endpoint(endpoint string) slog.Attr {
	return slog.String(FieldEndpoint, endpoint)
}

// Status returns a slog attribute for an HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
