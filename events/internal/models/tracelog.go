package models

import "time"

// LogEntry records one webhook delivery attempt in the trace log.
type LogEntry struct {
	CloudEventID       string    `json:"cloudEventId"`
	CloudEventType     string    `json:"cloudEventType,omitempty"`
	CloudEventResource string    `json:"cloudEventResource,omitempty"`
	Consumer           string    `json:"consumer"`
	SubscriptionID     int64     `json:"subscriptionId"`
	Endpoint           string    `json:"endpoint"`
	StatusCode         int       `json:"statusCode"`
	IsSuccess          bool      `json:"isSuccessStatusCode"`
	Error              string    `json:"error,omitempty"`
	Created            time.Time `json:"created"`

	// Signature is the HMAC of the entry when trace signing is configured.
	Signature string `json:"signature,omitempty"`
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
