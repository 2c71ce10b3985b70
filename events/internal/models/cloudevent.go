// Package models provides data models for the events service.
package models

import (
	"encoding/json"
	"time"
)

// CloudEventSpecVersion is the CloudEvents spec version produced by the service.
const CloudEventSpecVersion = "1.0"

// CloudEvent is a CloudEvents v1.0 envelope with the resource extensions used for
// subscription matching and authorization.
type CloudEvent struct {
	ID               string          `json:"id"`
	Source           string          `json:"source"`
	SpecVersion      string          `json:"specversion"`
	Type             string          `json:"type"`
	Subject          string          `json:"subject,omitempty"`
	Time             *time.Time      `json:"time,omitempty"`
	Resource         string          `json:"resource,omitempty"`
	ResourceInstance string          `json:"resourceinstance,omitempty"`
	DataContentType  string          `json:"datacontenttype,omitempty"`
	Data             json.RawMessage `json:"data,omitempty"`
}

// Serialize renders the event as CloudEvents JSON. A nil event serializes to "".
func (e *CloudEvent) Serialize() (string, error) {
	if e == nil {
		return "", nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CloudEventEnvelope pairs an event with one matched subscription. It only lives on
// the outbound queue; the trace log is the durable record of delivery attempts.
type CloudEventEnvelope struct {
	CloudEvent     *CloudEvent `json:"cloudEvent"`
	Consumer       string      `json:"consumer"`
	SubscriptionID int64       `json:"subscriptionId"`
	Endpoint       string      `json:"endpoint"`
	Pushed         time.Time   `json:"pushed"`
}
