package models

import "time"

// Subscription is a consumer's registered interest in events matching a filter tuple.
// Empty filters act as wildcards.
type Subscription struct {
	ID             int64     `json:"id"`
	SourceFilter   string    `json:"sourceFilter,omitempty"`
	SubjectFilter  string    `json:"subjectFilter,omitempty"`
	TypeFilter     string    `json:"typeFilter,omitempty"`
	ResourceFilter string    `json:"resourceFilter,omitempty"`
	Consumer       string    `json:"consumer"`
	CreatedBy      string    `json:"createdBy"`
	EndPoint       string    `json:"endPoint"`
	Created        time.Time `json:"created"`
	Validated      bool      `json:"validated"`

	// AlternativeSubjectFilter is input only; it is resolved into SubjectFilter
	// during creation and never persisted.
	AlternativeSubjectFilter string `json:"alternativeSubjectFilter,omitempty"`
}

// SubscriptionRequest is the API request for creating a subscription.
type SubscriptionRequest struct {
	EndPoint                 string `json:"endPoint"`
	SourceFilter             string `json:"sourceFilter,omitempty"`
	SubjectFilter            string `json:"subjectFilter,omitempty"`
	AlternativeSubjectFilter string `json:"alternativeSubjectFilter,omitempty"`
	TypeFilter               string `json:"typeFilter,omitempty"`
	ResourceFilter           string `json:"resourceFilter,omitempty"`
}

// SubscriptionList is the response body for listing a consumer's subscriptions.
type SubscriptionList struct {
	Count         int             `json:"count"`
	Subscriptions []*Subscription `json:"subscriptions"`
}

// MatchQuery selects the subscriptions an outbound event is delivered to.
type MatchQuery struct {
	SourceKey string
	Subject   string
	Type      string
	Resource  string
}
