// Package authorization asks the policy decision point whether a consumer may
// subscribe to or receive events.
package authorization

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
)

// Actions evaluated by the PDP.
const (
	ActionRead      = "read"
	ActionSubscribe = "subscribe"
)

// DecisionPermit is the only PDP decision that grants access.
const DecisionPermit = "Permit"

// Gate is the authorization oracle consulted by the registry and the distributor.
type Gate interface {
	AuthorizeConsumerForEventsSubscription(ctx context.Context, sub *models.Subscription) (bool, error)
	AuthorizeConsumerForAltinnAppEvent(ctx context.Context, evt *models.CloudEvent, consumer string) (bool, error)
	AuthorizeConsumerForGenericEvent(ctx context.Context, evt *models.CloudEvent, consumer string) (bool, error)
}

// DecisionRequest is the body posted to the PDP.
type DecisionRequest struct {
	Subject  string            `json:"subject"`
	Action   string            `json:"action"`
	Resource map[string]string `json:"resource"`
}

// DecisionResponse is the PDP answer.
type DecisionResponse struct {
	Decision string `json:"decision"`
}

// PDPClient is a Gate backed by the PDP HTTP API.
type PDPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPDPClient creates a PDP client.
func NewPDPClient(baseURL string, timeout time.Duration) *PDPClient {
	return &PDPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// AuthorizeConsumerForEventsSubscription checks that the consumer may subscribe to the
// subscription's resource and subject.
func (c *PDPClient) AuthorizeConsumerForEventsSubscription(ctx context.Context, sub *models.Subscription) (bool, error) {
	resource := map[string]string{
		"resource": sub.ResourceFilter,
	}
	if sub.SubjectFilter != "" {
		resource["subject"] = sub.SubjectFilter
	}
	if sub.SourceFilter != "" {
		resource["source"] = sub.SourceFilter
		if src, ok := models.ParseAppSourceFilter(sub.SourceFilter); ok {
			resource["org"] = src.Org
			if !src.Wildcard {
				resource["app"] = src.App
			}
		}
	}
	return c.decide(ctx, DecisionRequest{Subject: sub.Consumer, Action: ActionSubscribe, Resource: resource})
}

// AuthorizeConsumerForAltinnAppEvent checks read access to an app event.
func (c *PDPClient) AuthorizeConsumerForAltinnAppEvent(ctx context.Context, evt *models.CloudEvent, consumer string) (bool, error) {
	resource := map[string]string{
		"resource": evt.Resource,
		"source":   evt.Source,
	}
	if src, ok := models.ParseAppSource(evt.Source); ok {
		resource["org"] = src.Org
		resource["app"] = src.App
	}
	if evt.ResourceInstance != "" {
		resource["instance"] = evt.ResourceInstance
	}
	return c.decide(ctx, DecisionRequest{Subject: consumer, Action: ActionRead, Resource: resource})
}

// AuthorizeConsumerForGenericEvent checks read access to a generic event's resource.
func (c *PDPClient) AuthorizeConsumerForGenericEvent(ctx context.Context, evt *models.CloudEvent, consumer string) (bool, error) {
	resource := map[string]string{
		"resource": evt.Resource,
		"type":     evt.Type,
	}
	if evt.ResourceInstance != "" {
		resource["instance"] = evt.ResourceInstance
	}
	return c.decide(ctx, DecisionRequest{Subject: consumer, Action: ActionRead, Resource: resource})
}

func (c *PDPClient) decide(ctx context.Context, decision DecisionRequest) (bool, error) {
	bodyBytes, err := json.Marshal(decision)
	if err != nil {
		return false, fmt.Errorf("marshal request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/authorization/api/v1/decision", bytes.NewReader(bodyBytes))
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return false, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, fmt.Errorf("pdp returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result DecisionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}

	return result.Decision == DecisionPermit, nil
}
