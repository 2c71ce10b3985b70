// Package register resolves organisation numbers, personal numbers and party URNs
// to party identifiers.
package register

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxURNsPerLookup is the largest batch the register accepts in one identifiers call.
const MaxURNsPerLookup = 100

// ErrPartyNotFound is returned when the register has no party for the given identifier.
var ErrPartyNotFound = errors.New("party not found")

// PartyLookup resolves parties for subscription enrichment.
type PartyLookup interface {
	// PartyLookup resolves exactly one of orgNo or ssn to a party id.
	PartyLookup(ctx context.Context, orgNo, ssn string) (int, error)
	PartyLookupByURNs(ctx context.Context, urns []string) ([]PartyIdentifiers, error)
}

// PartyIdentifiers is one resolved party.
type PartyIdentifiers struct {
	PartyID            int    `json:"partyId"`
	PartyUUID          string `json:"partyUuid,omitempty"`
	OrganizationNumber string `json:"orgNumber,omitempty"`
	PersonIdentifier   string `json:"ssn,omitempty"`
	URN                string `json:"urn,omitempty"`
}

type partyLookupRequest struct {
	OrgNo string `json:"orgNo,omitempty"`
	Ssn   string `json:"ssn,omitempty"`
}

type partyLookupResponse struct {
	PartyID int `json:"partyId"`
}

type identifiersRequest struct {
	Data []string `json:"data"`
}

type identifiersResponse struct {
	Data []PartyIdentifiers `json:"data"`
}

// Client calls the register HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a register client.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PartyLookup resolves an organisation number or a personal number to a party id.
// Errors never include the looked up identifiers.
func (c *Client) PartyLookup(ctx context.Context, orgNo, ssn string) (int, error) {
	if (orgNo == "") == (ssn == "") {
		return 0, fmt.Errorf("exactly one of organisation number or personal number is required")
	}

	var result partyLookupResponse
	if err := c.post(ctx, "/register/api/v1/parties/lookup", partyLookupRequest{OrgNo: orgNo, Ssn: ssn}, &result); err != nil {
		return 0, err
	}
	if result.PartyID == 0 {
		return 0, ErrPartyNotFound
	}
	return result.PartyID, nil
}

// PartyLookupByURNs resolves party URNs, splitting the request into batches of at most
// MaxURNsPerLookup.
func (c *Client) PartyLookupByURNs(ctx context.Context, urns []string) ([]PartyIdentifiers, error) {
	parties := make([]PartyIdentifiers, 0, len(urns))
	for start := 0; start < len(urns); start += MaxURNsPerLookup {
		end := min(start+MaxURNsPerLookup, len(urns))

		var result identifiersResponse
		if err := c.post(ctx, "/register/api/v1/parties/identifiers", identifiersRequest{Data: urns[start:end]}, &result); err != nil {
			return nil, err
		}
		parties = append(parties, result.Data...)
	}
	return parties, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrPartyNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("register returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
