package tracelog

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
)

var _ Sink = (*OpenSearchSink)(nil)

// OpenSearchConfig holds the trace index connection settings.
type OpenSearchConfig struct {
	URL      string
	Username string
	Password string
	Insecure bool
	Index    string
}

// OpenSearchSink indexes trace entries into OpenSearch.
type OpenSearchSink struct {
	client *opensearch.Client
	index  string
}

// NewOpenSearchSink creates a sink and verifies the cluster is reachable.
func NewOpenSearchSink(cfg OpenSearchConfig) (*OpenSearchSink, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.Insecure,
			},
		},
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	// Test connection
	info, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer info.Body.Close()

	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	return &OpenSearchSink{client: client, index: cfg.Index}, nil
}

func (s *OpenSearchSink) CreateWebhookResponseEntry(ctx context.Context, entry *models.LogEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trace entry: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate trace entry id: %w", err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(id.String()),
	)
	if err != nil {
		return fmt.Errorf("failed to index trace entry: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("opensearch error: %s - %s", res.Status(), string(msg))
	}
	return nil
}
