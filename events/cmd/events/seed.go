package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
)

var seedOpts struct {
	url        string
	token      string
	count      int
	interval   time.Duration
	appsDomain string
	apps       []string
	types      []string
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Push synthetic app events to a running service",
	Long: `Generate fake app CloudEvents and post them to the internal push endpoint.
The token must carry the events:internal scope.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedOpts.token == "" {
			return fmt.Errorf("--token is required")
		}
		s := &seeder{
			client:     &http.Client{Timeout: 10 * time.Second},
			pushURL:    strings.TrimRight(seedOpts.url, "/") + "/push",
			token:      seedOpts.token,
			appsDomain: seedOpts.appsDomain,
			apps:       seedOpts.apps,
			types:      seedOpts.types,
		}
		sent, failed := s.run(cmd.Context(), seedOpts.count, seedOpts.interval)
		fmt.Fprintf(cmd.OutOrStdout(), "sent %d events, %d failed\n", sent, failed)
		if failed > 0 {
			return fmt.Errorf("%d events were rejected", failed)
		}
		return nil
	},
}

func init() {
	f := seedCmd.Flags()
	f.StringVar(&seedOpts.url, "url", "http://localhost:8090/events/api/v1", "events API base URL")
	f.StringVar(&seedOpts.token, "token", "", "bearer token with the events:internal scope")
	f.IntVar(&seedOpts.count, "count", 100, "number of events to push")
	f.DurationVar(&seedOpts.interval, "interval", 100*time.Millisecond, "pause between events")
	f.StringVar(&seedOpts.appsDomain, "apps-domain", "apps.altinn.no", "apps domain used in event sources")
	f.StringSliceVar(&seedOpts.apps, "apps", []string{"ttd/app-x"}, "org/app pairs to publish for")
	f.StringSliceVar(&seedOpts.types, "types", []string{
		"app.instance.created",
		"app.instance.process.movedTo.Task_1",
		"app.instance.process.completed",
	}, "event types to pick from")

	rootCmd.AddCommand(seedCmd)
}

type seeder struct {
	client     *http.Client
	pushURL    string
	token      string
	appsDomain string
	apps       []string
	types      []string
}

func (s *seeder) run(ctx context.Context, count int, interval time.Duration) (sent, failed int) {
	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			break
		}
		if err := s.push(ctx, s.generateEvent()); err != nil {
			failed++
		} else {
			sent++
		}
		if interval > 0 && i < count-1 {
			time.Sleep(interval)
		}
	}
	return sent, failed
}

// generateEvent builds an app event for a random app and instance.
func (s *seeder) generateEvent() *models.CloudEvent {
	app := s.apps[gofakeit.Number(0, len(s.apps)-1)]
	org, _, _ := strings.Cut(app, "/")
	now := time.Now().UTC()

	return &models.CloudEvent{
		ID: gofakeit.UUID(),
		Source: fmt.Sprintf("https://%s.%s/%s/instances/%d/%s",
			org, s.appsDomain, app, gofakeit.Number(50000, 59999), gofakeit.UUID()),
		SpecVersion: models.CloudEventSpecVersion,
		Type:        s.types[gofakeit.Number(0, len(s.types)-1)],
		Subject:     fmt.Sprintf("/party/%d", gofakeit.Number(50000, 59999)),
		Time:        &now,
		Resource:    "urn:altinn:resource:app_" + strings.ReplaceAll(app, "/", "_"),
	}
}

func (s *seeder) push(ctx context.Context, evt *models.CloudEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.pushURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push returned status %d", resp.StatusCode)
	}
	return nil
}
