package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/eventhawk-systems/eventhawk-stack/events/internal/config"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
)

func TestCommandsRegistered(t *testing.T) {
	expected := map[string]bool{"serve": false, "worker": false, "migrate": false, "config": false, "seed": false}
	for _, cmd := range rootCmd.Commands() {
		name := strings.Fields(cmd.Use)[0]
		if _, ok := expected[name]; ok {
			expected[name] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "expected command %q to be registered", name)
	}

	var sub []string
	for _, cmd := range migrateCmd.Commands() {
		sub = append(sub, cmd.Use)
	}
	assert.ElementsMatch(t, []string{"up", "down", "version"}, sub)
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  backend: memory
  postgres:
    password: hunter2
events:
  fanout_concurrency: 3
`), 0o600))
	t.Setenv("EVENTS_WEBHOOK_USER_AGENT", "Test-Agent/2.0")
	t.Setenv("EVENTS_AUTH_JWT_SECRET", "top-secret")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "--config", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		cfgFile = ""
	})

	require.NoError(t, rootCmd.Execute())

	var got config.Config
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "memory", got.Database.Backend)
	assert.Equal(t, 3, got.Events.FanoutConcurrency)
	assert.Equal(t, "Test-Agent/2.0", got.Webhook.UserAgent)
	assert.NotContains(t, out.String(), "hunter2")
	assert.NotContains(t, out.String(), "top-secret")
}

func TestSeeder(t *testing.T) {
	var pushed []models.CloudEvent
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events/api/v1/push", r.URL.Path)
		assert.Equal(t, "Bearer internal-token", r.Header.Get("Authorization"))

		var evt models.CloudEvent
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&evt)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		pushed = append(pushed, evt)
		if len(pushed) == 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := &seeder{
		client:     server.Client(),
		pushURL:    server.URL + "/events/api/v1/push",
		token:      "internal-token",
		appsDomain: "apps.altinn.no",
		apps:       []string{"ttd/app-x"},
		types:      []string{"app.instance.created"},
	}

	sent, failed := s.run(context.Background(), 5, 0)
	assert.Equal(t, 4, sent)
	assert.Equal(t, 1, failed)
	require.Len(t, pushed, 5)

	evt := pushed[0]
	assert.True(t, strings.HasPrefix(evt.Source, "https://ttd.apps.altinn.no/ttd/app-x/instances/"))
	assert.Equal(t, "urn:altinn:resource:app_ttd_app-x", evt.Resource)
	assert.Equal(t, "app.instance.created", evt.Type)
	assert.NotNil(t, evt.Time)
}
