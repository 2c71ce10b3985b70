package nats

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhawk-systems/eventhawk-stack/common/messaging"
)

func TestStreamConfigs(t *testing.T) {
	tests := []struct {
		stream  StreamConfig
		name    string
		subject string
	}{
		{OutboundStream, messaging.StreamOutbound, messaging.SubjectOutboundEnvelope},
		{ValidationStream, messaging.StreamValidation, messaging.SubjectSubscriptionValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.stream.Name)
			assert.Equal(t, []string{tt.subject}, tt.stream.Subjects)
			assert.Equal(t, jetstream.WorkQueuePolicy, tt.stream.Retention)
			assert.Positive(t, tt.stream.MaxAge)
		})
	}
}

func TestNewJetStreamClient_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.Timeout = 200 * time.Millisecond

	client, err := NewJetStreamClient(cfg, time.Second)
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "failed to connect to NATS")
}
