package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhawk-systems/eventhawk-stack/common/messaging"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []string
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, string(data))
	return nil
}

func TestBrokerClient_Subjects(t *testing.T) {
	pub := &recordingPublisher{}
	client := NewBrokerClient(pub)
	ctx := context.Background()

	r := client.EnqueueOutbound(ctx, `{"subscriptionId":1}`)
	require.True(t, r.Success)
	require.NoError(t, r.Err)

	r = client.EnqueueSubscriptionValidation(ctx, `{"id":1}`)
	require.True(t, r.Success)

	assert.Equal(t, []string{messaging.SubjectOutboundEnvelope, messaging.SubjectSubscriptionValidation}, pub.subjects)
	assert.Equal(t, []string{`{"subscriptionId":1}`, `{"id":1}`}, pub.payloads)
}

func TestBrokerClient_PublishFailure(t *testing.T) {
	brokerErr := errors.New("nats: no responders available for request")
	client := NewBrokerClient(&recordingPublisher{err: brokerErr})

	r := client.EnqueueOutbound(context.Background(), `{}`)
	assert.False(t, r.Success)
	assert.ErrorIs(t, r.Err, brokerErr)
}

func TestBrokerClient_EmptyPayload(t *testing.T) {
	pub := &recordingPublisher{}
	client := NewBrokerClient(pub)

	r := client.EnqueueSubscriptionValidation(context.Background(), "")
	assert.False(t, r.Success)
	assert.Error(t, r.Err)
	assert.Empty(t, pub.subjects)
}
