package messaging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjects_FollowNamingConvention(t *testing.T) {
	for _, subject := range []string{SubjectOutboundEnvelope, SubjectSubscriptionValidation} {
		parts := strings.Split(subject, ".")
		assert.Len(t, parts, 3, subject)
		assert.Equal(t, "events", parts[0])
	}
}

func TestSubjects_Distinct(t *testing.T) {
	assert.NotEqual(t, SubjectOutboundEnvelope, SubjectSubscriptionValidation)
	assert.NotEqual(t, StreamOutbound, StreamValidation)
	assert.NotEqual(t, ConsumerOutboundWorkers, ConsumerValidationWorkers)
}
