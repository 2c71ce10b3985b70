package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
)

func TestInMemoryRepository_Contract(t *testing.T) {
	runRepositoryContract(t, NewInMemoryRepository())
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	created, err := repo.CreateSubscription(ctx, &models.Subscription{
		ResourceFilter:           "urn:altinn:resource:copy",
		AlternativeSubjectFilter: "/person/01017012345",
		Consumer:                 "/org/ttd",
		CreatedBy:                "/org/ttd",
		EndPoint:                 "https://hook.example.com",
	}, "")
	require.NoError(t, err)
	assert.Empty(t, created.AlternativeSubjectFilter, "alternative subject is never persisted")

	created.EndPoint = "https://mutated.example.com"

	got, err := repo.GetSubscription(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://hook.example.com", got.EndPoint)
}

func TestLike(t *testing.T) {
	tests := []struct {
		s, pattern string
		want       bool
	}{
		{"https://ttd.apps.altinn.no/ttd/app-x", "https://ttd.apps.altinn.no/ttd/app-x", true},
		{"https://ttd.apps.altinn.no/ttd/app-x", "https://ttd.apps.altinn.no/ttd/%", true},
		{"https://ttd.apps.altinn.no/ttd/app-x", "%/app-x", true},
		{"https://ttd.apps.altinn.no/ttd/app-x", "https://ttd.apps.altinn.no/skd/%", false},
		{"https://ttd.apps.altinn.no/ttd/app-x", "https://ttd.apps.altinn.no/ttd/app-_", true},
		{"https://ttd.apps.altinn.no/ttd/app-x", "https://ttd.apps.altinn.no/ttd/app", false},
		{"abc", "%%", true},
		{"", "%", true},
		{"", "", true},
		{"a", "", false},
		{"100%", "100%", true},
	}

	for _, tt := range tests {
		t.Run(tt.s+"~"+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, like(tt.s, tt.pattern))
		})
	}
}
