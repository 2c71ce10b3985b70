package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
)

const (
	appSource   = "https://ttd.apps.altinn.no/ttd/app-x"
	appResource = "urn:altinn:resource:app_ttd_app-x"
)

func createValidated(t *testing.T, repo Repository, sub *models.Subscription, hash string) *models.Subscription {
	t.Helper()
	ctx := context.Background()
	created, err := repo.CreateSubscription(ctx, sub, hash)
	require.NoError(t, err)
	require.NoError(t, repo.SetValidSubscription(ctx, created.ID))
	created.Validated = true
	return created
}

func ids(subs []*models.Subscription) []int64 {
	out := make([]int64, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.ID)
	}
	return out
}

// runRepositoryContract exercises behaviour every Repository implementation must share.
func runRepositoryContract(t *testing.T, repo Repository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		sub := &models.Subscription{
			SourceFilter:   appSource,
			TypeFilter:     "app.instance.created",
			ResourceFilter: appResource,
			Consumer:       "/org/ttd",
			CreatedBy:      "/org/ttd",
			EndPoint:       "https://hook.example.com/a",
		}
		created, err := repo.CreateSubscription(ctx, sub, "hash-a")
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.False(t, created.Validated)
		assert.False(t, created.Created.IsZero())

		got, err := repo.GetSubscription(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, appSource, got.SourceFilter)
		assert.Equal(t, "", got.SubjectFilter)
		assert.Equal(t, "/org/ttd", got.CreatedBy)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.GetSubscription(ctx, 987654)
		assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	})

	t.Run("find identical filter set", func(t *testing.T) {
		sub := &models.Subscription{
			SourceFilter:   appSource,
			SubjectFilter:  "/party/1337",
			ResourceFilter: appResource,
			Consumer:       "/user/42",
			CreatedBy:      "/user/42",
			EndPoint:       "https://hook.example.com/find",
		}
		_, err := repo.FindSubscription(ctx, sub, "hash-find")
		assert.ErrorIs(t, err, ErrSubscriptionNotFound)

		created, err := repo.CreateSubscription(ctx, sub, "hash-find")
		require.NoError(t, err)

		found, err := repo.FindSubscription(ctx, sub, "hash-find")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)

		other := *sub
		other.TypeFilter = "app.instance.created"
		_, err = repo.FindSubscription(ctx, &other, "hash-find")
		assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	})

	t.Run("list by consumer", func(t *testing.T) {
		consumer := "/organisation/910000000"
		base := models.Subscription{
			ResourceFilter: "urn:altinn:resource:list-test",
			Consumer:       consumer,
			CreatedBy:      consumer,
			EndPoint:       "https://hook.example.com/list",
		}
		first := base
		first.TypeFilter = "one"
		validated := createValidated(t, repo, &first, "")

		second := base
		second.TypeFilter = "two"
		pending, err := repo.CreateSubscription(ctx, &second, "")
		require.NoError(t, err)

		all, err := repo.GetSubscriptionsByConsumer(ctx, consumer, true)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{validated.ID, pending.ID}, ids(all))

		onlyValid, err := repo.GetSubscriptionsByConsumer(ctx, consumer, false)
		require.NoError(t, err)
		assert.Equal(t, []int64{validated.ID}, ids(onlyValid))
	})

	t.Run("delete", func(t *testing.T) {
		created, err := repo.CreateSubscription(ctx, &models.Subscription{
			ResourceFilter: "urn:altinn:resource:delete-test",
			Consumer:       "/org/skd",
			CreatedBy:      "/org/skd",
			EndPoint:       "https://hook.example.com/delete",
		}, "")
		require.NoError(t, err)

		require.NoError(t, repo.DeleteSubscription(ctx, created.ID))
		_, err = repo.GetSubscription(ctx, created.ID)
		assert.ErrorIs(t, err, ErrSubscriptionNotFound)
		assert.ErrorIs(t, repo.DeleteSubscription(ctx, created.ID), ErrSubscriptionNotFound)
	})

	t.Run("set valid missing", func(t *testing.T) {
		assert.ErrorIs(t, repo.SetValidSubscription(ctx, 987654), ErrSubscriptionNotFound)
	})

	t.Run("matching", func(t *testing.T) {
		source := "https://match.apps.altinn.no/match/app-m"
		resource := "urn:altinn:resource:app_match_app-m"
		completed := createValidated(t, repo, &models.Subscription{
			SourceFilter:   source,
			TypeFilter:     "app.instance.process.completed",
			ResourceFilter: resource,
			Consumer:       "/org/match",
			CreatedBy:      "/org/match",
			EndPoint:       "https://hook.example.com/m1",
		}, "h1")
		wildcard := createValidated(t, repo, &models.Subscription{
			SourceFilter:   "https://match.apps.altinn.no/match/%",
			ResourceFilter: resource,
			Consumer:       "/org/match",
			CreatedBy:      "/org/match",
			EndPoint:       "https://hook.example.com/m2",
		}, "h2")
		subjectBound := createValidated(t, repo, &models.Subscription{
			SourceFilter:   source,
			SubjectFilter:  "/party/500",
			ResourceFilter: resource,
			Consumer:       "/party/500",
			CreatedBy:      "/party/500",
			EndPoint:       "https://hook.example.com/m3",
		}, "h3")
		// Never validated, must never match.
		_, err := repo.CreateSubscription(ctx, &models.Subscription{
			SourceFilter:   source,
			ResourceFilter: resource,
			Consumer:       "/org/pending",
			CreatedBy:      "/org/pending",
			EndPoint:       "https://hook.example.com/m4",
		}, "h4")
		require.NoError(t, err)

		got, err := repo.GetSubscriptions(ctx, models.MatchQuery{
			SourceKey: source,
			Subject:   "/party/1",
			Type:      "app.instance.process.completed",
			Resource:  resource,
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{completed.ID, wildcard.ID}, ids(got))

		got, err = repo.GetSubscriptions(ctx, models.MatchQuery{
			SourceKey: source,
			Subject:   "/party/500",
			Type:      "app.instance.created",
			Resource:  resource,
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{wildcard.ID, subjectBound.ID}, ids(got))
	})

	t.Run("generic matching on resource", func(t *testing.T) {
		resource := "urn:altinn:resource:generic-match"
		generic := createValidated(t, repo, &models.Subscription{
			ResourceFilter: resource,
			TypeFilter:     "resource.changed",
			Consumer:       "/organisation/911111111",
			CreatedBy:      "/organisation/911111111",
			EndPoint:       "https://hook.example.com/g1",
		}, "")

		got, err := repo.GetSubscriptions(ctx, models.MatchQuery{
			SourceKey: "https://publisher.example.com/things/1",
			Type:      "resource.changed",
			Resource:  resource,
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{generic.ID}, ids(got))

		got, err = repo.GetSubscriptions(ctx, models.MatchQuery{
			SourceKey: "https://publisher.example.com/things/1",
			Type:      "resource.changed",
			Resource:  "urn:altinn:resource:someone-else",
		})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
