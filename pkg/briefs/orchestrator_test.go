package briefs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/services"
)

type stubFetcher struct {
	merged map[string]any
	taskID string
	err    error
	calls  int
}

func (s *stubFetcher) FetchReport(_ context.Context, _, _ string) (map[string]any, string, error) {
	s.calls++
	return s.merged, s.taskID, s.err
}

type stubStore struct {
	existing  *models.ContentBrief
	getErr    error
	upserted  *models.ContentBrief
	upsertErr error
}

func (s *stubStore) GetByPageID(_ context.Context, pageID uuid.UUID) (*models.ContentBrief, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.existing == nil {
		return nil, services.NewNotFoundError("content_brief", pageID.String())
	}
	return s.existing, nil
}

func (s *stubStore) Upsert(_ context.Context, brief *models.ContentBrief) (*models.ContentBrief, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	s.upserted = brief
	return brief, nil
}

func TestOrchestratorFetchReturnsCachedBrief(t *testing.T) {
	pageID := uuid.New()
	store := &stubStore{existing: &models.ContentBrief{PageID: pageID, Keyword: "trail shoes"}}
	fetcher := &stubFetcher{}

	result := NewOrchestrator(fetcher, store).Fetch(context.Background(), pageID, "trail shoes", "https://x.example", false)

	assert.True(t, result.Success)
	assert.True(t, result.Cached)
	assert.Same(t, store.existing, result.Brief)
	assert.Zero(t, fetcher.calls, "cache hit must not touch the provider")
}

func TestOrchestratorFetchForceRefreshBypassesCache(t *testing.T) {
	pageID := uuid.New()
	store := &stubStore{existing: &models.ContentBrief{PageID: pageID, Keyword: "stale"}}
	fetcher := &stubFetcher{
		merged: map[string]any{"pageScore": 66.0},
		taskID: "task-1",
	}

	result := NewOrchestrator(fetcher, store).Fetch(context.Background(), pageID, "trail shoes", "https://x.example", true)

	require.True(t, result.Success)
	assert.False(t, result.Cached)
	assert.Equal(t, 1, fetcher.calls)
	require.NotNil(t, store.upserted)
	assert.Equal(t, pageID, store.upserted.PageID)
	assert.Equal(t, "trail shoes", store.upserted.Keyword)
	assert.Equal(t, "task-1", store.upserted.POPTaskID)
	assert.InDelta(t, 66.0, store.upserted.PageScoreTarget, 0.001)
}

func TestOrchestratorFetchProviderFailure(t *testing.T) {
	store := &stubStore{}
	fetcher := &stubFetcher{err: errors.New("get-terms task failed: no serp data")}

	result := NewOrchestrator(fetcher, store).Fetch(context.Background(), uuid.New(), "kw", "https://x.example", false)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no serp data")
	assert.Nil(t, result.Brief)
	assert.Nil(t, store.upserted, "nothing to persist on a failed fetch")
}

func TestOrchestratorFetchUpsertFailure(t *testing.T) {
	store := &stubStore{upsertErr: errors.New("connection reset")}
	fetcher := &stubFetcher{merged: map[string]any{}, taskID: "task-1"}

	result := NewOrchestrator(fetcher, store).Fetch(context.Background(), uuid.New(), "kw", "https://x.example", false)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "connection reset")
}

func TestOrchestratorFetchCacheErrorFallsThroughToProvider(t *testing.T) {
	store := &stubStore{getErr: errors.New("db down")}
	fetcher := &stubFetcher{merged: map[string]any{}, taskID: "task-1"}

	result := NewOrchestrator(fetcher, store).Fetch(context.Background(), uuid.New(), "kw", "https://x.example", false)

	assert.True(t, result.Success, "cache trouble must not block a fresh fetch")
	assert.Equal(t, 1, fetcher.calls)
}
