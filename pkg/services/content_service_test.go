package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
)

func contentColumns() []string {
	return []string{
		"id", "crawled_page_id", "status", "page_title", "meta_description",
		"top_description", "bottom_description", "word_count", "is_approved",
		"approved_at", "qa_results", "generation_started_at",
		"generation_completed_at", "created_at", "updated_at",
	}
}

func contentRow(id, pageID uuid.UUID, status, title, meta, top, bottom string, wordCount int, approved bool) *sqlmock.Rows {
	now := time.Now()
	var approvedAt any
	if approved {
		approvedAt = now
	}
	return sqlmock.NewRows(contentColumns()).AddRow(
		id.String(), pageID.String(), status, title, meta, top, bottom,
		wordCount, approved, approvedAt, []byte(`{}`), nil, nil, now, now,
	)
}

func TestContentServiceSaveDraftRecountsWords(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewContentService(db)

	id := uuid.New()
	pageID := uuid.New()
	draft := models.PageContent{
		PageTitle:         "Trail Running Shoes",     // 3 words
		MetaDescription:   "Shop <b>trail</b> shoes", // 3 words after stripping
		TopDescription:    "<p>Built for mud.</p>",   // 3 words
		BottomDescription: "",
	}

	mock.ExpectExec("UPDATE page_contents").
		WithArgs(models.ContentStatusChecking,
			draft.PageTitle, draft.MetaDescription, draft.TopDescription, draft.BottomDescription,
			9, pageID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM page_contents").
		WithArgs(pageID).
		WillReturnRows(contentRow(id, pageID, models.ContentStatusChecking,
			draft.PageTitle, draft.MetaDescription, draft.TopDescription, draft.BottomDescription, 9, false))

	saved, err := svc.SaveDraft(context.Background(), pageID, draft)
	require.NoError(t, err)
	assert.Equal(t, 9, saved.WordCount)
	assert.Equal(t, models.ContentStatusChecking, saved.Status)
}

func TestContentServiceUpdateFieldsClearsApproval(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewContentService(db)

	id := uuid.New()
	pageID := uuid.New()

	// Load current content (approved), then write the edit.
	mock.ExpectQuery("SELECT \\* FROM page_contents").
		WithArgs(pageID).
		WillReturnRows(contentRow(id, pageID, models.ContentStatusComplete,
			"Old Title", "Meta here", "Top text", "Bottom text", 8, true))
	mock.ExpectExec("UPDATE page_contents").
		WithArgs("Old Title", "Meta here", "Top text", "New bottom copy", 9, pageID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM page_contents").
		WithArgs(pageID).
		WillReturnRows(contentRow(id, pageID, models.ContentStatusComplete,
			"Old Title", "Meta here", "Top text", "New bottom copy", 9, false))

	updated, err := svc.UpdateFields(context.Background(), pageID,
		map[string]string{"bottom_description": "New bottom copy"})
	require.NoError(t, err)
	assert.False(t, updated.IsApproved)
	assert.Nil(t, updated.ApprovedAt)
	assert.Equal(t, 9, updated.WordCount)
}

func TestContentServiceUpdateFieldsRejectsUnknownField(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewContentService(db)

	id := uuid.New()
	pageID := uuid.New()
	mock.ExpectQuery("SELECT \\* FROM page_contents").
		WithArgs(pageID).
		WillReturnRows(contentRow(id, pageID, models.ContentStatusComplete,
			"T", "M", "Top", "Bottom", 4, false))

	_, err := svc.UpdateFields(context.Background(), pageID,
		map[string]string{"status": "complete"})
	assert.True(t, IsValidationError(err))
}

func TestContentServiceSaveQAResultsValidatesStatus(t *testing.T) {
	db, _ := newMockDB(t)
	svc := NewContentService(db)

	err := svc.SaveQAResults(context.Background(), uuid.New(),
		models.JSONMap{"passed": true}, models.ContentStatusWriting)
	assert.True(t, IsValidationError(err))
}

func TestContentServiceMarkFailedUsesFreshScope(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewContentService(db)

	pageID := uuid.New()
	mock.ExpectExec("UPDATE page_contents").
		WithArgs(models.ContentStatusFailed, sqlmock.AnyArg(), pageID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// MarkFailed takes no caller context: a cancelled pipeline context must
	// not be able to block the failure write.
	require.NoError(t, svc.MarkFailed(pageID, "writer failed: timeout"))
}

func TestContentServiceGetByPageIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewContentService(db)

	pageID := uuid.New()
	mock.ExpectQuery("SELECT \\* FROM page_contents").
		WithArgs(pageID).
		WillReturnRows(sqlmock.NewRows(contentColumns()))

	_, err := svc.GetByPageID(context.Background(), pageID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContentServiceStatusSummaryCounts(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewContentService(db)

	projectID := uuid.New()
	cols := []string{"page_id", "url", "keyword", "source", "status", "qa_results", "is_approved"}
	mock.ExpectQuery("SELECT cp.id AS page_id").
		WithArgs(projectID).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(uuid.New().String(), "https://a.example/x", "kw one", "manual",
				models.ContentStatusComplete, []byte(`{"passed":true,"issues":[]}`), true).
			AddRow(uuid.New().String(), "https://a.example/y", "kw two", "manual",
				models.ContentStatusFailed, []byte(`{"error":"writer failed","issues":[{"type":"x"}]}`), false).
			AddRow(uuid.New().String(), "https://a.example/z", "kw three", "research",
				models.ContentStatusWriting, []byte(`{}`), false))

	summary, err := svc.GetStatusSummary(context.Background(), projectID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Complete)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.InFlight)

	require.Len(t, summary.Pages, 3)
	assert.Equal(t, "", summary.Pages[0].Error)
	require.NotNil(t, summary.Pages[0].QAPassed)
	assert.True(t, *summary.Pages[0].QAPassed)
	assert.Equal(t, "writer failed", summary.Pages[1].Error)
	assert.Equal(t, 1, summary.Pages[1].QAIssueCount)
	assert.Nil(t, summary.Pages[2].QAPassed)
}
