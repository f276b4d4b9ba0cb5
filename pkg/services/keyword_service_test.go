package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
)

func pageKeywordColumns() []string {
	return []string{
		"id", "crawled_page_id", "primary_keyword", "secondary_keywords",
		"source", "is_approved", "created_at", "updated_at",
	}
}

func TestKeywordServiceUpsertRequiresPageID(t *testing.T) {
	db, _ := newMockDB(t)
	svc := NewKeywordService(db)

	_, err := svc.Upsert(context.Background(), &models.PageKeywords{PrimaryKeyword: "trail shoes"})
	assert.True(t, IsValidationError(err))
}

func TestKeywordServiceUpsertRequiresPrimaryKeyword(t *testing.T) {
	db, _ := newMockDB(t)
	svc := NewKeywordService(db)

	_, err := svc.Upsert(context.Background(), &models.PageKeywords{CrawledPageID: uuid.New()})
	assert.True(t, IsValidationError(err))
}

func TestKeywordServiceUpsertDefaultsSourceToManual(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewKeywordService(db)

	pageID := uuid.New()
	now := time.Now()
	mock.ExpectQuery("INSERT INTO page_keywords").
		WithArgs(sqlmock.AnyArg(), pageID, "trail running shoes",
			models.StringList{"grippy outsoles"}, models.KeywordSourceManual, false).
		WillReturnRows(sqlmock.NewRows(pageKeywordColumns()).AddRow(
			uuid.New().String(), pageID.String(), "trail running shoes",
			[]byte(`["grippy outsoles"]`), "manual", false, now, now,
		))

	saved, err := svc.Upsert(context.Background(), &models.PageKeywords{
		CrawledPageID:     pageID,
		PrimaryKeyword:    "trail running shoes",
		SecondaryKeywords: models.StringList{"grippy outsoles"},
	})
	require.NoError(t, err)
	assert.Equal(t, pageID, saved.CrawledPageID)
	assert.Equal(t, models.KeywordSourceManual, saved.Source)
	assert.Equal(t, models.StringList{"grippy outsoles"}, saved.SecondaryKeywords)
	assert.False(t, saved.IsApproved)
}

func TestKeywordServiceUpsertKeepsResearchSource(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewKeywordService(db)

	pageID := uuid.New()
	now := time.Now()
	mock.ExpectQuery("INSERT INTO page_keywords").
		WithArgs(sqlmock.AnyArg(), pageID, "road running shoes",
			models.StringList{"running"}, models.KeywordSourceResearch, false).
		WillReturnRows(sqlmock.NewRows(pageKeywordColumns()).AddRow(
			uuid.New().String(), pageID.String(), "road running shoes",
			[]byte(`["running"]`), "research", false, now, now,
		))

	saved, err := svc.Upsert(context.Background(), &models.PageKeywords{
		CrawledPageID:     pageID,
		PrimaryKeyword:    "road running shoes",
		SecondaryKeywords: models.StringList{"running"},
		Source:            models.KeywordSourceResearch,
	})
	require.NoError(t, err)
	assert.Equal(t, models.KeywordSourceResearch, saved.Source)
}

func TestKeywordServiceGetByPageIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewKeywordService(db)

	mock.ExpectQuery("SELECT \\* FROM page_keywords").
		WillReturnError(sql.ErrNoRows)

	_, err := svc.GetByPageID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeywordServiceSetApprovalNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewKeywordService(db)

	mock.ExpectQuery("UPDATE page_keywords").
		WillReturnError(sql.ErrNoRows)

	_, err := svc.SetApproval(context.Background(), uuid.New(), true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeywordServiceSetApprovalReturnsSavedRow(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewKeywordService(db)

	pageID := uuid.New()
	now := time.Now()
	mock.ExpectQuery("UPDATE page_keywords").
		WithArgs(true, pageID).
		WillReturnRows(sqlmock.NewRows(pageKeywordColumns()).AddRow(
			uuid.New().String(), pageID.String(), "trail running shoes",
			[]byte(`[]`), "research", true, now, now,
		))

	saved, err := svc.SetApproval(context.Background(), pageID, true)
	require.NoError(t, err)
	assert.True(t, saved.IsApproved)
	assert.Equal(t, "trail running shoes", saved.PrimaryKeyword)
}

func TestKeywordServiceListByProject(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewKeywordService(db)

	projectID := uuid.New()
	pageID := uuid.New()
	now := time.Now()
	columns := []string{
		"page_id", "url", "primary_keyword", "secondary_keywords",
		"source", "is_approved", "updated_at",
	}
	mock.ExpectQuery("FROM page_keywords pk").
		WithArgs(projectID).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			pageID.String(), "https://example.com/collections/trail",
			"trail running shoes", []byte(`["running"]`), "research", true, now,
		))

	rows, err := svc.ListByProject(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, pageID, rows[0].PageID)
	assert.Equal(t, "https://example.com/collections/trail", rows[0].URL)
	assert.Equal(t, "trail running shoes", rows[0].PrimaryKeyword)
	assert.Equal(t, models.StringList{"running"}, rows[0].SecondaryKeywords)
	assert.True(t, rows[0].IsApproved)
}

func TestKeywordServiceListPrimaries(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewKeywordService(db)

	projectID := uuid.New()
	mock.ExpectQuery("SELECT pk.primary_keyword").
		WithArgs(projectID).
		WillReturnRows(sqlmock.NewRows([]string{"primary_keyword"}).
			AddRow("road running shoes").
			AddRow("trail running shoes"))

	primaries, err := svc.ListPrimaries(context.Background(), projectID)
	require.NoError(t, err)
	assert.Equal(t, []string{"road running shoes", "trail running shoes"}, primaries)
}
