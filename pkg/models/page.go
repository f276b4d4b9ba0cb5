package models

import (
	"time"

	"github.com/google/uuid"
)

// Crawled page statuses, written by the crawl subsystem.
const (
	PageStatusPending   = "pending"
	PageStatusCompleted = "completed"
	PageStatusFailed    = "failed"
)

// CrawledPage is one page discovered on the customer site. The crawl
// subsystem owns these rows; the pipeline and the label subsystem read them,
// and label assignment writes the labels column.
type CrawledPage struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	ProjectID       uuid.UUID  `db:"project_id" json:"project_id"`
	NormalizedURL   string     `db:"normalized_url" json:"normalized_url"`
	Title           string     `db:"title" json:"title"`
	Status          string     `db:"status" json:"status"`
	Labels          StringList `db:"labels" json:"labels"`
	Headings        JSONMap    `db:"headings" json:"headings"`
	MetaDescription string     `db:"meta_description" json:"meta_description"`
	FirstH1         string     `db:"first_h1" json:"first_h1"`
	ProductCount    int        `db:"product_count" json:"product_count"`
	WordCount       int        `db:"word_count" json:"word_count"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Keyword assignment sources.
const (
	KeywordSourceManual   = "manual"
	KeywordSourceResearch = "research"
)

// PageKeywords is the caller-approved keyword assignment for a page.
// Generation only considers pages whose assignment is approved. Source
// records where the keyword came from (manual entry or keyword research).
type PageKeywords struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	CrawledPageID     uuid.UUID  `db:"crawled_page_id" json:"crawled_page_id"`
	PrimaryKeyword    string     `db:"primary_keyword" json:"primary_keyword"`
	SecondaryKeywords StringList `db:"secondary_keywords" json:"secondary_keywords"`
	Source            string     `db:"source" json:"source"`
	IsApproved        bool       `db:"is_approved" json:"is_approved"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// GenerationPage is the lightweight projection the pipeline works from:
// one approved page with its keyword and the current content status.
type GenerationPage struct {
	PageID        uuid.UUID `db:"page_id" json:"page_id"`
	URL           string    `db:"url" json:"url"`
	Keyword       string    `db:"keyword" json:"keyword"`
	ContentStatus string    `db:"content_status" json:"content_status"`
}
