package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PageContent statuses. The happy path walks
// pending → generating_brief → writing → checking → complete;
// any state may transition to failed.
const (
	ContentStatusPending         = "pending"
	ContentStatusGeneratingBrief = "generating_brief"
	ContentStatusWriting         = "writing"
	ContentStatusChecking        = "checking"
	ContentStatusComplete        = "complete"
	ContentStatusFailed          = "failed"
)

// ValidContentStatuses lists every accepted PageContent status.
var ValidContentStatuses = []string{
	ContentStatusPending,
	ContentStatusGeneratingBrief,
	ContentStatusWriting,
	ContentStatusChecking,
	ContentStatusComplete,
	ContentStatusFailed,
}

// PageContent holds the generated copy for one page. One row per page,
// lazily created by the pipeline on first run.
type PageContent struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	CrawledPageID         uuid.UUID  `db:"crawled_page_id" json:"crawled_page_id"`
	Status                string     `db:"status" json:"status"`
	PageTitle             string     `db:"page_title" json:"page_title"`
	MetaDescription       string     `db:"meta_description" json:"meta_description"`
	TopDescription        string     `db:"top_description" json:"top_description"`
	BottomDescription     string     `db:"bottom_description" json:"bottom_description"`
	WordCount             int        `db:"word_count" json:"word_count"`
	IsApproved            bool       `db:"is_approved" json:"is_approved"`
	ApprovedAt            *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	QAResults             JSONMap    `db:"qa_results" json:"qa_results"`
	GenerationStartedAt   *time.Time `db:"generation_started_at" json:"generation_started_at,omitempty"`
	GenerationCompletedAt *time.Time `db:"generation_completed_at" json:"generation_completed_at,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// ContentFields returns the four generated fields keyed by their column
// names, in a fixed order useful for checks and word counting.
func (c *PageContent) ContentFields() []ContentField {
	return []ContentField{
		{Name: "page_title", Text: c.PageTitle},
		{Name: "meta_description", Text: c.MetaDescription},
		{Name: "top_description", Text: c.TopDescription},
		{Name: "bottom_description", Text: c.BottomDescription},
	}
}

// ContentField pairs a content column with its current text.
type ContentField struct {
	Name string
	Text string
}

// TotalWordCount computes the canonical word count: whitespace-separated
// tokens across all four fields after HTML-tag stripping.
func (c *PageContent) TotalWordCount() int {
	total := 0
	for _, f := range c.ContentFields() {
		total += CountWords(StripHTML(f.Text))
	}
	return total
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes HTML tags, leaving the text content. Entities are left
// untouched; they count as part of their surrounding token.
func StripHTML(s string) string {
	return htmlTagPattern.ReplaceAllString(s, " ")
}

// CountWords counts whitespace-separated tokens.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// PromptLog steps recorded against a page's content.
const (
	PromptStepContentBrief = "content_brief"
	PromptStepWriting      = "writing"
	PromptStepTaxonomy     = "taxonomy"
	PromptStepLabels       = "labels"
)

// PromptLog is an append-only record of one prompt/response exchange.
type PromptLog struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PageContentID uuid.UUID `db:"page_content_id" json:"page_content_id"`
	Step          string    `db:"step" json:"step"`
	Role          string    `db:"role" json:"role"`
	PromptText    string    `db:"prompt_text" json:"prompt_text"`
	ResponseText  string    `db:"response_text" json:"response_text"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
