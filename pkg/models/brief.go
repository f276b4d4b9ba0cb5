package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ContentBrief is the optimization bundle guiding the writer for one page.
// One row per page; a force-refresh replaces it in place.
type ContentBrief struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	PageID           uuid.UUID        `db:"page_id" json:"page_id"`
	Keyword          string           `db:"keyword" json:"keyword"`
	LSITerms         LSITermList      `db:"lsi_terms" json:"lsi_terms"`
	RelatedSearches  StringList       `db:"related_searches" json:"related_searches"`
	Competitors      CompetitorList   `db:"competitors" json:"competitors"`
	RelatedQuestions StringList       `db:"related_questions" json:"related_questions"`
	HeadingTargets   HeadingTargets   `db:"heading_targets" json:"heading_targets"`
	KeywordTargets   KeywordTargets   `db:"keyword_targets" json:"keyword_targets"`
	WordCountTarget  int              `db:"word_count_target" json:"word_count_target"`
	WordCountMin     int              `db:"word_count_min" json:"word_count_min"`
	WordCountMax     int              `db:"word_count_max" json:"word_count_max"`
	PageScoreTarget  float64          `db:"page_score_target" json:"page_score_target"`
	RawResponse      JSONMap          `db:"raw_response" json:"raw_response"`
	POPTaskID        string           `db:"pop_task_id" json:"pop_task_id"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// LSITerm is one latent-semantic phrase with its usage targets.
type LSITerm struct {
	Phrase       string  `json:"phrase"`
	Weight       float64 `json:"weight"`
	AverageCount float64 `json:"averageCount"`
	TargetCount  float64 `json:"targetCount"`
}

// Competitor summarizes one ranking competitor page.
type Competitor struct {
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	H2Texts   []string `json:"h2Texts"`
	H3Texts   []string `json:"h3Texts"`
	PageScore float64  `json:"pageScore"`
	WordCount int      `json:"wordCount"`
}

// HeadingTarget is a recommended count for one heading tag.
type HeadingTarget struct {
	Tag    string `json:"tag"`
	Target int    `json:"target"`
	Min    int    `json:"min"`
	Max    int    `json:"max"`
	Source string `json:"source"`
}

// Keyword target types.
const (
	KeywordTargetExact = "exact"
	KeywordTargetLSI   = "lsi"
)

// KeywordTarget is a placement recommendation for the exact keyword or an
// LSI phrase within a page signal (title, h1, paragraph text, ...).
type KeywordTarget struct {
	Signal  string `json:"signal"`
	Target  int    `json:"target"`
	Phrase  string `json:"phrase,omitempty"`
	Comment string `json:"comment,omitempty"`
	Type    string `json:"type"`
}

// Typed JSONB lists for the brief columns.

type LSITermList []LSITerm

func (l LSITermList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *LSITermList) Scan(src any) error { return jsonbScan(src, l) }

type CompetitorList []Competitor

func (l CompetitorList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *CompetitorList) Scan(src any) error { return jsonbScan(src, l) }

type HeadingTargets []HeadingTarget

func (l HeadingTargets) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *HeadingTargets) Scan(src any) error { return jsonbScan(src, l) }

type KeywordTargets []KeywordTarget

func (l KeywordTargets) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *KeywordTargets) Scan(src any) error { return jsonbScan(src, l) }
