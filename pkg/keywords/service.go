package keywords

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/integrations"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/services"
)

const (
	// maxCandidatesPerPage bounds how many terms one page contributes to the
	// volume lookup.
	maxCandidatesPerPage = 12

	// clusterThreshold is the label-overlap score at which two pages are
	// considered the same topic and share a secondary-keyword pool.
	clusterThreshold = 0.5
)

// ErrProviderUnavailable is returned when research runs without a configured
// keyword-volume provider.
var ErrProviderUnavailable = errors.New("keyword-volume provider is not configured")

// ErrNoCompletedPages is returned when research runs before any page has
// finished crawling.
var ErrNoCompletedPages = errors.New("project has no completed pages to research keywords for")

// VolumeProvider is the slice of the keyword-volume adapter research uses.
type VolumeProvider interface {
	Available() bool
	GetKeywordDataBatch(ctx context.Context, keywords []string, country, currency, dataSource string) ([]integrations.KeywordData, error)
}

// PageStore reads crawled pages.
type PageStore interface {
	GetPage(ctx context.Context, id uuid.UUID) (*models.CrawledPage, error)
	ListCompletedPages(ctx context.Context, projectID uuid.UUID) ([]models.CrawledPage, error)
}

// AssignmentStore persists keyword assignments.
type AssignmentStore interface {
	GetByPageID(ctx context.Context, pageID uuid.UUID) (*models.PageKeywords, error)
	Upsert(ctx context.Context, assignment *models.PageKeywords) (*models.PageKeywords, error)
	ListPrimaries(ctx context.Context, projectID uuid.UUID) ([]string, error)
}

// Options tunes the volume lookup. Zero values fall back to the defaults.
type Options struct {
	Country    string `json:"country"`
	Currency   string `json:"currency"`
	DataSource string `json:"data_source"`
}

func (o Options) withDefaults() Options {
	if o.Country == "" {
		o.Country = "us"
	}
	if o.Currency == "" {
		o.Currency = "USD"
	}
	if o.DataSource == "" {
		o.DataSource = "gkp"
	}
	return o
}

// PageResearch is the outcome for one page.
type PageResearch struct {
	PageID            uuid.UUID `json:"page_id"`
	URL               string    `json:"url"`
	PrimaryKeyword    string    `json:"primary_keyword,omitempty"`
	Volume            int       `json:"volume,omitempty"`
	SecondaryKeywords []string  `json:"secondary_keywords,omitempty"`
	Skipped           bool      `json:"skipped,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	Error             string    `json:"error,omitempty"`
}

// ResearchSummary aggregates one research pass.
type ResearchSummary struct {
	TotalPages int            `json:"total_pages"`
	Researched int            `json:"researched"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Results    []PageResearch `json:"results"`
}

// RelatedPage is one page ranked by label overlap with the source page.
type RelatedPage struct {
	PageID uuid.UUID `json:"page_id"`
	URL    string    `json:"url"`
	Title  string    `json:"title"`
	Score  float64   `json:"score"`
}

// Service runs keyword research for a project: it derives candidate terms
// from each completed page, prices them through the volume provider in one
// batched lookup, and picks a primary and secondary mix per page. Approved
// assignments are never replaced.
type Service struct {
	provider VolumeProvider
	pages    PageStore
	store    AssignmentStore
	logger   *slog.Logger
}

func NewService(provider VolumeProvider, pages PageStore, store AssignmentStore) *Service {
	return &Service{
		provider: provider,
		pages:    pages,
		store:    store,
		logger:   slog.Default().With("component", "keywords"),
	}
}

// ResearchProject assigns a primary keyword and secondary mix to every
// completed page that does not already carry an approved assignment.
// Unapproved assignments are replaced; a page's previous pick never blocks
// its own re-research.
func (s *Service) ResearchProject(ctx context.Context, projectID uuid.UUID, opts Options) (*ResearchSummary, error) {
	if !s.provider.Available() {
		return nil, ErrProviderUnavailable
	}
	opts = opts.withDefaults()

	pages, err := s.pages.ListCompletedPages(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNoCompletedPages)
	}

	summary := &ResearchSummary{
		TotalPages: len(pages),
		Results:    make([]PageResearch, 0, len(pages)),
	}

	// Pass 1: split pages into skip (approved assignment) and research,
	// collecting candidate terms and the primaries this pass will replace.
	var research []models.CrawledPage
	candidates := make(map[uuid.UUID][]string, len(pages))
	replaced := make(map[string]bool)
	for _, page := range pages {
		existing, err := s.store.GetByPageID(ctx, page.ID)
		switch {
		case err != nil && !errors.Is(err, services.ErrNotFound):
			return nil, fmt.Errorf("failed to load assignment for page %s: %w", page.ID, err)
		case err == nil && existing.IsApproved:
			summary.Skipped++
			summary.Results = append(summary.Results, PageResearch{
				PageID:  page.ID,
				URL:     page.NormalizedURL,
				Skipped: true,
				Reason:  "assignment is approved",
			})
			continue
		case err == nil:
			replaced[Normalize(existing.PrimaryKeyword)] = true
		}
		research = append(research, page)
		candidates[page.ID] = candidateTerms(page)
	}
	if len(research) == 0 {
		return summary, nil
	}

	volumes, err := s.lookupVolumes(ctx, research, candidates, opts)
	if err != nil {
		return nil, err
	}

	used, err := s.usedPrimaries(ctx, projectID, replaced)
	if err != nil {
		return nil, err
	}

	// Pages covering the same topic draw secondaries from a shared pool, so
	// a cluster's long-tail terms can back any of its members.
	universes := clusterUniverses(research, candidates, volumes)

	for _, page := range research {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result := s.researchPage(ctx, page, candidates[page.ID], universes[page.ID], volumes, used)
		switch {
		case result.Error != "":
			summary.Failed++
		case result.Skipped:
			summary.Skipped++
		default:
			summary.Researched++
			used = append(used, result.PrimaryKeyword)
		}
		summary.Results = append(summary.Results, result)
	}

	s.logger.Info("Keyword research finished",
		"project_id", projectID,
		"total_pages", summary.TotalPages,
		"researched", summary.Researched,
		"skipped", summary.Skipped,
		"failed", summary.Failed)
	return summary, nil
}

// RelatedPages ranks the project's other completed pages by label overlap
// with the given page.
func (s *Service) RelatedPages(ctx context.Context, pageID uuid.UUID, threshold float64, limit int) ([]RelatedPage, error) {
	source, err := s.pages.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	pages, err := s.pages.ListCompletedPages(ctx, source.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed pages: %w", err)
	}

	collections := make([]Collection, 0, len(pages))
	byID := make(map[string]models.CrawledPage, len(pages))
	for _, page := range pages {
		if page.ID == source.ID {
			continue
		}
		collections = append(collections, Collection{
			ID:     page.ID.String(),
			Name:   page.Title,
			Labels: page.Labels,
		})
		byID[page.ID.String()] = page
	}

	ranked := RelatedCollections(source.Labels, collections, threshold, limit)
	related := make([]RelatedPage, 0, len(ranked))
	for _, r := range ranked {
		page := byID[r.Collection.ID]
		related = append(related, RelatedPage{
			PageID: page.ID,
			URL:    page.NormalizedURL,
			Title:  page.Title,
			Score:  r.Score,
		})
	}
	return related, nil
}

// lookupVolumes prices the union of all candidate terms in one batched
// provider call and indexes the results by normalized keyword.
func (s *Service) lookupVolumes(ctx context.Context, pages []models.CrawledPage, candidates map[uuid.UUID][]string, opts Options) (map[string]integrations.KeywordData, error) {
	seen := make(map[string]bool)
	var terms []string
	for _, page := range pages {
		for _, term := range candidates[page.ID] {
			if seen[term] {
				continue
			}
			seen[term] = true
			terms = append(terms, term)
		}
	}

	data, err := s.provider.GetKeywordDataBatch(ctx, terms, opts.Country, opts.Currency, opts.DataSource)
	if err != nil {
		return nil, fmt.Errorf("keyword volume lookup failed: %w", err)
	}

	volumes := make(map[string]integrations.KeywordData, len(data))
	for _, d := range data {
		volumes[Normalize(d.Keyword)] = d
	}
	return volumes, nil
}

// usedPrimaries is the exclusion set for this pass: every primary already
// assigned in the project, minus the ones the pass is about to replace.
func (s *Service) usedPrimaries(ctx context.Context, projectID uuid.UUID, replaced map[string]bool) ([]string, error) {
	primaries, err := s.store.ListPrimaries(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assigned primaries: %w", err)
	}
	used := make([]string, 0, len(primaries))
	for _, p := range primaries {
		if replaced[Normalize(p)] {
			continue
		}
		used = append(used, p)
	}
	return used, nil
}

func (s *Service) researchPage(ctx context.Context, page models.CrawledPage, terms []string, universe []Candidate, volumes map[string]integrations.KeywordData, used []string) PageResearch {
	result := PageResearch{PageID: page.ID, URL: page.NormalizedURL}
	if len(terms) == 0 {
		result.Skipped = true
		result.Reason = "page yields no candidate keywords"
		return result
	}

	specific := toCandidates(terms, volumes)
	primary, ok := PickPrimary(specific, used)
	if !ok {
		result.Skipped = true
		result.Reason = "every candidate is already a primary elsewhere"
		return result
	}

	secondary := PickSecondary(primary.Keyword, specific, universe, used, DefaultSecondaryConfig())
	secondaryKeywords := make(models.StringList, 0, len(secondary))
	for _, c := range secondary {
		secondaryKeywords = append(secondaryKeywords, c.Keyword)
	}

	if _, err := s.store.Upsert(ctx, &models.PageKeywords{
		CrawledPageID:     page.ID,
		PrimaryKeyword:    primary.Keyword,
		SecondaryKeywords: secondaryKeywords,
		Source:            models.KeywordSourceResearch,
		IsApproved:        false,
	}); err != nil {
		result.Error = fmt.Sprintf("failed to persist assignment: %v", err)
		return result
	}

	result.PrimaryKeyword = primary.Keyword
	result.Volume = primary.Volume
	result.SecondaryKeywords = secondaryKeywords
	return result
}

// clusterUniverses groups the research set by label overlap and gives every
// page its cluster's combined candidate pool.
func clusterUniverses(pages []models.CrawledPage, candidates map[uuid.UUID][]string, volumes map[string]integrations.KeywordData) map[uuid.UUID][]Candidate {
	collections := make([]Collection, 0, len(pages))
	for _, page := range pages {
		collections = append(collections, Collection{
			ID:     page.ID.String(),
			Name:   page.Title,
			Labels: page.Labels,
		})
	}
	clusters := ClusterCollections(collections, clusterThreshold)

	universes := make(map[uuid.UUID][]Candidate, len(pages))
	for _, cluster := range clusters {
		seen := make(map[string]bool)
		var terms []string
		for _, member := range cluster {
			id, err := uuid.Parse(member.ID)
			if err != nil {
				continue
			}
			for _, term := range candidates[id] {
				if seen[term] {
					continue
				}
				seen[term] = true
				terms = append(terms, term)
			}
		}
		pool := toCandidates(terms, volumes)
		for _, member := range cluster {
			if id, err := uuid.Parse(member.ID); err == nil {
				universes[id] = pool
			}
		}
	}
	return universes
}

func toCandidates(terms []string, volumes map[string]integrations.KeywordData) []Candidate {
	candidates := make([]Candidate, 0, len(terms))
	for _, term := range terms {
		c := Candidate{Keyword: term}
		if d, ok := volumes[Normalize(term)]; ok {
			c.Volume = d.Volume
			c.CPC = d.CPC
			c.Competition = d.Competition
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// candidateTerms derives a page's candidate keywords from its on-page
// signals: title, first H1, assigned labels, and subheadings.
func candidateTerms(page models.CrawledPage) []string {
	raw := []string{titleTerm(page.Title), page.FirstH1}
	raw = append(raw, page.Labels...)
	raw = append(raw, headingTexts(page.Headings, "h2", "h3")...)

	seen := make(map[string]bool, len(raw))
	var terms []string
	for _, term := range raw {
		n := Normalize(term)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		terms = append(terms, n)
		if len(terms) == maxCandidatesPerPage {
			break
		}
	}
	return terms
}

// titleTerm trims the site name shops append after a pipe.
func titleTerm(title string) string {
	if i := strings.Index(title, "|"); i >= 0 {
		title = title[:i]
	}
	return strings.TrimSpace(title)
}

func headingTexts(headings models.JSONMap, tags ...string) []string {
	var texts []string
	for _, tag := range tags {
		items, _ := headings[tag].([]any)
		for _, item := range items {
			if s, ok := item.(string); ok {
				texts = append(texts, s)
			}
		}
	}
	return texts
}
