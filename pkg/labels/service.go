package labels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/integrations"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
)

// Where the taxonomy lives inside the project's phase_status blob.
const (
	taxonomyPhase = "onboarding"
	taxonomyKey   = "taxonomy"
)

const (
	taxonomyMaxTokens = 2048
	assignMaxTokens   = 512
	labelTemperature  = 0.2
)

// ErrNoTaxonomy is returned when assignment runs before generation.
var ErrNoTaxonomy = errors.New("no taxonomy has been generated for this project")

// ErrNoCompletedPages is returned when taxonomy generation runs before any
// page has finished crawling.
var ErrNoCompletedPages = errors.New("project has no completed pages to derive a taxonomy from")

// TaxonomyLabel is one reusable label with its catalog-specific meaning.
type TaxonomyLabel struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
}

// Taxonomy is the project-wide label set persisted under
// phase_status.onboarding.taxonomy.
type Taxonomy struct {
	Labels      []TaxonomyLabel `json:"labels"`
	Reasoning   string          `json:"reasoning"`
	PageCount   int             `json:"page_count"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Names returns the normalized label names, the set the validator accepts.
func (t *Taxonomy) Names() []string {
	names := make([]string, 0, len(t.Labels))
	for _, label := range t.Labels {
		names = append(names, label.Name)
	}
	return Normalize(names)
}

// PageAssignment is the outcome for one page.
type PageAssignment struct {
	PageID     uuid.UUID `json:"page_id"`
	URL        string    `json:"url"`
	Labels     []string  `json:"labels,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// AssignmentSummary aggregates one assignment pass.
type AssignmentSummary struct {
	TotalPages int              `json:"total_pages"`
	Labeled    int              `json:"labeled"`
	Failed     int              `json:"failed"`
	Results    []PageAssignment `json:"results"`
}

// PageStore is the slice of the page service the label flows use.
type PageStore interface {
	ListCompletedPages(ctx context.Context, projectID uuid.UUID) ([]models.CrawledPage, error)
	UpdateLabels(ctx context.Context, pageID uuid.UUID, labels []string) error
}

// ProjectStore reads and writes the phase_status blob.
type ProjectStore interface {
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	MergePhaseStatus(ctx context.Context, projectID uuid.UUID, phase, key string, value any) error
}

// ContentStore resolves the page's content row so label exchanges can be
// appended to the same prompt log the writer uses.
type ContentStore interface {
	EnsureForPage(ctx context.Context, pageID uuid.UUID) (*models.PageContent, error)
}

// CompletionClient is the slice of the LLM adapter the label flows use.
type CompletionClient interface {
	Complete(ctx context.Context, req integrations.CompletionRequest) integrations.CompletionResult
}

// PromptRecorder appends prompt/response exchanges.
type PromptRecorder interface {
	Append(ctx context.Context, pageContentID uuid.UUID, step, role, promptText, responseText string) error
}

// Service owns taxonomy generation and label assignment for a project.
type Service struct {
	llm      CompletionClient
	pages    PageStore
	projects ProjectStore
	content  ContentStore
	prompts  PromptRecorder
	logger   *slog.Logger
}

func NewService(llm CompletionClient, pages PageStore, projects ProjectStore, content ContentStore, prompts PromptRecorder) *Service {
	return &Service{
		llm:      llm,
		pages:    pages,
		projects: projects,
		content:  content,
		prompts:  prompts,
		logger:   slog.Default().With("component", "labels"),
	}
}

// GenerateTaxonomy derives the label taxonomy from the project's completed
// pages and persists it into phase_status.
func (s *Service) GenerateTaxonomy(ctx context.Context, projectID uuid.UUID) (*Taxonomy, error) {
	pages, err := s.pages.ListCompletedPages(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNoCompletedPages)
	}

	prompt := buildTaxonomyPrompt(pages)
	result := s.llm.Complete(ctx, integrations.CompletionRequest{
		SystemPrompt: taxonomySystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    taxonomyMaxTokens,
		Temperature:  labelTemperature,
	})
	if !result.Success {
		return nil, fmt.Errorf("taxonomy completion failed: %s", result.Error)
	}

	var parsed struct {
		Labels    []TaxonomyLabel `json:"labels"`
		Reasoning string          `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(integrations.ExtractJSON(result.Text)), &parsed); err != nil {
		return nil, fmt.Errorf("taxonomy response is malformed JSON: %w", err)
	}

	taxonomy := &Taxonomy{
		Reasoning:   parsed.Reasoning,
		PageCount:   len(pages),
		GeneratedAt: time.Now().UTC(),
	}
	seen := make(map[string]bool, len(parsed.Labels))
	for _, label := range parsed.Labels {
		name := strings.ToLower(strings.TrimSpace(label.Name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		label.Name = name
		taxonomy.Labels = append(taxonomy.Labels, label)
	}
	if len(taxonomy.Labels) == 0 {
		return nil, fmt.Errorf("taxonomy response contained no usable labels")
	}

	if err := s.projects.MergePhaseStatus(ctx, projectID, taxonomyPhase, taxonomyKey, taxonomy); err != nil {
		return nil, fmt.Errorf("failed to persist taxonomy: %w", err)
	}
	s.logger.Info("Taxonomy generated",
		"project_id", projectID,
		"labels", len(taxonomy.Labels),
		"pages", len(pages))
	return taxonomy, nil
}

// LoadTaxonomy reads the persisted taxonomy. nil with no error means none
// has been generated yet.
func (s *Service) LoadTaxonomy(ctx context.Context, projectID uuid.UUID) (*Taxonomy, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	phase, _ := project.PhaseStatus[taxonomyPhase].(map[string]any)
	raw, ok := phase[taxonomyKey]
	if !ok {
		return nil, nil
	}
	// The blob round-trips through JSONB, so re-encode whatever shape it
	// has now and decode into the typed struct.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode stored taxonomy: %w", err)
	}
	var taxonomy Taxonomy
	if err := json.Unmarshal(data, &taxonomy); err != nil {
		return nil, fmt.Errorf("stored taxonomy is malformed: %w", err)
	}
	if len(taxonomy.Labels) == 0 {
		return nil, nil
	}
	return &taxonomy, nil
}

// AssignLabels labels every completed page from the stored taxonomy.
// Per-page failures are recorded in the summary and the pass continues.
func (s *Service) AssignLabels(ctx context.Context, projectID uuid.UUID) (*AssignmentSummary, error) {
	taxonomy, err := s.LoadTaxonomy(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if taxonomy == nil {
		return nil, ErrNoTaxonomy
	}
	names := taxonomy.Names()

	pages, err := s.pages.ListCompletedPages(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed pages: %w", err)
	}

	summary := &AssignmentSummary{
		TotalPages: len(pages),
		Results:    make([]PageAssignment, 0, len(pages)),
	}
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		assignment := s.assignPage(ctx, taxonomy, names, page)
		if assignment.Error == "" {
			summary.Labeled++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, assignment)
	}

	s.logger.Info("Label assignment finished",
		"project_id", projectID,
		"total_pages", summary.TotalPages,
		"labeled", summary.Labeled,
		"failed", summary.Failed)
	return summary, nil
}

// ValidateForProject runs the shared validator against the project's stored
// taxonomy. This is the path user edits take.
func (s *Service) ValidateForProject(ctx context.Context, projectID uuid.UUID, userLabels []string) (ValidationResult, error) {
	taxonomy, err := s.LoadTaxonomy(ctx, projectID)
	if err != nil {
		return ValidationResult{}, err
	}
	if taxonomy == nil {
		return Validate(userLabels, nil), nil
	}
	return Validate(userLabels, taxonomy.Names()), nil
}

func (s *Service) assignPage(ctx context.Context, taxonomy *Taxonomy, names []string, page models.CrawledPage) PageAssignment {
	assignment := PageAssignment{PageID: page.ID, URL: page.NormalizedURL}

	prompt := buildAssignPrompt(taxonomy, page)
	result := s.llm.Complete(ctx, integrations.CompletionRequest{
		SystemPrompt: assignSystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    assignMaxTokens,
		Temperature:  labelTemperature,
	})
	s.logExchange(ctx, page.ID, prompt, result.Text)
	if !result.Success {
		assignment.Error = fmt.Sprintf("completion failed: %s", result.Error)
		return assignment
	}

	var parsed struct {
		Labels     []string `json:"labels"`
		Confidence float64  `json:"confidence"`
		Reasoning  string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(integrations.ExtractJSON(result.Text)), &parsed); err != nil {
		assignment.Error = fmt.Sprintf("assignment response is malformed JSON: %v", err)
		return assignment
	}

	validation := Validate(parsed.Labels, names)
	if !validation.Valid {
		assignment.Error = validationMessage(validation)
		return assignment
	}

	if err := s.pages.UpdateLabels(ctx, page.ID, validation.Labels); err != nil {
		assignment.Error = fmt.Sprintf("failed to persist labels: %v", err)
		return assignment
	}
	assignment.Labels = validation.Labels
	assignment.Confidence = parsed.Confidence
	return assignment
}

func (s *Service) logExchange(ctx context.Context, pageID uuid.UUID, prompt, response string) {
	content, err := s.content.EnsureForPage(ctx, pageID)
	if err != nil {
		s.logger.Warn("Prompt log skipped; no content row",
			"page_id", pageID,
			"error", err)
		return
	}
	if err := s.prompts.Append(ctx, content.ID, models.PromptStepLabels, "assistant", prompt, response); err != nil {
		s.logger.Warn("Prompt log write failed",
			"page_id", pageID,
			"error", err)
	}
}

func validationMessage(v ValidationResult) string {
	msgs := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		msgs = append(msgs, e.Code+": "+e.Message)
	}
	return "label validation failed: " + strings.Join(msgs, "; ")
}

const taxonomySystemPrompt = `You build label taxonomies for e-commerce collection pages.

From the page summaries you are given, produce between 5 and 15 reusable labels describing what the pages sell. Labels must be specific to this catalog; never use generic labels such as "products", "category", "general", "misc", or "other".

Respond with a single JSON object and nothing else:
{"labels": [{"name": "...", "description": "...", "examples": ["..."]}], "reasoning": "..."}
Each example must be a URL taken from the summaries.`

const assignSystemPrompt = `You assign labels to one e-commerce collection page from a fixed taxonomy.

Pick between 2 and 5 labels that apply to the page. Only use labels from the taxonomy, spelled exactly as given.

Respond with a single JSON object and nothing else:
{"labels": ["..."], "confidence": 0.0, "reasoning": "..."}`

func buildTaxonomyPrompt(pages []models.CrawledPage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here are %d completed collection pages:\n\n", len(pages))
	for _, p := range pages {
		b.WriteString(pageSummary(p))
		b.WriteString("\n")
	}
	return b.String()
}

func buildAssignPrompt(taxonomy *Taxonomy, page models.CrawledPage) string {
	var b strings.Builder
	b.WriteString("Taxonomy:\n")
	for _, label := range taxonomy.Labels {
		fmt.Fprintf(&b, "- %s: %s\n", label.Name, label.Description)
	}
	b.WriteString("\nPage:\n")
	b.WriteString(pageSummary(page))
	b.WriteString("\n")
	return b.String()
}

func pageSummary(p models.CrawledPage) string {
	return fmt.Sprintf("- %s | title: %s | meta: %s | h1: %s | products: %d | words: %d",
		p.NormalizedURL, p.Title, p.MetaDescription, p.FirstH1, p.ProductCount, p.WordCount)
}
