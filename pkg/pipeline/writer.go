package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/integrations"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/quality"
)

const (
	writerMaxTokens   = 4096
	writerTemperature = 0.7
)

// CompletionClient is the slice of the LLM adapter the writer uses.
type CompletionClient interface {
	Complete(ctx context.Context, req integrations.CompletionRequest) integrations.CompletionResult
}

// Draft is the JSON document the writer model must return.
type Draft struct {
	PageTitle         string `json:"page_title"`
	MetaDescription   string `json:"meta_description"`
	TopDescription    string `json:"top_description"`
	BottomDescription string `json:"bottom_description"`
}

// WriteOutput carries the draft plus the raw exchange for the prompt log.
type WriteOutput struct {
	Draft    Draft
	Prompt   string
	Response string
}

// Writer produces the four content fields for one page from its brief and
// the project's brand schema.
type Writer struct {
	llm    CompletionClient
	logger *slog.Logger
}

func NewWriter(llm CompletionClient) *Writer {
	return &Writer{
		llm:    llm,
		logger: slog.Default().With("component", "content_writer"),
	}
}

// Write calls the model and parses its response. A nil brief is allowed;
// the prompt then asks for naturally written copy without optimization
// targets. The raw prompt and response are returned even on failure so the
// exchange can be logged.
func (w *Writer) Write(ctx context.Context, page models.GenerationPage, brief *models.ContentBrief, brand models.BrandSchema, brandName string) (WriteOutput, error) {
	out := WriteOutput{
		Prompt: buildWriterPrompt(page, brief, brand),
	}

	result := w.llm.Complete(ctx, integrations.CompletionRequest{
		SystemPrompt: buildWriterSystemPrompt(brand, brandName),
		UserPrompt:   out.Prompt,
		MaxTokens:    writerMaxTokens,
		Temperature:  writerTemperature,
	})
	out.Response = result.Text
	if !result.Success {
		return out, fmt.Errorf("completion failed: %s", result.Error)
	}

	w.logger.Debug("Writer completion received",
		"page_id", page.PageID,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens)

	var draft Draft
	if err := json.Unmarshal([]byte(integrations.ExtractJSON(result.Text)), &draft); err != nil {
		return out, fmt.Errorf("writer returned malformed JSON: %w", err)
	}
	if missing := missingDraftFields(draft); len(missing) > 0 {
		return out, fmt.Errorf("writer draft missing fields: %s", strings.Join(missing, ", "))
	}

	out.Draft = draft
	return out, nil
}

func missingDraftFields(d Draft) []string {
	var missing []string
	if strings.TrimSpace(d.PageTitle) == "" {
		missing = append(missing, "page_title")
	}
	if strings.TrimSpace(d.MetaDescription) == "" {
		missing = append(missing, "meta_description")
	}
	if strings.TrimSpace(d.TopDescription) == "" {
		missing = append(missing, "top_description")
	}
	if strings.TrimSpace(d.BottomDescription) == "" {
		missing = append(missing, "bottom_description")
	}
	return missing
}

func buildWriterSystemPrompt(brand models.BrandSchema, brandName string) string {
	var b strings.Builder
	b.WriteString("You write SEO copy for e-commerce collection pages.")
	if brandName != "" {
		fmt.Fprintf(&b, " The brand is %s.", brandName)
	}
	if brand.Tone != "" {
		fmt.Fprintf(&b, " Tone of voice: %s.", brand.Tone)
	}
	b.WriteString("\n\nNever use these words: ")
	b.WriteString(strings.Join(quality.Tier1Words, ", "))
	b.WriteString(".")
	if len(brand.Vocabulary.Banned) > 0 {
		b.WriteString("\nAlso never use these brand-banned phrases: ")
		b.WriteString(strings.Join(brand.Vocabulary.Banned, ", "))
		b.WriteString(".")
	}
	b.WriteString("\n\nRespond with a single JSON object and nothing else, using exactly these keys: " +
		`"page_title", "meta_description", "top_description", "bottom_description". ` +
		"The two descriptions may contain simple HTML (p, h2, h3, b, ul, li); every opened tag must be closed.")
	return b.String()
}

func buildWriterPrompt(page models.GenerationPage, brief *models.ContentBrief, brand models.BrandSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write content for the collection page %s targeting the keyword %q.\n", page.URL, page.Keyword)

	if brief == nil {
		b.WriteString("\nNo optimization data is available for this page. Write natural, specific copy around the keyword.\n")
		return b.String()
	}

	if brief.WordCountMin > 0 && brief.WordCountMax > 0 {
		fmt.Fprintf(&b, "\nTotal length across all fields: between %d and %d words", brief.WordCountMin, brief.WordCountMax)
		if brief.WordCountTarget > 0 {
			fmt.Fprintf(&b, ", aiming for %d", brief.WordCountTarget)
		}
		b.WriteString(".\n")
	}

	if len(brief.LSITerms) > 0 {
		b.WriteString("\nWork in these phrases, each roughly its target number of times:\n")
		for _, term := range brief.LSITerms {
			fmt.Fprintf(&b, "- %s (target %.0f)\n", term.Phrase, term.TargetCount)
		}
	}

	if len(brief.RelatedSearches) > 0 {
		b.WriteString("\nShoppers also search for: " + strings.Join(brief.RelatedSearches, "; ") + "\n")
	}

	if len(brief.RelatedQuestions) > 0 {
		b.WriteString("\nAnswer these questions somewhere in the copy:\n")
		for _, q := range brief.RelatedQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}

	if len(brief.HeadingTargets) > 0 {
		b.WriteString("\nHeading structure:\n")
		for _, h := range brief.HeadingTargets {
			fmt.Fprintf(&b, "- %s: about %d\n", h.Tag, h.Target)
		}
	}

	for _, kt := range brief.KeywordTargets {
		if kt.Type == models.KeywordTargetExact {
			fmt.Fprintf(&b, "\nUse the exact keyword in %s about %d time(s).", kt.Signal, kt.Target)
		}
	}
	b.WriteString("\n")

	if len(brand.Competitors) > 0 {
		b.WriteString("\nCompetitor pages for positioning context (do not copy them): " +
			strings.Join(brand.Competitors, ", ") + "\n")
	}

	return b.String()
}
