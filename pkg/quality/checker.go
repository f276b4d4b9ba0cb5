// Package quality implements the deterministic rule engine that inspects
// generated page content before it is surfaced for review. Every rule is a
// pure function of the content and the project's brand schema; running the
// checker twice over the same inputs yields the same issues.
package quality

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
)

// Issue types reported by the checker.
const (
	IssueTier1Word      = "tier1_ai_word"
	IssueBannedPhrase   = "banned_phrase"
	IssueWordCountLow   = "word_count_below_min"
	IssueWordCountHigh  = "word_count_above_max"
	IssueUnbalancedHTML = "unbalanced_html"
)

// Issue describes one rule violation found in the content.
type Issue struct {
	Type    string `json:"type"`
	Field   string `json:"field"`
	Excerpt string `json:"excerpt"`
	RuleID  string `json:"rule_id"`
}

// Results is the checker verdict persisted into a page's qa_results blob.
type Results struct {
	Passed    bool      `json:"passed"`
	Issues    []Issue   `json:"issues"`
	CheckedAt time.Time `json:"checked_at"`
}

// ToMap converts the verdict into the JSON blob shape stored on the row and
// read back by the status endpoint.
func (r Results) ToMap() models.JSONMap {
	issues := make([]any, 0, len(r.Issues))
	for _, issue := range r.Issues {
		issues = append(issues, map[string]any{
			"type":    issue.Type,
			"field":   issue.Field,
			"excerpt": issue.Excerpt,
			"rule_id": issue.RuleID,
		})
	}
	return models.JSONMap{
		"passed":     r.Passed,
		"issues":     issues,
		"checked_at": r.CheckedAt.UTC().Format(time.RFC3339),
	}
}

// Checker evaluates the QA rules. It is stateless apart from the compiled
// trope patterns and safe for concurrent use.
type Checker struct {
	tropes []tropePattern
}

// NewChecker builds a checker with the default tier-1 word list compiled.
func NewChecker() *Checker {
	return &Checker{tropes: compileTropes(Tier1Words)}
}

// Check runs every rule over the four content fields, writes the verdict
// into content.QAResults, and returns it. Issues are emitted in a fixed
// order so repeated runs are comparable; only CheckedAt differs.
func (c *Checker) Check(content *models.PageContent, schema models.BrandSchema) Results {
	var issues []Issue
	issues = append(issues, c.tropeIssues(content)...)
	issues = append(issues, bannedPhraseIssues(content, schema.Vocabulary.Banned)...)
	issues = append(issues, wordBoundIssues(content, schema.WordCount.Min, schema.WordCount.Max)...)
	issues = append(issues, tagBalanceIssues(content)...)

	results := Results{
		Passed:    len(issues) == 0,
		Issues:    issues,
		CheckedAt: time.Now().UTC(),
	}
	content.QAResults = results.ToMap()
	return results
}

func (c *Checker) tropeIssues(content *models.PageContent) []Issue {
	var issues []Issue
	for _, field := range content.ContentFields() {
		text := models.StripHTML(field.Text)
		for _, trope := range c.tropes {
			for _, loc := range trope.re.FindAllStringIndex(text, -1) {
				issues = append(issues, Issue{
					Type:    IssueTier1Word,
					Field:   field.Name,
					Excerpt: excerptAround(text, loc[0], loc[1]),
					RuleID:  "tier1:" + trope.word,
				})
			}
		}
	}
	return issues
}

func bannedPhraseIssues(content *models.PageContent, banned []string) []Issue {
	var issues []Issue
	for _, phrase := range banned {
		re, ok := phrasePattern(phrase)
		if !ok {
			continue
		}
		key := strings.ToLower(strings.Join(strings.Fields(phrase), " "))
		for _, field := range content.ContentFields() {
			text := models.StripHTML(field.Text)
			for _, loc := range re.FindAllStringIndex(text, -1) {
				issues = append(issues, Issue{
					Type:    IssueBannedPhrase,
					Field:   field.Name,
					Excerpt: excerptAround(text, loc[0], loc[1]),
					RuleID:  "banned:" + key,
				})
			}
		}
	}
	return issues
}

func wordBoundIssues(content *models.PageContent, minWords, maxWords int) []Issue {
	total := content.TotalWordCount()
	var issues []Issue
	if minWords > 0 && total < minWords {
		issues = append(issues, Issue{
			Type:    IssueWordCountLow,
			Excerpt: fmt.Sprintf("%d words, brand minimum is %d", total, minWords),
			RuleID:  "word_count:min",
		})
	}
	if maxWords > 0 && total > maxWords {
		issues = append(issues, Issue{
			Type:    IssueWordCountHigh,
			Excerpt: fmt.Sprintf("%d words, brand maximum is %d", total, maxWords),
			RuleID:  "word_count:max",
		})
	}
	return issues
}

// tagBalanceIssues checks the two HTML-bearing description fields. The
// title and meta description are plain text and are not inspected.
func tagBalanceIssues(content *models.PageContent) []Issue {
	fields := []models.ContentField{
		{Name: "top_description", Text: content.TopDescription},
		{Name: "bottom_description", Text: content.BottomDescription},
	}
	var issues []Issue
	for _, field := range fields {
		for _, tag := range unbalancedTags(field.Text) {
			issues = append(issues, Issue{
				Type:    IssueUnbalancedHTML,
				Field:   field.Name,
				Excerpt: fmt.Sprintf("<%s> has %d opening and %d closing tags", tag.name, tag.opens, tag.closes),
				RuleID:  "html:tag_balance",
			})
		}
	}
	return issues
}

var tagPattern = regexp.MustCompile(`<\s*(/?)\s*([a-zA-Z][a-zA-Z0-9-]*)[^>]*?(/?)\s*>`)

// Void elements never take a closing tag and are exempt from balancing.
var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

type tagBalance struct {
	name   string
	opens  int
	closes int
}

func unbalancedTags(s string) []tagBalance {
	opens := make(map[string]int)
	closes := make(map[string]int)
	for _, m := range tagPattern.FindAllStringSubmatch(s, -1) {
		name := strings.ToLower(m[2])
		if voidTags[name] {
			continue
		}
		switch {
		case m[1] == "/":
			closes[name]++
		case m[3] == "/":
			// self-closing, balanced by construction
		default:
			opens[name]++
		}
	}

	seen := make(map[string]bool)
	var bad []tagBalance
	for name, n := range opens {
		if n != closes[name] {
			bad = append(bad, tagBalance{name: name, opens: n, closes: closes[name]})
			seen[name] = true
		}
	}
	for name, n := range closes {
		if !seen[name] && opens[name] != n {
			bad = append(bad, tagBalance{name: name, opens: opens[name], closes: n})
		}
	}
	sort.Slice(bad, func(i, j int) bool { return bad[i].name < bad[j].name })
	return bad
}

// phrasePattern compiles a banned phrase into a case-insensitive,
// word-bounded matcher tolerant of whitespace variations inside the phrase.
func phrasePattern(phrase string) (*regexp.Regexp, bool) {
	parts := strings.Fields(phrase)
	if len(parts) == 0 {
		return nil, false
	}
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)\b` + strings.Join(quoted, `\s+`) + `\b`), true
}

const excerptRadius = 40

// excerptAround returns the matched span with surrounding context, clipped
// to rune boundaries.
func excerptAround(text string, start, end int) string {
	lo := start - excerptRadius
	if lo < 0 {
		lo = 0
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	hi := end + excerptRadius
	if hi > len(text) {
		hi = len(text)
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}

	out := strings.TrimSpace(text[lo:hi])
	if lo > 0 {
		out = "..." + out
	}
	if hi < len(text) {
		out += "..."
	}
	return out
}
