// Package briefs turns the merged optimization-provider response into a
// persisted ContentBrief and serves it to the pipeline, cache first.
package briefs

import (
	"sort"
	"strings"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
)

// ParseBrief maps the merged multi-step provider response onto brief fields.
// The provider's sub-shapes drifted over time, so every field tolerates both
// the flat and the object-wrapped form and missing keys fall back to zero
// values rather than failing the parse.
func ParseBrief(merged map[string]any, keyword string) *models.ContentBrief {
	brief := &models.ContentBrief{
		Keyword:     keyword,
		RawResponse: models.JSONMap(merged),
	}

	brief.LSITerms = parseLSITerms(merged["lsaPhrases"])
	brief.RelatedSearches = parseRelatedSearches(merged)
	brief.Competitors = parseCompetitors(merged["competitors"])
	brief.RelatedQuestions = parseRelatedQuestions(merged["relatedQuestions"])
	brief.HeadingTargets = parseHeadingTargets(merged)
	brief.KeywordTargets = parseKeywordTargets(merged)
	brief.WordCountTarget, brief.WordCountMin, brief.WordCountMax = parseWordCounts(merged, brief.Competitors)
	brief.PageScoreTarget = parsePageScore(merged, brief.Competitors)
	return brief
}

// parseLSITerms takes lsaPhrases entries verbatim; absent counts default to
// zero so the writer prompt can still list the phrase.
func parseLSITerms(v any) models.LSITermList {
	var terms models.LSITermList
	for _, item := range listOf(v) {
		m := mapOf(item)
		phrase := stringOf(m["phrase"])
		if phrase == "" {
			continue
		}
		terms = append(terms, models.LSITerm{
			Phrase:       phrase,
			Weight:       floatOf(m["weight"]),
			AverageCount: floatOf(m["averageCount"]),
			TargetCount:  floatOf(m["targetCount"]),
		})
	}
	return terms
}

// parseRelatedSearches prefers the step-1 variations preserved under the
// internal key; later steps overwrite the variations field with report
// objects that are useless as search strings.
func parseRelatedSearches(merged map[string]any) models.StringList {
	if preserved := stringsOf(merged["_keyword_variations"]); len(preserved) > 0 {
		return preserved
	}
	var searches models.StringList
	for _, item := range listOf(merged["relatedSearches"]) {
		switch v := item.(type) {
		case string:
			if v != "" {
				searches = append(searches, v)
			}
		case map[string]any:
			if q := stringOf(v["query"]); q != "" {
				searches = append(searches, q)
			}
		}
	}
	return searches
}

func parseCompetitors(v any) models.CompetitorList {
	var competitors models.CompetitorList
	for _, item := range listOf(v) {
		m := mapOf(item)
		if m == nil {
			continue
		}
		competitors = append(competitors, models.Competitor{
			URL:       stringOf(m["url"]),
			Title:     stringOf(m["title"]),
			H2Texts:   stringsOf(m["h2Texts"]),
			H3Texts:   stringsOf(m["h3Texts"]),
			PageScore: floatOf(m["pageScore"]),
			WordCount: intOf(m["wordCount"]),
		})
	}
	return competitors
}

func parseRelatedQuestions(v any) models.StringList {
	var questions models.StringList
	for _, item := range listOf(v) {
		switch q := item.(type) {
		case string:
			if q != "" {
				questions = append(questions, q)
			}
		case map[string]any:
			if text := stringOf(q["question"]); text != "" {
				questions = append(questions, text)
			}
		}
	}
	return questions
}

// parseHeadingTargets merges the tailored structure recommendations with the
// report's raw tag counts. Recommendations win; tags are de-duplicated
// case-insensitively so "H2" and "h2" collapse to one target.
func parseHeadingTargets(merged map[string]any) models.HeadingTargets {
	var targets models.HeadingTargets
	seen := make(map[string]bool)

	add := func(v any, source string) {
		m := mapOf(v)
		if m == nil {
			return
		}
		tags := make([]string, 0, len(m))
		for tag := range m {
			tags = append(tags, tag)
		}
		sort.Strings(tags)

		for _, tag := range tags {
			key := strings.ToLower(strings.TrimSpace(tag))
			if key == "" || seen[key] {
				continue
			}
			target := models.HeadingTarget{Tag: key, Source: source}
			if inner := mapOf(m[tag]); inner != nil {
				target.Target = intOf(inner["target"])
				target.Min = intOf(inner["min"])
				target.Max = intOf(inner["max"])
			} else {
				target.Target = intOf(m[tag])
			}
			seen[key] = true
			targets = append(targets, target)
		}
	}

	add(merged["pageStructureRecommendations"], "recommendations")
	add(merged["tagCounts"], "report")
	return targets
}

func parseKeywordTargets(merged map[string]any) models.KeywordTargets {
	var targets models.KeywordTargets
	for _, item := range listOf(merged["keywordPlacements"]) {
		m := mapOf(item)
		signal := stringOf(m["signal"])
		if signal == "" {
			continue
		}
		targets = append(targets, models.KeywordTarget{
			Signal:  signal,
			Target:  intOf(m["target"]),
			Comment: stringOf(m["comment"]),
			Type:    models.KeywordTargetExact,
		})
	}
	for _, item := range listOf(merged["lsiPlacements"]) {
		m := mapOf(item)
		signal := stringOf(m["signal"])
		if signal == "" {
			continue
		}
		targets = append(targets, models.KeywordTarget{
			Signal:  signal,
			Target:  intOf(m["target"]),
			Phrase:  stringOf(m["phrase"]),
			Comment: stringOf(m["comment"]),
			Type:    models.KeywordTargetLSI,
		})
	}
	return targets
}

// parseWordCounts resolves the length targets. Competitor word counts are
// the best signal when present; the report's own competitorsMin/Max dict is
// next; failing both, bracket the target by twenty percent.
func parseWordCounts(merged map[string]any, competitors models.CompetitorList) (target, minWords, maxWords int) {
	wc := merged["wordCount"]
	if m := mapOf(wc); m != nil {
		target = intOf(m["target"])
	} else {
		target = intOf(wc)
	}

	lo, hi := 0, 0
	for _, c := range competitors {
		if c.WordCount <= 0 {
			continue
		}
		if lo == 0 || c.WordCount < lo {
			lo = c.WordCount
		}
		if c.WordCount > hi {
			hi = c.WordCount
		}
	}
	if lo > 0 && hi > 0 {
		return target, lo, hi
	}

	if m := mapOf(wc); m != nil {
		cmin, cmax := intOf(m["competitorsMin"]), intOf(m["competitorsMax"])
		if cmin > 0 && cmax > 0 {
			return target, cmin, cmax
		}
	}

	if target > 0 {
		return target, target * 80 / 100, target * 120 / 100
	}
	return target, 0, 0
}

// parsePageScore takes the top-level score when the report provides one and
// otherwise averages the competitor scores.
func parsePageScore(merged map[string]any, competitors models.CompetitorList) float64 {
	switch v := merged["pageScore"].(type) {
	case map[string]any:
		if f := floatOf(v["target"]); f > 0 {
			return f
		}
	default:
		if f := floatOf(v); f > 0 {
			return f
		}
	}

	var sum float64
	n := 0
	for _, c := range competitors {
		if c.PageScore > 0 {
			sum += c.PageScore
			n++
		}
	}
	if n > 0 {
		return sum / float64(n)
	}
	return 0
}

// JSON coercion helpers. The decoder hands back float64 for every number
// and []any for every array; these keep the call sites readable.

func listOf(v any) []any {
	items, _ := v.([]any)
	return items
}

func mapOf(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func stringOf(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func floatOf(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func intOf(v any) int {
	return int(floatOf(v))
}

func stringsOf(v any) []string {
	var out []string
	for _, item := range listOf(v) {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
