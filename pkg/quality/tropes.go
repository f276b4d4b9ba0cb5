package quality

import "regexp"

// Tier1Words are flagged wherever they appear in generated copy. The list
// doubles as the avoid-list handed to the writer prompt, so additions here
// both tighten the check and steer generation away from the word.
var Tier1Words = []string{
	"delve",
	"unleash",
	"harness",
	"realm",
	"game-changer",
	"navigate",
	"landscape",
	"unlock",
	"elevate",
	"embark",
	"tapestry",
	"testament",
	"synergy",
	"paradigm",
}

type tropePattern struct {
	word string
	re   *regexp.Regexp
}

func compileTropes(words []string) []tropePattern {
	patterns := make([]tropePattern, 0, len(words))
	for _, word := range words {
		patterns = append(patterns, tropePattern{
			word: word,
			re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`),
		})
	}
	return patterns
}
