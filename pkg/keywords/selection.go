// Package keywords owns keyword targeting for collection pages: the pure
// selection algorithms (primary-keyword picking, the five-slot secondary
// mix, Jaccard-based collection ranking) and the research service that feeds
// them volume data and persists the resulting assignments.
package keywords

import (
	"cmp"
	"slices"
	"strings"
)

// secondarySlots is the total size of the secondary-keyword mix.
const secondarySlots = 5

// Candidate is one keyword with its research metrics.
type Candidate struct {
	Keyword     string
	Volume      int
	CPC         float64
	Competition float64
}

// SecondaryConfig tunes the secondary mix. Broader keywords must clear
// BroaderVolumeThreshold to be worth a slot.
type SecondaryConfig struct {
	MinSpecific            int
	MaxSpecific            int
	MinBroader             int
	MaxBroader             int
	BroaderVolumeThreshold int
}

// DefaultSecondaryConfig is the standard 3-specific / 2-broader split.
func DefaultSecondaryConfig() SecondaryConfig {
	return SecondaryConfig{
		MinSpecific:            1,
		MaxSpecific:            3,
		MinBroader:             1,
		MaxBroader:             2,
		BroaderVolumeThreshold: 1000,
	}
}

// Normalize lowercases a keyword and collapses internal whitespace. All
// keyword comparisons in this package go through it.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// PickPrimary selects the primary keyword for a collection: highest volume
// first, shorter keyword on ties, excluding keywords already used as
// primaries elsewhere. When no candidate has positive volume it falls back
// to the first unexcluded candidate in input order. Returns false when every
// candidate is excluded.
func PickPrimary(candidates []Candidate, usedPrimaries []string) (Candidate, bool) {
	used := normalizeSet(usedPrimaries)

	var unexcluded []Candidate
	for _, c := range candidates {
		if used[Normalize(c.Keyword)] {
			continue
		}
		unexcluded = append(unexcluded, c)
	}
	if len(unexcluded) == 0 {
		return Candidate{}, false
	}

	positive := make([]Candidate, 0, len(unexcluded))
	for _, c := range unexcluded {
		if c.Volume > 0 {
			positive = append(positive, c)
		}
	}
	if len(positive) == 0 {
		return unexcluded[0], true
	}
	sortByVolumeThenLength(positive)
	return positive[0], true
}

// PickSecondary builds the secondary mix for a primary keyword: specific
// candidates first, then broader high-volume keywords from the universe,
// then leftover specifics to fill the five slots.
func PickSecondary(primary string, specific, universe []Candidate, usedPrimaries []string, cfg SecondaryConfig) []Candidate {
	excluded := normalizeSet(usedPrimaries)
	excluded[Normalize(primary)] = true

	specificSet := make(map[string]bool, len(specific))
	for _, c := range specific {
		specificSet[Normalize(c.Keyword)] = true
	}

	// Step 1: positive-volume specifics, best first.
	var pool []Candidate
	seen := map[string]bool{}
	for _, c := range specific {
		n := Normalize(c.Keyword)
		if excluded[n] || seen[n] || c.Volume <= 0 {
			continue
		}
		seen[n] = true
		pool = append(pool, c)
	}
	sortByVolumeThenLength(pool)

	specificTaken := min(cfg.MaxSpecific, len(pool))
	picked := slices.Clone(pool[:specificTaken])
	pickedSet := make(map[string]bool, secondarySlots)
	for _, c := range picked {
		pickedSet[Normalize(c.Keyword)] = true
	}

	// Step 2: broader keywords from the universe. Anything in the specific
	// set stays out; broader means a different, higher-volume angle.
	remaining := secondarySlots - len(picked)
	var broader []Candidate
	for _, c := range universe {
		n := Normalize(c.Keyword)
		if excluded[n] || pickedSet[n] || specificSet[n] {
			continue
		}
		if c.Volume < cfg.BroaderVolumeThreshold {
			continue
		}
		broader = append(broader, c)
	}
	sortByVolumeThenLength(broader)

	take := min(cfg.MaxBroader, remaining)
	take = min(take, len(broader))
	for _, c := range broader[:take] {
		picked = append(picked, c)
		pickedSet[Normalize(c.Keyword)] = true
	}

	// Step 3: still short of five slots, fill from leftover specifics.
	for _, c := range pool[specificTaken:] {
		if len(picked) >= secondarySlots {
			break
		}
		n := Normalize(c.Keyword)
		if pickedSet[n] {
			continue
		}
		picked = append(picked, c)
		pickedSet[n] = true
	}

	return picked
}

func sortByVolumeThenLength(cs []Candidate) {
	slices.SortStableFunc(cs, func(a, b Candidate) int {
		if c := cmp.Compare(b.Volume, a.Volume); c != 0 {
			return c
		}
		return cmp.Compare(len(a.Keyword), len(b.Keyword))
	})
}

func normalizeSet(keywords []string) map[string]bool {
	set := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		set[Normalize(k)] = true
	}
	return set
}
