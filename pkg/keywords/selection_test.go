package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickPrimaryHighestVolume(t *testing.T) {
	candidates := []Candidate{
		{Keyword: "running shoes for mud", Volume: 300},
		{Keyword: "trail shoes", Volume: 4400},
		{Keyword: "trail running shoes", Volume: 2900},
	}

	primary, ok := PickPrimary(candidates, nil)
	require.True(t, ok)
	assert.Equal(t, "trail shoes", primary.Keyword)
}

func TestPickPrimaryShorterKeywordWinsTies(t *testing.T) {
	candidates := []Candidate{
		{Keyword: "lightweight trail shoes", Volume: 1000},
		{Keyword: "trail shoes", Volume: 1000},
	}

	primary, ok := PickPrimary(candidates, nil)
	require.True(t, ok)
	assert.Equal(t, "trail shoes", primary.Keyword)
}

func TestPickPrimaryExclusionIsCaseInsensitive(t *testing.T) {
	candidates := []Candidate{
		{Keyword: "Trail Shoes", Volume: 4400},
		{Keyword: "road shoes", Volume: 900},
	}

	primary, ok := PickPrimary(candidates, []string{"trail  shoes"})
	require.True(t, ok)
	assert.Equal(t, "road shoes", primary.Keyword)
}

func TestPickPrimaryZeroVolumeFallsBackToInputOrder(t *testing.T) {
	candidates := []Candidate{
		{Keyword: "first candidate", Volume: 0},
		{Keyword: "shorter", Volume: 0},
	}

	primary, ok := PickPrimary(candidates, nil)
	require.True(t, ok)
	assert.Equal(t, "first candidate", primary.Keyword, "fallback keeps input order, not sort order")
}

func TestPickPrimaryAllExcluded(t *testing.T) {
	candidates := []Candidate{{Keyword: "trail shoes", Volume: 100}}

	_, ok := PickPrimary(candidates, []string{"trail shoes"})
	assert.False(t, ok)
}

func TestPickSecondaryMixesSpecificAndBroader(t *testing.T) {
	specific := []Candidate{
		{Keyword: "waterproof trail shoes", Volume: 500},
		{Keyword: "trail shoes for mud", Volume: 700},
		{Keyword: "grippy trail shoes", Volume: 200},
		{Keyword: "zero volume specific", Volume: 0},
	}
	universe := []Candidate{
		{Keyword: "running shoes", Volume: 40000},
		{Keyword: "hiking boots", Volume: 9000},
		{Keyword: "niche keyword", Volume: 50}, // below threshold
		{Keyword: "trail shoes for mud", Volume: 700},
	}

	picked := PickSecondary("trail shoes", specific, universe, nil, DefaultSecondaryConfig())
	require.Len(t, picked, 5)

	keywords := make([]string, len(picked))
	for i, c := range picked {
		keywords[i] = c.Keyword
	}
	// Three best specifics by volume, then the two broad winners.
	assert.Equal(t, []string{
		"trail shoes for mud",
		"waterproof trail shoes",
		"grippy trail shoes",
		"running shoes",
		"hiking boots",
	}, keywords)
}

func TestPickSecondaryBroaderRespectsThreshold(t *testing.T) {
	universe := []Candidate{
		{Keyword: "almost broad", Volume: 999},
		{Keyword: "properly broad", Volume: 1000},
	}

	picked := PickSecondary("primary kw", nil, universe, nil, DefaultSecondaryConfig())
	require.Len(t, picked, 1)
	assert.Equal(t, "properly broad", picked[0].Keyword)
}

func TestPickSecondaryFillsFromLeftoverSpecifics(t *testing.T) {
	specific := []Candidate{
		{Keyword: "specific one", Volume: 900},
		{Keyword: "specific two", Volume: 800},
		{Keyword: "specific three", Volume: 700},
		{Keyword: "specific four", Volume: 600},
		{Keyword: "specific five", Volume: 500},
	}

	// No broader universe at all: the five slots fill from specifics.
	picked := PickSecondary("primary kw", specific, nil, nil, DefaultSecondaryConfig())
	require.Len(t, picked, 5)
	assert.Equal(t, "specific four", picked[3].Keyword)
	assert.Equal(t, "specific five", picked[4].Keyword)
}

func TestPickSecondaryExcludesPrimaryAndUsed(t *testing.T) {
	specific := []Candidate{
		{Keyword: "Trail Shoes", Volume: 4400}, // the primary, case-insensitively
		{Keyword: "used elsewhere", Volume: 2000},
		{Keyword: "fresh keyword", Volume: 100},
	}

	picked := PickSecondary("trail shoes", specific, nil, []string{"used elsewhere"}, DefaultSecondaryConfig())
	require.Len(t, picked, 1)
	assert.Equal(t, "fresh keyword", picked[0].Keyword)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "trail shoes", Normalize("  Trail   SHOES "))
	assert.Equal(t, "", Normalize("   "))
}
