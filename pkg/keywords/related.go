package keywords

import (
	"cmp"
	"slices"
)

// Collection is a labeled group of pages, compared by label overlap.
type Collection struct {
	ID     string
	Name   string
	Labels []string
}

// RelatedCollection is one ranked candidate with its similarity score.
type RelatedCollection struct {
	Collection Collection
	Score      float64
}

// Jaccard computes |A∩B| / |A∪B| over normalized label sets. Two empty sets
// score zero, not one; an unlabeled collection is related to nothing.
func Jaccard(a, b []string) float64 {
	setA := normalizeSet(a)
	setB := normalizeSet(b)

	intersection := 0
	for label := range setA {
		if setB[label] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// RelatedCollections ranks candidates against the source label set:
// threshold filter, descending score, stable on ties, truncated to limit
// (limit <= 0 means unlimited).
func RelatedCollections(source []string, candidates []Collection, threshold float64, limit int) []RelatedCollection {
	var ranked []RelatedCollection
	for _, c := range candidates {
		score := Jaccard(source, c.Labels)
		if score >= threshold && score > 0 {
			ranked = append(ranked, RelatedCollection{Collection: c, Score: score})
		}
	}
	slices.SortStableFunc(ranked, func(a, b RelatedCollection) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// ClusterCollections groups collections greedily in a single pass: a
// collection joins the first cluster containing any member it matches at or
// above clusterThreshold, else it starts its own.
func ClusterCollections(collections []Collection, clusterThreshold float64) [][]Collection {
	var clusters [][]Collection
next:
	for _, c := range collections {
		for i, cluster := range clusters {
			for _, member := range cluster {
				if Jaccard(c.Labels, member.Labels) >= clusterThreshold {
					clusters[i] = append(clusters[i], c)
					continue next
				}
			}
		}
		clusters = append(clusters, []Collection{c})
	}
	return clusters
}
