package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 1.0, Jaccard([]string{"a", "b"}, []string{"B", "A"}), 0.001)
	assert.InDelta(t, 1.0/3.0, Jaccard([]string{"a", "b"}, []string{"b", "c"}), 0.001)
	assert.InDelta(t, 0.0, Jaccard([]string{"a"}, []string{"b"}), 0.001)
	assert.InDelta(t, 0.0, Jaccard(nil, nil), 0.001)
	assert.InDelta(t, 0.0, Jaccard([]string{"a"}, nil), 0.001)
}

func TestRelatedCollectionsRanking(t *testing.T) {
	source := []string{"trail", "running", "footwear"}
	candidates := []Collection{
		{ID: "1", Name: "Road Running", Labels: []string{"road", "running", "footwear"}},
		{ID: "2", Name: "Trail Running", Labels: []string{"trail", "running", "footwear"}},
		{ID: "3", Name: "Apparel", Labels: []string{"apparel", "tops"}},
		{ID: "4", Name: "Hiking", Labels: []string{"trail", "hiking"}},
	}

	ranked := RelatedCollections(source, candidates, 0.2, 0)
	require.Len(t, ranked, 3)
	assert.Equal(t, "2", ranked[0].Collection.ID)
	assert.InDelta(t, 1.0, ranked[0].Score, 0.001)
	assert.Equal(t, "1", ranked[1].Collection.ID)
	assert.Equal(t, "4", ranked[2].Collection.ID)
}

func TestRelatedCollectionsLimit(t *testing.T) {
	source := []string{"a"}
	candidates := []Collection{
		{ID: "1", Labels: []string{"a", "b"}},
		{ID: "2", Labels: []string{"a"}},
		{ID: "3", Labels: []string{"a", "c"}},
	}

	ranked := RelatedCollections(source, candidates, 0, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "2", ranked[0].Collection.ID, "exact match first")
}

func TestClusterCollectionsGreedy(t *testing.T) {
	collections := []Collection{
		{ID: "1", Labels: []string{"trail", "running"}},
		{ID: "2", Labels: []string{"trail", "running", "shoes"}},
		{ID: "3", Labels: []string{"apparel", "tops"}},
		{ID: "4", Labels: []string{"apparel", "tops", "shirts"}},
		{ID: "5", Labels: []string{"gift cards"}},
	}

	clusters := ClusterCollections(collections, 0.5)
	require.Len(t, clusters, 3)
	assert.Len(t, clusters[0], 2)
	assert.Equal(t, "1", clusters[0][0].ID)
	assert.Equal(t, "2", clusters[0][1].ID)
	assert.Len(t, clusters[1], 2)
	assert.Len(t, clusters[2], 1)
}
