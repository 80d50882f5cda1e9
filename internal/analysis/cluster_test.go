package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Benny93/fanout-go/internal/graph"
)

func textGraph(texts map[string]string, order ...string) *graph.ContentGraph {
	g := graph.NewContentGraph()
	for _, id := range order {
		g.AddContent(&graph.ContentNode{ID: id, Kind: graph.KindPost, BodyText: texts[id]})
	}
	return g
}

func TestClusterer(t *testing.T) {
	t.Parallel()

	t.Run("GroupsSimilarContent", func(t *testing.T) {
		t.Parallel()

		g := textGraph(map[string]string{
			"go1":   "golang concurrency channels goroutines",
			"go2":   "golang channels goroutines select",
			"bake1": "baking bread sourdough flour",
			"bake2": "sourdough bread starter flour",
			"space": "astronomy telescope stars",
		}, "go1", "bake1", "go2", "space", "bake2")

		clusters := NewClusterer().Cluster(g)
		require.Len(t, clusters, 2)

		assert.Equal(t, "go1", clusters[0].CenterID)
		require.Len(t, clusters[0].Members, 2)
		assert.Equal(t, "go1", clusters[0].Members[0].ID)
		assert.InDelta(t, 1.0, clusters[0].Members[0].Similarity, 1e-9)
		assert.Equal(t, "go2", clusters[0].Members[1].ID)
		assert.Equal(t, []string{"concurrency", "channels", "golang", "goroutines"}, clusters[0].ThemeTerms)

		assert.Equal(t, "bake1", clusters[1].CenterID)
		assert.Equal(t, "bake2", clusters[1].Members[1].ID)
	})

	t.Run("VisitedNodesNeverJoinLaterClusters", func(t *testing.T) {
		t.Parallel()

		// b is similar to both a and c, which share nothing.
		g := textGraph(map[string]string{
			"a": "alpha beta",
			"b": "beta gamma",
			"c": "gamma delta",
		}, "a", "b", "c")

		clusters := NewClusterer().Cluster(g)
		require.Len(t, clusters, 1)
		assert.Equal(t, "a", clusters[0].CenterID)
		assert.Equal(t, []Member{
			{ID: "a", Similarity: clusters[0].Members[0].Similarity},
			{ID: "b", Similarity: clusters[0].Members[1].Similarity},
		}, clusters[0].Members)
	})

	t.Run("MembershipClosure", func(t *testing.T) {
		t.Parallel()

		texts := map[string]string{
			"n1": "search engine optimization keyword research",
			"n2": "keyword research tools for search",
			"n3": "link building outreach strategy",
			"n4": "outreach emails for link building",
			"n5": "search engine ranking factors",
			"n6": "content strategy and link outreach",
			"n7": "keyword difficulty and search volume",
		}
		order := []string{"n1", "n2", "n3", "n4", "n5", "n6", "n7"}
		g := textGraph(texts, order...)

		clusters := NewClusterer().Cluster(g)
		require.NotEmpty(t, clusters)

		seen := make(map[string]string)
		for _, c := range clusters {
			assert.Greater(t, len(c.Members), 1)
			assert.LessOrEqual(t, len(c.ThemeTerms), DefaultThemeTerms)
			for _, m := range c.Members {
				assert.Greater(t, m.Similarity, DefaultSimilarityThreshold)
				assert.LessOrEqual(t, m.Similarity, 1.0+1e-9)
				prev, dup := seen[m.ID]
				assert.False(t, dup, "%s in clusters %s and %s", m.ID, prev, c.CenterID)
				seen[m.ID] = c.CenterID
			}
		}
	})

	t.Run("EmptyCorpus", func(t *testing.T) {
		t.Parallel()

		g := graph.NewContentGraph()
		g.AddContent(&graph.ContentNode{ID: "1", Kind: graph.KindPost})
		g.AddTaxonomy(&graph.TaxonomyNode{ID: "cat_1", Kind: graph.KindCategory, Name: "News"})

		clusters := NewClusterer().Cluster(g)
		assert.NotNil(t, clusters)
		assert.Empty(t, clusters)
	})

	t.Run("SingleDocument", func(t *testing.T) {
		t.Parallel()

		g := textGraph(map[string]string{"only": "lonely document text"}, "only")
		assert.Empty(t, NewClusterer().Cluster(g))
	})

	t.Run("StopWordsOnlyLogsWarning", func(t *testing.T) {
		t.Parallel()

		core, logs := observer.New(zapcore.WarnLevel)
		g := textGraph(map[string]string{"1": "the and of", "2": "a an the"}, "1", "2")

		clusters := NewClusterer(WithClusterLogger(zap.New(core))).Cluster(g)
		assert.Empty(t, clusters)
		assert.Equal(t, 1, logs.FilterMessage("semantic clustering skipped").Len())
	})

	t.Run("ThresholdOption", func(t *testing.T) {
		t.Parallel()

		g := textGraph(map[string]string{
			"a": "alpha beta",
			"b": "beta gamma",
		}, "a", "b")

		assert.Len(t, NewClusterer().Cluster(g), 1)
		assert.Empty(t, NewClusterer(WithThreshold(0.99)).Cluster(g))
	})
}
