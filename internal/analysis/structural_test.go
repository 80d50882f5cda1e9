package analysis

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/fanout-go/internal/graph"
)

func richMarkup() string {
	return strings.Repeat("<h2>s</h2>", 4) +
		`<img src="x"><ul><li>a</li></ul><div itemtype="Article">` +
		strings.Repeat("word ", 2100)
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	t.Run("ClassifiesHubsAndOrphans", func(t *testing.T) {
		t.Parallel()

		g := graph.NewContentGraph()
		body := richMarkup()
		g.AddContent(&graph.ContentNode{ID: "hub", Kind: graph.KindPost, RawBody: body, BodyText: strings.Repeat("word ", 2100)})
		for i := 0; i < 6; i++ {
			id := fmt.Sprintf("t%d", i)
			g.AddContent(&graph.ContentNode{ID: id, Kind: graph.KindPost})
			require.True(t, g.AddEdge(graph.Edge{Source: "hub", Target: id, Kind: graph.EdgeInternalLink}))
		}
		g.AddContent(&graph.ContentNode{ID: "alone", Kind: graph.KindPage})
		g.AddTaxonomy(&graph.TaxonomyNode{ID: "cat_1", Kind: graph.KindCategory, Name: "News"})

		report := Analyze(g)

		require.Len(t, report.Scores, 8)
		assert.NotContains(t, report.Scores, "cat_1")

		hub := report.Scores["hub"]
		assert.InDelta(t, 0.9, hub.DepthScore, 1e-9)
		assert.Equal(t, 6, hub.InternalLinks)
		assert.Equal(t, 0, hub.Backlinks)
		assert.Equal(t, 2100, hub.WordCount)

		require.Len(t, report.Hubs, 1)
		assert.Equal(t, "hub", report.Hubs[0].ID)

		require.Len(t, report.Orphans, 1)
		assert.Equal(t, "alone", report.Orphans[0].ID)
	})

	t.Run("KeepsInsertionOrder", func(t *testing.T) {
		t.Parallel()

		g := graph.NewContentGraph()
		for _, id := range []string{"c", "a", "b"} {
			g.AddContent(&graph.ContentNode{ID: id, Kind: graph.KindPost})
		}

		report := Analyze(g)
		assert.Equal(t, []string{"c", "a", "b"}, report.Order)

		var orphanIDs []string
		for _, o := range report.Orphans {
			orphanIDs = append(orphanIDs, o.ID)
		}
		assert.Equal(t, []string{"c", "a", "b"}, orphanIDs)
	})

	t.Run("TaxonomyEdgesCountTowardDegree", func(t *testing.T) {
		t.Parallel()

		g := graph.NewContentGraph()
		g.AddContent(&graph.ContentNode{ID: "p", Kind: graph.KindPost})
		g.AddTaxonomy(&graph.TaxonomyNode{ID: "cat_1", Kind: graph.KindCategory})
		g.AddTaxonomy(&graph.TaxonomyNode{ID: "tag_1", Kind: graph.KindTag})
		g.AddEdge(graph.Edge{Source: "p", Target: "cat_1", Kind: graph.EdgeCategorizedAs})
		g.AddEdge(graph.Edge{Source: "p", Target: "tag_1", Kind: graph.EdgeTaggedAs})

		report := Analyze(g)
		assert.Equal(t, 2, report.Scores["p"].InternalLinks)
		assert.Empty(t, report.Orphans)
	})

	t.Run("EmptyGraph", func(t *testing.T) {
		t.Parallel()

		report := Analyze(graph.NewContentGraph())
		assert.Empty(t, report.Scores)
		assert.NotNil(t, report.Hubs)
		assert.NotNil(t, report.Orphans)
	})
}

func TestHubOrphanDisjoint(t *testing.T) {
	t.Parallel()

	for out := 0; out <= 10; out++ {
		for in := 0; in <= 3; in++ {
			for _, depth := range []float64{0, 0.5, 0.7, 0.8, 1.0} {
				s := ScoreEntry{InternalLinks: out, Backlinks: in, DepthScore: depth}
				assert.False(t, s.IsHub() && s.IsOrphan(), "out=%d in=%d depth=%v", out, in, depth)
			}
		}
	}
}

func TestScoreEntryBoundaries(t *testing.T) {
	t.Parallel()

	assert.False(t, ScoreEntry{InternalLinks: 5, DepthScore: 1}.IsHub())
	assert.False(t, ScoreEntry{InternalLinks: 6, DepthScore: 0.7}.IsHub())
	assert.True(t, ScoreEntry{InternalLinks: 6, DepthScore: 0.8}.IsHub())

	assert.True(t, ScoreEntry{InternalLinks: 1}.IsOrphan())
	assert.False(t, ScoreEntry{InternalLinks: 2}.IsOrphan())
	assert.False(t, ScoreEntry{Backlinks: 1}.IsOrphan())
}
