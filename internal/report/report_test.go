package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/fanout-go/internal/analysis"
	"github.com/Benny93/fanout-go/internal/graph"
	"github.com/Benny93/fanout-go/internal/patterns"
)

func entries(prefix string, n int) []analysis.ScoreEntry {
	out := make([]analysis.ScoreEntry, n)
	for i := range out {
		out[i] = analysis.ScoreEntry{
			ID:    fmt.Sprintf("%s%d", prefix, i),
			Title: fmt.Sprintf("%s title %d", prefix, i),
			URL:   fmt.Sprintf("https://example.com/%s%d/", prefix, i),
		}
	}
	return out
}

func testStructure() *analysis.StructuralReport {
	clusters := make([]analysis.Cluster, 4)
	for i := range clusters {
		clusters[i] = analysis.Cluster{CenterID: fmt.Sprint(i), ThemeTerms: []string{"seo", fmt.Sprintf("t%d", i)}}
	}
	return &analysis.StructuralReport{
		Scores:   map[string]analysis.ScoreEntry{},
		Orphans:  entries("orphan", 7),
		Hubs:     entries("hub", 4),
		Clusters: clusters,
	}
}

func TestRecommendations(t *testing.T) {
	t.Parallel()

	t.Run("OrderAndLimits", func(t *testing.T) {
		t.Parallel()

		qp := &patterns.QueryPatterns{Gaps: []string{"gap one", "gap two"}}
		recs := Recommendations(qp, testStructure())

		require.Len(t, recs, 2+5+3+3)

		var types []string
		for _, r := range recs {
			types = append(types, r.Type)
		}
		assert.Equal(t, []string{
			TypeContentGap, TypeContentGap,
			TypeOrphanContent, TypeOrphanContent, TypeOrphanContent, TypeOrphanContent, TypeOrphanContent,
			TypeHubOptimization, TypeHubOptimization, TypeHubOptimization,
			TypeSemanticBridge, TypeSemanticBridge, TypeSemanticBridge,
		}, types)

		assert.Equal(t, Recommendation{
			Type:     TypeContentGap,
			Priority: PriorityHigh,
			Action:   "Create new content",
			Details:  "Create content to answer sub-query: gap one",
			Impact:   "Enables multi-hop reasoning path",
		}, recs[0])

		assert.Equal(t, PriorityMedium, recs[2].Priority)
		assert.Equal(t, "Connect orphan content: orphan title 0", recs[2].Details)
		assert.Equal(t, "https://example.com/orphan0/", recs[2].URL)

		assert.Equal(t, PriorityHigh, recs[7].Priority)
		assert.Equal(t, "Optimize hub potential: hub title 0", recs[7].Details)

		assert.Equal(t, "Link related content in cluster: seo, t0", recs[10].Details)
		assert.Empty(t, recs[10].URL)
	})

	t.Run("NothingToRecommend", func(t *testing.T) {
		t.Parallel()

		recs := Recommendations(patterns.Empty(), &analysis.StructuralReport{})
		assert.NotNil(t, recs)
		assert.Empty(t, recs)
	})
}

func TestBuildActionPlan(t *testing.T) {
	t.Parallel()

	plan := BuildActionPlan([]Recommendation{
		{Priority: PriorityHigh, Action: "a", Details: "d", Impact: "i"},
		{Priority: PriorityMedium, Action: "b"},
		{Priority: PriorityLow, Action: "c"},
		{Priority: "", Action: "e"},
	})

	assert.Equal(t, []Step{{Action: "a", Details: "d", ExpectedImpact: "i"}}, plan.Immediate)
	require.Len(t, plan.ShortTerm, 1)
	assert.Equal(t, "b", plan.ShortTerm[0].Action)
	require.Len(t, plan.LongTerm, 2)
	assert.Equal(t, "e", plan.LongTerm[1].Action)
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	g := graph.NewContentGraph()
	g.AddContent(&graph.ContentNode{ID: "1", Kind: graph.KindPost})
	g.AddContent(&graph.ContentNode{ID: "2", Kind: graph.KindPost})
	g.AddEdge(graph.Edge{Source: "1", Target: "2", Kind: graph.EdgeInternalLink})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rep := Generate(Input{
		SiteURL:    "https://example.com",
		TotalPosts: 3,
		TotalPages: 1,
		Graph:      g,
		Patterns:   &patterns.QueryPatterns{Gaps: []string{"x"}},
		Structure:  testStructure(),
		Now:        now,
	})

	assert.Equal(t, "https://example.com", rep.SiteURL)
	assert.Equal(t, "2026-03-01T12:00:00Z", rep.AnalysisDate)
	assert.Equal(t, Summary{
		TotalPosts:       3,
		TotalPages:       1,
		ContentNodes:     2,
		InternalLinks:    1,
		OrphanContent:    7,
		HubPages:         4,
		SemanticClusters: 4,
	}, rep.Summary)
	assert.Len(t, rep.ActionPlan.Immediate, 1+3)
	assert.Len(t, rep.ActionPlan.ShortTerm, 5+3)
	assert.Empty(t, rep.ActionPlan.LongTerm)

	t.Run("NilInputs", func(t *testing.T) {
		rep := Generate(Input{SiteURL: "https://example.com"})
		assert.NotNil(t, rep.QueryOptimization)
		assert.NotNil(t, rep.ContentDepth)
		assert.Empty(t, rep.Recommendations)
		assert.NotEmpty(t, rep.AnalysisDate)
	})
}

func TestExport(t *testing.T) {
	t.Parallel()

	rep := Generate(Input{
		SiteURL:   "https://example.com",
		Patterns:  &patterns.QueryPatterns{Gaps: []string{"<b>tags</b> & more"}},
		Structure: testStructure(),
		Now:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, rep))

	out := buf.String()
	assert.Contains(t, out, "<b>tags</b> & more")
	assert.Contains(t, out, "\n  \"site_url\": \"https://example.com\"")
	for _, key := range []string{"summary", "query_optimization", "content_depth", "content_scores", "hub_potential", "orphan_content", "semantic_clusters", "recommendations", "action_plan", "short_term"} {
		assert.Contains(t, out, `"`+key+`"`)
	}

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, WriteFile(path, rep))

	loaded, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, rep.Summary, loaded.Summary)
	assert.Equal(t, rep.Recommendations, loaded.Recommendations)
	assert.Equal(t, rep.ActionPlan, loaded.ActionPlan)
	require.Len(t, loaded.ContentDepth.Clusters, 4)
	assert.Equal(t, []string{"seo", "t0"}, loaded.ContentDepth.Clusters[0].ThemeTerms)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
