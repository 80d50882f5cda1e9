package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/Benny93/fanout-go/internal/analysis"
	"github.com/Benny93/fanout-go/internal/graph"
	"github.com/Benny93/fanout-go/internal/report"
	"github.com/Benny93/fanout-go/internal/storage"
)

func (s *Server) overview(ctx context.Context) (string, error) {
	info, err := s.store.Info(ctx)
	if err != nil {
		if hint, ok := noSnapshot(err); ok {
			return hint, nil
		}
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# Content Graph Overview\n\n")
	fmt.Fprintf(&sb, "**Site:** %s\n", info.SiteURL)
	fmt.Fprintf(&sb, "**Analyzed:** %s\n", info.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&sb, "**Nodes:** %d (%d posts, %d pages, %d categories, %d tags)\n",
		info.Nodes, info.Posts, info.Pages, info.Categories, info.Tags)
	fmt.Fprintf(&sb, "**Edges:** %d\n", info.Edges)

	if !info.HasReport {
		return sb.String(), nil
	}
	rep, err := s.store.LoadReport(ctx)
	if err != nil {
		return "", err
	}
	sum := rep.Summary
	sb.WriteString("\n## Report\n\n")
	fmt.Fprintf(&sb, "- Internal links: %d\n", sum.InternalLinks)
	fmt.Fprintf(&sb, "- Hub pages: %d\n", sum.HubPages)
	fmt.Fprintf(&sb, "- Orphan content: %d\n", sum.OrphanContent)
	fmt.Fprintf(&sb, "- Semantic clusters: %d\n", sum.SemanticClusters)
	fmt.Fprintf(&sb, "- Recommendations: %d\n", len(rep.Recommendations))

	return sb.String(), nil
}

func (s *Server) handleQuery(ctx context.Context, query string, limit int) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "No query provided", nil
	}

	results, err := s.store.Search(ctx, query, limit)
	if err != nil {
		if hint, ok := noSnapshot(err); ok {
			return hint, nil
		}
		return "", err
	}
	if len(results) == 0 {
		return "No results found", nil
	}
	return formatSearchResults(results, query), nil
}

// formatSearchResults formats search results as markdown.
func formatSearchResults(results []storage.SearchResult, query string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results for '%s':\n\n", len(results), query)

	for i, r := range results {
		fmt.Fprintf(&sb, "%d. **%s** (%s, id %s)\n", i+1, r.Title, r.Kind, r.NodeID)
		fmt.Fprintf(&sb, "   URL: %s\n", r.URL)
		fmt.Fprintf(&sb, "   Score: %.3f\n", r.Score)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", truncate(r.Snippet, snippetLimit))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Next: Use `fanout_context` on a node ID for its links.")

	return sb.String()
}

// resolveNode finds a content node by ID, falling back to the best
// search hit for the text.
func (s *Server) resolveNode(ctx context.Context, ref string) (*graph.ContentNode, error) {
	node, err := s.store.GetNode(ctx, ref)
	if err != nil || node != nil {
		return node, err
	}

	results, err := s.store.Search(ctx, ref, 10)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if strings.EqualFold(r.Title, ref) {
			return s.store.GetNode(ctx, r.NodeID)
		}
	}
	if len(results) > 0 {
		return s.store.GetNode(ctx, results[0].NodeID)
	}
	return nil, nil
}

func (s *Server) handleContext(ctx context.Context, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "No node provided", nil
	}

	node, err := s.resolveNode(ctx, ref)
	if err != nil {
		if hint, ok := noSnapshot(err); ok {
			return hint, nil
		}
		return "", err
	}
	if node == nil {
		return fmt.Sprintf("Node '%s' not found in the stored graph", ref), nil
	}

	links, err := s.store.GetLinks(ctx, node.ID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Context for %s: **%s**\n\n", node.Kind, node.Title)
	fmt.Fprintf(&sb, "- ID: %s\n", node.ID)
	fmt.Fprintf(&sb, "- URL: %s\n", node.URL)
	if node.PublishedAt != "" {
		fmt.Fprintf(&sb, "- Published: %s\n", node.PublishedAt)
	}
	if node.ParentID != "" {
		fmt.Fprintf(&sb, "- Parent: %s\n", node.ParentID)
	}
	if node.ExcerptText != "" {
		fmt.Fprintf(&sb, "\n%s\n", truncate(node.ExcerptText, snippetLimit))
	}

	var outLinks, taxonomy []graph.Edge
	for _, e := range links.Outgoing {
		if e.Kind == graph.EdgeInternalLink {
			outLinks = append(outLinks, e)
		} else {
			taxonomy = append(taxonomy, e)
		}
	}

	writeEdges(&sb, "Links to", outLinks, func(e graph.Edge) string { return e.Target })
	writeEdges(&sb, "Linked from", links.Incoming, func(e graph.Edge) string { return e.Source })
	writeEdges(&sb, "Taxonomy", taxonomy, func(e graph.Edge) string { return e.Target })

	if len(links.Incoming) == 0 {
		sb.WriteString("\nNo content links here. Consider adding internal links from related posts.\n")
	}

	return sb.String(), nil
}

func writeEdges(sb *strings.Builder, heading string, edges []graph.Edge, other func(graph.Edge) string) {
	if len(edges) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n## %s (%d)\n", heading, len(edges))
	for _, e := range edges {
		fmt.Fprintf(sb, "- %s (%s)\n", other(e), e.Kind)
	}
}

func hubs(rep *report.Report) []analysis.ScoreEntry {
	if rep.ContentDepth == nil {
		return nil
	}
	return rep.ContentDepth.Hubs
}

func orphans(rep *report.Report) []analysis.ScoreEntry {
	if rep.ContentDepth == nil {
		return nil
	}
	return rep.ContentDepth.Orphans
}

func (s *Server) loadReport(ctx context.Context) (*report.Report, string, error) {
	rep, err := s.store.LoadReport(ctx)
	if err != nil {
		if hint, ok := noSnapshot(err); ok {
			return nil, hint, nil
		}
		return nil, "", err
	}
	return rep, "", nil
}

func (s *Server) handleScores(ctx context.Context, heading string, limit int, pick func(*report.Report) []analysis.ScoreEntry) (string, error) {
	rep, hint, err := s.loadReport(ctx)
	if rep == nil {
		return hint, err
	}

	entries := pick(rep)
	if len(entries) == 0 {
		return fmt.Sprintf("%s: none found.", heading), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s (%d)\n\n", heading, len(entries))
	for i, e := range entries {
		if i >= limit {
			fmt.Fprintf(&sb, "\n... and %d more\n", len(entries)-limit)
			break
		}
		fmt.Fprintf(&sb, "%d. **%s** (id %s)\n", i+1, e.Title, e.ID)
		fmt.Fprintf(&sb, "   URL: %s\n", e.URL)
		fmt.Fprintf(&sb, "   Depth: %.2f, words: %d, links: %d, backlinks: %d\n",
			e.DepthScore, e.WordCount, e.InternalLinks, e.Backlinks)
	}
	return sb.String(), nil
}

func (s *Server) handleClusters(ctx context.Context) (string, error) {
	rep, hint, err := s.loadReport(ctx)
	if rep == nil {
		return hint, err
	}
	if rep.ContentDepth == nil || len(rep.ContentDepth.Clusters) == 0 {
		return "No semantic clusters found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Semantic clusters (%d)\n\n", len(rep.ContentDepth.Clusters))
	for i, c := range rep.ContentDepth.Clusters {
		fmt.Fprintf(&sb, "## %d. %s\n", i+1, strings.Join(c.ThemeTerms, ", "))
		fmt.Fprintf(&sb, "Center: %s\n", c.CenterID)
		for _, m := range c.Members {
			fmt.Fprintf(&sb, "- %s (similarity %.2f)\n", m.ID, m.Similarity)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (s *Server) handleRecommendations(ctx context.Context, priority string) (string, error) {
	rep, hint, err := s.loadReport(ctx)
	if rep == nil {
		return hint, err
	}

	var sb strings.Builder
	count := 0
	for _, rec := range rep.Recommendations {
		if priority != "" && rec.Priority != priority {
			continue
		}
		count++
		fmt.Fprintf(&sb, "%d. [%s] %s: %s\n", count, rec.Priority, rec.Action, rec.Details)
		if rec.URL != "" {
			fmt.Fprintf(&sb, "   URL: %s\n", rec.URL)
		}
		fmt.Fprintf(&sb, "   Impact: %s\n", rec.Impact)
	}
	if count == 0 {
		return "No recommendations.", nil
	}

	plan := rep.ActionPlan
	return fmt.Sprintf("# Recommendations (%d)\n\n%s\nAction plan: %d immediate, %d short term, %d long term.",
		count, sb.String(), len(plan.Immediate), len(plan.ShortTerm), len(plan.LongTerm)), nil
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Content Graph Schema\n\n")
	sb.WriteString("## Node Kinds\n\n")
	sb.WriteString("| Kind | ID form | Key Properties |\n")
	sb.WriteString("|------|---------|----------------|\n")
	sb.WriteString("| `post` | native id | title, url, body, excerpt, categories, tags |\n")
	sb.WriteString("| `page` | `page_<id>` | title, url, body, parent |\n")
	sb.WriteString("| `category` | `cat_<id>` | name, slug |\n")
	sb.WriteString("| `tag` | `tag_<id>` | name, slug |\n")
	sb.WriteString("\n## Edge Kinds\n\n")
	sb.WriteString("| Kind | Source → Target |\n")
	sb.WriteString("|------|-----------------|\n")
	fmt.Fprintf(&sb, "| `%s` | Content → Content |\n", graph.EdgeInternalLink)
	fmt.Fprintf(&sb, "| `%s` | Post → Category |\n", graph.EdgeCategorizedAs)
	fmt.Fprintf(&sb, "| `%s` | Post → Tag |\n", graph.EdgeTaggedAs)

	return sb.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
