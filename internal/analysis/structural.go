package analysis

import (
	"github.com/Benny93/fanout-go/internal/graph"
)

// Hub and orphan thresholds.
const (
	HubMinOutDegree    = 5
	HubMinDepth        = 0.7
	OrphanMaxOutDegree = 2
)

// ScoreEntry is the structural score of one content node. It lives in a
// side table and never on the node itself.
type ScoreEntry struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	DepthScore    float64 `json:"depth_score"`
	WordCount     int     `json:"word_count"`
	InternalLinks int     `json:"internal_links"`
	Backlinks     int     `json:"backlinks"`
}

// IsHub reports whether the entry links out widely and is deep.
func (s ScoreEntry) IsHub() bool {
	return s.InternalLinks > HubMinOutDegree && s.DepthScore > HubMinDepth
}

// IsOrphan reports whether nothing links to the entry and it links out
// to fewer than two nodes.
func (s ScoreEntry) IsOrphan() bool {
	return s.Backlinks == 0 && s.InternalLinks < OrphanMaxOutDegree
}

// StructuralReport is the result of Analyze.
type StructuralReport struct {
	// Scores maps content node ID to its score.
	Scores map[string]ScoreEntry `json:"content_scores"`

	// Order lists the scored IDs in graph insertion order.
	Order []string `json:"-"`

	Hubs     []ScoreEntry `json:"hub_potential"`
	Orphans  []ScoreEntry `json:"orphan_content"`
	Clusters []Cluster    `json:"semantic_clusters"`
}

// Entries returns the scores in graph insertion order.
func (r *StructuralReport) Entries() []ScoreEntry {
	out := make([]ScoreEntry, 0, len(r.Order))
	for _, id := range r.Order {
		out = append(out, r.Scores[id])
	}
	return out
}

// Analyze scores every content node and classifies hubs and orphans.
// Degrees count edges of every kind, read from the graph's adjacency.
// Clusters are left empty; see Clusterer.
func Analyze(g *graph.ContentGraph) *StructuralReport {
	report := &StructuralReport{
		Scores:   make(map[string]ScoreEntry),
		Hubs:     []ScoreEntry{},
		Orphans:  []ScoreEntry{},
		Clusters: []Cluster{},
	}

	for _, node := range g.ContentNodes() {
		words := WordCount(node.BodyText)
		entry := ScoreEntry{
			ID:            node.ID,
			Title:         node.Title,
			URL:           node.URL,
			DepthScore:    DepthScore(node.RawBody, words),
			WordCount:     words,
			InternalLinks: g.OutDegree(node.ID),
			Backlinks:     g.InDegree(node.ID),
		}
		report.Scores[node.ID] = entry
		report.Order = append(report.Order, node.ID)
	}

	for _, entry := range report.Entries() {
		if entry.IsHub() {
			report.Hubs = append(report.Hubs, entry)
		}
		if entry.IsOrphan() {
			report.Orphans = append(report.Orphans, entry)
		}
	}

	return report
}
