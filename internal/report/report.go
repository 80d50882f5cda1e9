// Package report assembles analysis results into a prioritized
// optimization report and exports it as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Benny93/fanout-go/internal/analysis"
	"github.com/Benny93/fanout-go/internal/graph"
	"github.com/Benny93/fanout-go/internal/patterns"
)

// Recommendation types.
const (
	TypeContentGap      = "content_gap"
	TypeOrphanContent   = "orphan_content"
	TypeHubOptimization = "hub_optimization"
	TypeSemanticBridge  = "semantic_bridge"
)

// Priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// How many orphans, hubs and clusters produce recommendations.
const (
	maxOrphanRecommendations  = 5
	maxHubRecommendations     = 3
	maxClusterRecommendations = 3
)

// Summary holds headline counts.
type Summary struct {
	TotalPosts       int `json:"total_posts"`
	TotalPages       int `json:"total_pages"`
	ContentNodes     int `json:"content_nodes"`
	InternalLinks    int `json:"internal_links"`
	OrphanContent    int `json:"orphan_content"`
	HubPages         int `json:"hub_pages"`
	SemanticClusters int `json:"semantic_clusters"`
}

// Recommendation is one suggested change.
type Recommendation struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Action   string `json:"action"`
	Details  string `json:"details"`
	URL      string `json:"url,omitempty"`
	Impact   string `json:"impact"`
}

// Step is a recommendation as it appears in the action plan.
type Step struct {
	Action         string `json:"action"`
	Details        string `json:"details"`
	ExpectedImpact string `json:"expected_impact"`
}

// ActionPlan buckets recommendations by urgency.
type ActionPlan struct {
	Immediate []Step `json:"immediate"`
	ShortTerm []Step `json:"short_term"`
	LongTerm  []Step `json:"long_term"`
}

// Report is the exported analysis document.
type Report struct {
	SiteURL           string                     `json:"site_url"`
	AnalysisDate      string                     `json:"analysis_date"`
	Summary           Summary                    `json:"summary"`
	QueryOptimization *patterns.QueryPatterns    `json:"query_optimization"`
	ContentDepth      *analysis.StructuralReport `json:"content_depth"`
	Recommendations   []Recommendation           `json:"recommendations"`
	ActionPlan        ActionPlan                 `json:"action_plan"`
}

// Input is everything a report is generated from.
type Input struct {
	SiteURL string

	// TotalPosts and TotalPages count the raw items fetched, including
	// ones the builder skipped.
	TotalPosts int
	TotalPages int

	Graph     *graph.ContentGraph
	Patterns  *patterns.QueryPatterns
	Structure *analysis.StructuralReport

	// Now stamps the report. Zero means time.Now.
	Now time.Time
}

// Generate compiles a report.
func Generate(in Input) *Report {
	qp := in.Patterns
	if qp == nil {
		qp = patterns.Empty()
	}
	structure := in.Structure
	if structure == nil {
		structure = &analysis.StructuralReport{
			Scores:   map[string]analysis.ScoreEntry{},
			Hubs:     []analysis.ScoreEntry{},
			Orphans:  []analysis.ScoreEntry{},
			Clusters: []analysis.Cluster{},
		}
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	summary := Summary{
		TotalPosts:       in.TotalPosts,
		TotalPages:       in.TotalPages,
		OrphanContent:    len(structure.Orphans),
		HubPages:         len(structure.Hubs),
		SemanticClusters: len(structure.Clusters),
	}
	if in.Graph != nil {
		summary.ContentNodes = in.Graph.NodeCount()
		summary.InternalLinks = in.Graph.EdgeCount()
	}

	recs := Recommendations(qp, structure)

	return &Report{
		SiteURL:           in.SiteURL,
		AnalysisDate:      now.Format(time.RFC3339),
		Summary:           summary,
		QueryOptimization: qp,
		ContentDepth:      structure,
		Recommendations:   recs,
		ActionPlan:        BuildActionPlan(recs),
	}
}

// Recommendations derives recommendations in a fixed order: content
// gaps, orphans, hubs, then clusters.
func Recommendations(qp *patterns.QueryPatterns, structure *analysis.StructuralReport) []Recommendation {
	recs := []Recommendation{}

	if qp != nil {
		for _, gap := range qp.Gaps {
			recs = append(recs, Recommendation{
				Type:     TypeContentGap,
				Priority: PriorityHigh,
				Action:   "Create new content",
				Details:  "Create content to answer sub-query: " + gap,
				Impact:   "Enables multi-hop reasoning path",
			})
		}
	}

	if structure == nil {
		return recs
	}

	for _, orphan := range head(structure.Orphans, maxOrphanRecommendations) {
		recs = append(recs, Recommendation{
			Type:     TypeOrphanContent,
			Priority: PriorityMedium,
			Action:   "Add internal links",
			Details:  "Connect orphan content: " + orphan.Title,
			URL:      orphan.URL,
			Impact:   "Improves content graph connectivity",
		})
	}

	for _, hub := range head(structure.Hubs, maxHubRecommendations) {
		recs = append(recs, Recommendation{
			Type:     TypeHubOptimization,
			Priority: PriorityHigh,
			Action:   "Enhance hub page",
			Details:  "Optimize hub potential: " + hub.Title,
			URL:      hub.URL,
			Impact:   "Strengthens multi-source selection",
		})
	}

	for _, cluster := range head(structure.Clusters, maxClusterRecommendations) {
		recs = append(recs, Recommendation{
			Type:     TypeSemanticBridge,
			Priority: PriorityMedium,
			Action:   "Create semantic bridges",
			Details:  "Link related content in cluster: " + strings.Join(cluster.ThemeTerms, ", "),
			Impact:   "Enables query fan-out paths",
		})
	}

	return recs
}

// BuildActionPlan buckets recommendations: high is immediate, medium is
// short term and everything else is long term.
func BuildActionPlan(recs []Recommendation) ActionPlan {
	plan := ActionPlan{
		Immediate: []Step{},
		ShortTerm: []Step{},
		LongTerm:  []Step{},
	}
	for _, rec := range recs {
		step := Step{Action: rec.Action, Details: rec.Details, ExpectedImpact: rec.Impact}
		switch rec.Priority {
		case PriorityHigh:
			plan.Immediate = append(plan.Immediate, step)
		case PriorityMedium:
			plan.ShortTerm = append(plan.ShortTerm, step)
		default:
			plan.LongTerm = append(plan.LongTerm, step)
		}
	}
	return plan
}

// Export writes the report as indented JSON without HTML escaping.
func Export(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// WriteFile exports the report to path.
func WriteFile(path string, r *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	if err := Export(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Decode reads a report previously written by Export.
func Decode(r io.Reader) (*Report, error) {
	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &rep, nil
}

// ReadFile loads a report from path.
func ReadFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening report file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
