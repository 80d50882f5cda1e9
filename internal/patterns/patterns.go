// Package patterns asks an external language model which complex,
// multi-hop queries a site could answer and where its content falls short.
//
// Results are best effort. Every field of QueryPatterns may be empty and
// callers must not treat a failed analysis as fatal.
package patterns

import (
	"context"

	"github.com/Benny93/fanout-go/internal/graph"
)

// SampleSize is the number of content nodes sent for analysis.
const SampleSize = 20

// QueryPatterns is the structured result of a query-pattern analysis.
type QueryPatterns struct {
	ComplexQueries   []string            `json:"complex_queries"`
	Decompositions   map[string][]string `json:"decompositions"`
	CoverageAnalysis map[string]any      `json:"coverage_analysis"`
	Gaps             []string            `json:"gaps"`
	Opportunities    []string            `json:"opportunities"`
}

// Empty returns a result with every field present and empty.
func Empty() *QueryPatterns {
	return &QueryPatterns{
		ComplexQueries:   []string{},
		Decompositions:   map[string][]string{},
		CoverageAnalysis: map[string]any{},
		Gaps:             []string{},
		Opportunities:    []string{},
	}
}

// IsEmpty reports whether the analysis found nothing.
func (p *QueryPatterns) IsEmpty() bool {
	return p == nil || (len(p.ComplexQueries) == 0 &&
		len(p.Decompositions) == 0 &&
		len(p.CoverageAnalysis) == 0 &&
		len(p.Gaps) == 0 &&
		len(p.Opportunities) == 0)
}

// Analyzer identifies query patterns for a site from a content sample.
type Analyzer interface {
	Analyze(ctx context.Context, siteURL string, sample []graph.SampleItem) (*QueryPatterns, error)
}

// NoopAnalyzer returns empty patterns. It is used when no model is
// configured.
type NoopAnalyzer struct{}

// Analyze implements Analyzer.
func (NoopAnalyzer) Analyze(context.Context, string, []graph.SampleItem) (*QueryPatterns, error) {
	return Empty(), nil
}
