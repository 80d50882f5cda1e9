package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Benny93/fanout-go/internal/analysis"
	"github.com/Benny93/fanout-go/internal/graph"
	"github.com/Benny93/fanout-go/internal/patterns"
	"github.com/Benny93/fanout-go/internal/report"
	"github.com/Benny93/fanout-go/internal/storage"
)

// Source produces the raw content of one site.
type Source interface {
	// Name identifies the source in logs and progress output.
	Name() string

	// Fetch returns everything the source could read.
	Fetch(ctx context.Context) (*RawContentBundle, error)
}

// FileSource reads a previously saved bundle from disk.
type FileSource struct {
	Path string
}

// Name implements Source.
func (s FileSource) Name() string {
	return "bundle file"
}

// Fetch implements Source.
func (s FileSource) Fetch(ctx context.Context) (*RawContentBundle, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseFetch, Err: fmt.Errorf("opening bundle: %w", err)}
	}
	defer f.Close()
	return DecodeBundle(f)
}

// BundleSource serves an in-memory bundle.
type BundleSource struct {
	Bundle *RawContentBundle
}

// Name implements Source.
func (s BundleSource) Name() string {
	return "bundle"
}

// Fetch implements Source.
func (s BundleSource) Fetch(ctx context.Context) (*RawContentBundle, error) {
	return s.Bundle, nil
}

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// Pipeline phase names reported through ProgressCallback.
const (
	StepFetch    = "Fetching content"
	StepBuild    = "Building content graph"
	StepScore    = "Scoring content"
	StepCluster  = "Clustering content"
	StepPatterns = "Analyzing query patterns"
	StepReport   = "Generating report"
	StepStore    = "Saving snapshot"
)

// PipelineOptions configures RunPipeline. Only SiteURL is required.
type PipelineOptions struct {
	SiteURL string

	// Analyzer identifies query patterns. Nil skips the phase.
	Analyzer patterns.Analyzer

	// Clusterer groups similar content. Nil uses the defaults.
	Clusterer *analysis.Clusterer

	// Store persists the snapshot. Nil keeps results in memory only.
	Store storage.StorageBackend

	Progress ProgressCallback
	Logger   *zap.Logger

	// Now stamps the report. Nil means time.Now.
	Now func() time.Time
}

// PipelineResult summarizes a pipeline run.
type PipelineResult struct {
	Build           BuildStats `json:"build"`
	Nodes           int        `json:"nodes"`
	Edges           int        `json:"edges"`
	Hubs            int        `json:"hubs"`
	Orphans         int        `json:"orphans"`
	Clusters        int        `json:"clusters"`
	Recommendations int        `json:"recommendations"`
	PatternsFailed  bool       `json:"patterns_failed,omitempty"`
	Stored          bool       `json:"stored"`
	DurationSecs    float64    `json:"duration_secs"`
}

// PipelineOutput is everything a run produced.
type PipelineOutput struct {
	Bundle *RawContentBundle
	Graph  *graph.ContentGraph
	Report *report.Report
	Result *PipelineResult
}

// RunPipeline fetches content from source and runs the full analysis:
// graph build, structural scoring, clustering, query pattern analysis
// and report generation, then saves the snapshot when a store is set.
//
// Structural failures of the bundle and storage errors abort the run.
// A failing pattern analyzer only degrades the report.
func RunPipeline(ctx context.Context, source Source, opts PipelineOptions) (*PipelineOutput, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	step := func(phase string, progress float64) {
		if opts.Progress != nil {
			opts.Progress(phase, progress)
		}
	}
	result := &PipelineResult{}

	// Phase 1: Fetch
	step(StepFetch, 0.0)
	logger.Info("fetching content", zap.String("source", source.Name()), zap.String("site", opts.SiteURL))
	bundle, err := source.Fetch(ctx)
	if err != nil {
		var phaseErr *PhaseError
		if !errors.As(err, &phaseErr) {
			err = &PhaseError{Phase: PhaseFetch, Err: err}
		}
		return nil, err
	}
	if bundle == nil {
		return nil, &PhaseError{Phase: PhaseFetch, Err: fmt.Errorf("%w: source %s returned no bundle", ErrMalformedBundle, source.Name())}
	}
	step(StepFetch, 1.0)

	// Phase 2: Graph
	step(StepBuild, 0.0)
	builder := NewBuilder(opts.SiteURL, WithLogger(logger))
	g, err := builder.Build(bundle)
	if err != nil {
		return nil, err
	}
	result.Build = builder.Stats()
	step(StepBuild, 1.0)

	// Phase 3: Structure
	step(StepScore, 0.0)
	structure := analysis.Analyze(g)
	step(StepScore, 1.0)

	// Phase 4: Clusters
	step(StepCluster, 0.0)
	clusterer := opts.Clusterer
	if clusterer == nil {
		clusterer = analysis.NewClusterer(analysis.WithClusterLogger(logger))
	}
	structure.Clusters = clusterer.Cluster(g)
	step(StepCluster, 1.0)

	// Phase 5: Query patterns
	qp := patterns.Empty()
	if opts.Analyzer != nil {
		step(StepPatterns, 0.0)
		found, err := opts.Analyzer.Analyze(ctx, opts.SiteURL, g.Sample(patterns.SampleSize))
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Warn("query pattern analysis failed", zap.Error(err))
			result.PatternsFailed = true
		case found != nil:
			qp = found
		}
		step(StepPatterns, 1.0)
	}

	// Phase 6: Report
	step(StepReport, 0.0)
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	stamp := now()
	rep := report.Generate(report.Input{
		SiteURL:    opts.SiteURL,
		TotalPosts: len(bundle.Posts),
		TotalPages: len(bundle.Pages),
		Graph:      g,
		Patterns:   qp,
		Structure:  structure,
		Now:        stamp,
	})
	step(StepReport, 1.0)

	// Phase 7: Store
	if opts.Store != nil {
		step(StepStore, 0.0)
		err := opts.Store.SaveSnapshot(ctx, &storage.Snapshot{
			SiteURL:   opts.SiteURL,
			CreatedAt: stamp,
			Graph:     g,
			Report:    rep,
		})
		if err != nil {
			return nil, fmt.Errorf("saving snapshot: %w", err)
		}
		result.Stored = true
		step(StepStore, 1.0)
	}

	result.Nodes = g.NodeCount()
	result.Edges = g.EdgeCount()
	result.Hubs = len(structure.Hubs)
	result.Orphans = len(structure.Orphans)
	result.Clusters = len(structure.Clusters)
	result.Recommendations = len(rep.Recommendations)
	result.DurationSecs = time.Since(start).Seconds()

	logger.Info("analysis complete",
		zap.Int("nodes", result.Nodes),
		zap.Int("edges", result.Edges),
		zap.Int("hubs", result.Hubs),
		zap.Int("orphans", result.Orphans),
		zap.Int("clusters", result.Clusters),
		zap.Float64("duration_secs", result.DurationSecs),
	)

	return &PipelineOutput{
		Bundle: bundle,
		Graph:  g,
		Report: rep,
		Result: result,
	}, nil
}
