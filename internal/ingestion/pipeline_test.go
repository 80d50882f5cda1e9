package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Benny93/fanout-go/internal/analysis"
	"github.com/Benny93/fanout-go/internal/graph"
	"github.com/Benny93/fanout-go/internal/patterns"
	"github.com/Benny93/fanout-go/internal/report"
	"github.com/Benny93/fanout-go/internal/storage"
)

type fakeAnalyzer struct {
	result *patterns.QueryPatterns
	err    error

	mu     sync.Mutex
	sample []graph.SampleItem
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string, sample []graph.SampleItem) (*patterns.QueryPatterns, error) {
	f.mu.Lock()
	f.sample = sample
	f.mu.Unlock()
	return f.result, f.err
}

type failingSource struct{ err error }

func (s failingSource) Name() string { return "failing" }

func (s failingSource) Fetch(context.Context) (*RawContentBundle, error) {
	return nil, s.err
}

func pipelineBundle() *RawContentBundle {
	return &RawContentBundle{
		Posts: []Item{
			{"id": 1, "title": rendered("Trail shoes"), "link": testSite + "/a/", "content": rendered(`<p>See <a href="https://example.com/b/">B</a></p>`), "categories": []any{1}},
			{"id": 2, "title": rendered("Marathon plan"), "link": testSite + "/b/", "content": rendered("<h2>Weeks</h2><p>Long runs</p>"), "categories": []any{1}},
			{"title": rendered("no id")},
		},
		Pages: []Item{
			{"id": 5, "title": rendered("About"), "link": testSite + "/about/", "content": rendered("<p>Who we are</p>")},
		},
		Categories: []Item{{"id": 1, "name": "Running", "slug": "running"}},
	}
}

// noClusters keeps recommendation counts independent of text similarity.
func noClusters() *analysis.Clusterer {
	return analysis.NewClusterer(analysis.WithThreshold(1.01))
}

func TestRunPipeline(t *testing.T) {
	t.Parallel()

	t.Run("FullRun", func(t *testing.T) {
		t.Parallel()

		store := storage.NewMemoryBackend()
		analyzer := &fakeAnalyzer{result: &patterns.QueryPatterns{Gaps: []string{"pricing"}}}
		stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		var mu sync.Mutex
		var phases []string
		out, err := RunPipeline(context.Background(), BundleSource{Bundle: pipelineBundle()}, PipelineOptions{
			SiteURL:   testSite,
			Analyzer:  analyzer,
			Clusterer: noClusters(),
			Store:     store,
			Now:       func() time.Time { return stamp },
			Progress: func(phase string, progress float64) {
				mu.Lock()
				defer mu.Unlock()
				if progress == 1.0 {
					phases = append(phases, phase)
				}
			},
		})
		require.NoError(t, err)

		assert.Equal(t, []string{StepFetch, StepBuild, StepScore, StepCluster, StepPatterns, StepReport, StepStore}, phases)

		res := out.Result
		assert.Equal(t, 4, res.Nodes)
		assert.Equal(t, 3, res.Edges)
		assert.Equal(t, 1, res.Build.Skipped)
		assert.Equal(t, 1, res.Orphans, "the about page has no links")
		assert.Equal(t, 0, res.Hubs)
		assert.Equal(t, 0, res.Clusters)
		assert.Equal(t, 2, res.Recommendations)
		assert.True(t, res.Stored)
		assert.False(t, res.PatternsFailed)

		assert.Equal(t, 3, out.Report.Summary.TotalPosts, "raw counts include skipped items")
		assert.Equal(t, 1, out.Report.Summary.TotalPages)
		assert.Equal(t, report.TypeContentGap, out.Report.Recommendations[0].Type)
		assert.Len(t, analyzer.sample, 3)

		info, err := store.Info(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testSite, info.SiteURL)
		assert.True(t, info.CreatedAt.Equal(stamp))
		assert.True(t, info.HasReport)
		assert.Equal(t, 4, info.Nodes)

		saved, err := store.LoadReport(context.Background())
		require.NoError(t, err)
		assert.Equal(t, out.Report.AnalysisDate, saved.AnalysisDate)
	})

	t.Run("WithoutStoreOrAnalyzer", func(t *testing.T) {
		t.Parallel()

		out, err := RunPipeline(context.Background(), BundleSource{Bundle: pipelineBundle()}, PipelineOptions{
			SiteURL:   testSite,
			Clusterer: noClusters(),
		})
		require.NoError(t, err)
		assert.False(t, out.Result.Stored)
		assert.True(t, out.Report.QueryOptimization.IsEmpty())
		assert.Equal(t, 1, out.Result.Recommendations)
	})

	t.Run("AnalyzerFailureDegrades", func(t *testing.T) {
		t.Parallel()

		core, logs := observer.New(zap.WarnLevel)
		out, err := RunPipeline(context.Background(), BundleSource{Bundle: pipelineBundle()}, PipelineOptions{
			SiteURL:   testSite,
			Analyzer:  &fakeAnalyzer{err: errors.New("model unavailable")},
			Clusterer: noClusters(),
			Logger:    zap.New(core),
		})
		require.NoError(t, err)
		assert.True(t, out.Result.PatternsFailed)
		assert.True(t, out.Report.QueryOptimization.IsEmpty())
		assert.Equal(t, 1, logs.FilterMessage("query pattern analysis failed").Len())
	})

	t.Run("FetchErrorIsWrapped", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("connection refused")
		_, err := RunPipeline(context.Background(), failingSource{err: boom}, PipelineOptions{SiteURL: testSite})
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)

		var phaseErr *PhaseError
		require.ErrorAs(t, err, &phaseErr)
		assert.Equal(t, PhaseFetch, phaseErr.Phase)
	})

	t.Run("NilBundle", func(t *testing.T) {
		t.Parallel()

		_, err := RunPipeline(context.Background(), BundleSource{}, PipelineOptions{SiteURL: testSite})
		assert.ErrorIs(t, err, ErrMalformedBundle)
	})

	t.Run("TaxonomyFailureAborts", func(t *testing.T) {
		t.Parallel()

		bundle := &RawContentBundle{
			Posts: []Item{{"id": 1, "link": testSite + "/a/", "categories": true}},
		}
		store := storage.NewMemoryBackend()
		_, err := RunPipeline(context.Background(), BundleSource{Bundle: bundle}, PipelineOptions{SiteURL: testSite, Store: store})

		var phaseErr *PhaseError
		require.ErrorAs(t, err, &phaseErr)
		assert.Equal(t, PhaseTaxonomyEdges, phaseErr.Phase)

		_, err = store.Info(context.Background())
		assert.ErrorIs(t, err, storage.ErrNoSnapshot, "nothing is saved after an abort")
	})

	t.Run("StoreErrorAborts", func(t *testing.T) {
		t.Parallel()

		store := storage.NewMemoryBackend()
		require.NoError(t, store.Initialize("", true))

		_, err := RunPipeline(context.Background(), BundleSource{Bundle: pipelineBundle()}, PipelineOptions{
			SiteURL:   testSite,
			Clusterer: noClusters(),
			Store:     store,
		})
		assert.ErrorIs(t, err, storage.ErrReadOnly)
	})
}

func TestFileSource(t *testing.T) {
	t.Parallel()

	t.Run("RoundTrip", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bundle.json")
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, EncodeBundle(f, pipelineBundle()))
		require.NoError(t, f.Close())

		out, err := RunPipeline(context.Background(), FileSource{Path: path}, PipelineOptions{
			SiteURL:   testSite,
			Clusterer: noClusters(),
		})
		require.NoError(t, err)
		assert.Equal(t, 4, out.Result.Nodes)
	})

	t.Run("Missing", func(t *testing.T) {
		t.Parallel()

		_, err := FileSource{Path: filepath.Join(t.TempDir(), "nope.json")}.Fetch(context.Background())
		assert.ErrorIs(t, err, os.ErrNotExist)

		var phaseErr *PhaseError
		require.ErrorAs(t, err, &phaseErr)
		assert.Equal(t, PhaseFetch, phaseErr.Phase)
	})
}
