package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/Benny93/fanout-go/internal/analysis"
	"github.com/Benny93/fanout-go/internal/fetch"
	"github.com/Benny93/fanout-go/internal/ingestion"
	"github.com/Benny93/fanout-go/internal/patterns"
	"github.com/Benny93/fanout-go/internal/report"
)

// DefaultReportFile is where analyze writes the report.
const DefaultReportFile = "seo_report.json"

// summaryActions is how many recommendations the summary lists.
const summaryActions = 3

// LLMFlags configure the query pattern analysis.
type LLMFlags struct {
	APIKey    string `name:"api-key" env:"FANOUT_API_KEY" help:"API key for query pattern analysis; without one the phase is skipped"`
	Model     string `env:"FANOUT_MODEL" default:"${defaultModel}" help:"Model used for query pattern analysis"`
	BaseURL   string `name:"base-url" env:"FANOUT_BASE_URL" help:"OpenAI-compatible API endpoint" placeholder:"URL"`
	MaxTokens int    `default:"8000" help:"Completion token limit"`
}

// analyzer falls back to empty patterns when no API key is configured.
func (f LLMFlags) analyzer(logger *zap.Logger) patterns.Analyzer {
	if f.APIKey == "" {
		logger.Warn("no API key configured, skipping query pattern analysis")
		return patterns.NoopAnalyzer{}
	}
	return patterns.NewOpenAIAnalyzer(patterns.Config{
		APIKey:    f.APIKey,
		BaseURL:   f.BaseURL,
		Model:     f.Model,
		MaxTokens: f.MaxTokens,
		Logger:    logger.Named("patterns"),
	})
}

// AnalyzeCmd runs the full analysis of one site.
type AnalyzeCmd struct {
	Site       string  `arg:"" help:"Site base URL"`
	Source     string  `enum:"api,sitemap,bundle" default:"api" help:"Where content comes from (api|sitemap|bundle)"`
	Sitemap    string  `help:"Sitemap URL, absolute or relative to the site (default /sitemap.xml)" placeholder:"URL"`
	Bundle     string  `type:"path" help:"Bundle file read with --source=bundle"`
	SaveBundle string  `type:"path" help:"Also write the fetched content to this bundle file"`
	Output     string  `short:"o" default:"${defaultReport}" type:"path" help:"Report file"`
	NoStore    bool    `help:"Do not save the snapshot"`
	Threshold  float64 `default:"0.3" help:"Similarity above which content joins a cluster"`

	LLM LLMFlags `embed:""`
}

// Run executes the analyze command.
func (c *AnalyzeCmd) Run(app *App) error {
	source, err := c.source(app.Logger)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	_, err = analyze(ctx, app, analysisRun{
		site:      c.Site,
		source:    source,
		output:    c.Output,
		noStore:   c.NoStore,
		threshold: c.Threshold,
		llm:       c.LLM,
	})
	return err
}

func (c *AnalyzeCmd) source(logger *zap.Logger) (ingestion.Source, error) {
	var source ingestion.Source
	switch c.Source {
	case "api":
		source = fetch.NewWordPressFetcher(c.Site, fetch.WithLogger(logger))
	case "sitemap":
		source = fetch.NewSitemapFetcher(c.Site, c.Sitemap, fetch.WithLogger(logger))
	case "bundle":
		if c.Bundle == "" {
			return nil, errors.New("--bundle is required with --source=bundle")
		}
		source = ingestion.FileSource{Path: c.Bundle}
	default:
		return nil, fmt.Errorf("unknown source %q", c.Source)
	}

	if c.SaveBundle != "" {
		source = savingSource{Source: source, path: c.SaveBundle}
	}
	return source, nil
}

// savingSource writes every fetched bundle to disk before handing it on.
type savingSource struct {
	ingestion.Source
	path string
}

func (s savingSource) Fetch(ctx context.Context) (*ingestion.RawContentBundle, error) {
	bundle, err := s.Source.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(s.path)
	if err != nil {
		return nil, fmt.Errorf("creating bundle file: %w", err)
	}
	if err := ingestion.EncodeBundle(f, bundle); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("writing bundle file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("writing bundle file: %w", err)
	}
	return bundle, nil
}

type analysisRun struct {
	site      string
	source    ingestion.Source
	output    string
	noStore   bool
	threshold float64
	llm       LLMFlags
}

// analyze runs the pipeline once, writes the report and prints the
// summary.
func analyze(ctx context.Context, app *App, run analysisRun) (*ingestion.PipelineOutput, error) {
	opts := ingestion.PipelineOptions{
		SiteURL:  run.site,
		Analyzer: run.llm.analyzer(app.Logger),
		Clusterer: analysis.NewClusterer(
			analysis.WithThreshold(run.threshold),
			analysis.WithClusterLogger(app.Logger),
		),
		Logger: app.Logger,
	}

	if !app.Quiet {
		opts.Progress = func(phase string, pct float64) {
			fmt.Fprintf(app.Err, "\r\033[K%s (%.0f%%)", phase, pct*100)
		}
	}

	if !run.noStore {
		store, err := app.openStore(false)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()
		opts.Store = store
	}

	if !app.Quiet {
		color.New(color.FgGreen).Fprintf(app.Out, "Analyzing %s (%s)\n", run.site, run.source.Name())
	}

	out, err := ingestion.RunPipeline(ctx, run.source, opts)
	if opts.Progress != nil {
		fmt.Fprintln(app.Err)
	}
	if err != nil {
		return nil, fmt.Errorf("running pipeline: %w", err)
	}

	if run.output != "" {
		if err := report.WriteFile(run.output, out.Report); err != nil {
			return nil, err
		}
	}

	printSummary(app.Out, out.Report, run.output)
	return out, nil
}

func printSummary(w io.Writer, rep *report.Report, output string) {
	rule := strings.Repeat("=", 50)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	color.New(color.FgGreen, color.Bold).Fprintln(w, "SEO ANALYSIS COMPLETE")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Site: %s\n", rep.SiteURL)
	fmt.Fprintf(w, "Total Content Nodes: %d\n", rep.Summary.ContentNodes)
	fmt.Fprintf(w, "Orphan Content: %d\n", rep.Summary.OrphanContent)
	fmt.Fprintf(w, "Potential Hub Pages: %d\n", rep.Summary.HubPages)
	fmt.Fprintf(w, "Semantic Clusters: %d\n", rep.Summary.SemanticClusters)
	fmt.Fprintf(w, "\nTop Recommendations: %d\n", len(rep.Recommendations))
	if output != "" {
		fmt.Fprintf(w, "Report saved to: %s\n", output)
	}

	if len(rep.Recommendations) == 0 {
		return
	}
	color.New(color.FgYellow).Fprintf(w, "\nTop %d Immediate Actions:\n", summaryActions)
	for i, rec := range rep.Recommendations {
		if i >= summaryActions {
			break
		}
		fmt.Fprintf(w, "%d. %s: %s\n", i+1, rec.Action, rec.Details)
	}
}

// WatchCmd rebuilds the analysis from a bundle file on every change.
type WatchCmd struct {
	Site      string        `arg:"" help:"Site base URL"`
	Bundle    string        `arg:"" type:"path" help:"Bundle file to watch"`
	Output    string        `short:"o" default:"${defaultReport}" type:"path" help:"Report file"`
	NoStore   bool          `help:"Do not save the snapshot"`
	Threshold float64       `default:"0.3" help:"Similarity above which content joins a cluster"`
	Debounce  time.Duration `default:"2s" help:"Quiet period after a change before rebuilding"`

	LLM LLMFlags `embed:""`
}

// Run executes the watch command.
func (c *WatchCmd) Run(app *App) error {
	ctx, stop := signalContext()
	defer stop()
	return c.watch(ctx, app)
}

func (c *WatchCmd) watch(ctx context.Context, app *App) error {
	run := analysisRun{
		site:      c.Site,
		source:    ingestion.FileSource{Path: c.Bundle},
		output:    c.Output,
		noStore:   c.NoStore,
		threshold: c.Threshold,
		llm:       c.LLM,
	}

	if _, err := analyze(ctx, app, run); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		app.Logger.Error("initial analysis failed", zap.Error(err))
	}

	if !app.Quiet {
		fmt.Fprintf(app.Out, "\nWatching %s for changes (Ctrl+C to stop)\n", c.Bundle)
	}

	err := ingestion.WatchBundle(ctx, c.Bundle, func(ctx context.Context) error {
		_, err := analyze(ctx, app, run)
		return err
	}, ingestion.WithDebounce(c.Debounce), ingestion.WithWatchLogger(app.Logger.Named("watch")))
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}

	if !app.Quiet {
		fmt.Fprintln(app.Out, "Watch mode stopped.")
	}
	return nil
}
