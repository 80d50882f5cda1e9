package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/Benny93/fanout-go/internal/report"
	"github.com/Benny93/fanout-go/mcp"
)

// ReportCmd shows the stored report, or a report file.
type ReportCmd struct {
	File string `type:"existingfile" help:"Read this report file instead of the store"`
	JSON bool   `help:"Print the full report as JSON"`
}

// Run executes the report command.
func (c *ReportCmd) Run(app *App) error {
	rep, err := c.load(app)
	if err != nil {
		return err
	}

	if c.JSON {
		return report.Export(app.Out, rep)
	}

	printSummary(app.Out, rep, "")
	fmt.Fprintf(app.Out, "\nAnalyzed: %s\n", rep.AnalysisDate)

	plan := rep.ActionPlan
	printSteps(app, "Immediate", plan.Immediate)
	printSteps(app, "Short term", plan.ShortTerm)
	printSteps(app, "Long term", plan.LongTerm)
	return nil
}

func (c *ReportCmd) load(app *App) (*report.Report, error) {
	if c.File != "" {
		return report.ReadFile(c.File)
	}

	store, err := app.openStore(true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	return store.LoadReport(context.Background())
}

func printSteps(app *App, heading string, steps []report.Step) {
	if len(steps) == 0 {
		return
	}
	color.New(color.Bold).Fprintf(app.Out, "\n%s (%d)\n", heading, len(steps))
	for _, s := range steps {
		fmt.Fprintf(app.Out, "  - %s: %s\n", s.Action, s.Details)
		fmt.Fprintf(app.Out, "    Impact: %s\n", s.ExpectedImpact)
	}
}

// QueryCmd searches the stored content.
type QueryCmd struct {
	Query string `arg:"" help:"Search query"`
	Limit int    `short:"n" default:"20" help:"Maximum results"`
}

// Run executes the query command.
func (c *QueryCmd) Run(app *App) error {
	store, err := app.openStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	results, err := store.Search(context.Background(), c.Query, c.Limit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(results) == 0 {
		fmt.Fprintln(app.Out, "No results found")
		return nil
	}

	for i, r := range results {
		fmt.Fprintf(app.Out, "\n%d. %s (%s)\n", i+1, r.Title, r.Kind)
		fmt.Fprintf(app.Out, "   URL: %s\n", r.URL)
		fmt.Fprintf(app.Out, "   Score: %.3f\n", r.Score)
		if r.Snippet != "" {
			fmt.Fprintf(app.Out, "   %s\n", r.Snippet)
		}
	}

	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct{}

// Run executes the mcp command.
func (c *MCPCmd) Run(app *App) error {
	store, err := app.openStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signalContext()
	defer stop()

	// Nothing but protocol messages may go to stdout.
	err = mcp.NewServer(store, Version).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// StatusCmd shows the stored snapshot.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run(app *App) error {
	store, err := app.openStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	info, err := store.Info(context.Background())
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	fmt.Fprintf(app.Out, "Snapshot in %s\n", app.DataDir)
	fmt.Fprintf(app.Out, "  Site:           %s\n", info.SiteURL)
	fmt.Fprintf(app.Out, "  Analyzed:       %s\n", info.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(app.Out, "  Posts:          %d\n", info.Posts)
	fmt.Fprintf(app.Out, "  Pages:          %d\n", info.Pages)
	fmt.Fprintf(app.Out, "  Categories:     %d\n", info.Categories)
	fmt.Fprintf(app.Out, "  Tags:           %d\n", info.Tags)
	fmt.Fprintf(app.Out, "  Edges:          %d\n", info.Edges)
	fmt.Fprintf(app.Out, "  Report:         %t\n", info.HasReport)
	size, err := store.IndexSize()
	if err != nil {
		return fmt.Errorf("reading search index: %w", err)
	}
	fmt.Fprintf(app.Out, "  Index entries:  %d\n", size)

	return nil
}

// CleanCmd deletes the snapshot store.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(app *App) error {
	if _, err := os.Stat(app.DataDir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no data found at %s. Nothing to clean", app.DataDir)
	}

	if !c.Force {
		fmt.Fprintf(app.Out, "Delete %s? [y/N] ", app.DataDir)
		response, _ := bufio.NewReader(app.In).ReadString('\n')
		response = strings.TrimSpace(response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(app.Out, "Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(app.DataDir); err != nil {
		return fmt.Errorf("deleting data: %w", err)
	}

	color.New(color.FgGreen).Fprintf(app.Out, "Deleted %s\n", app.DataDir)
	return nil
}
