// Package cmd provides CLI command implementations for fanout.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Benny93/fanout-go/internal/patterns"
	"github.com/Benny93/fanout-go/internal/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

// DefaultDataDir holds the snapshot store, relative to the working
// directory.
const DefaultDataDir = ".fanout"

// App carries what every command needs. It is bound into kong so Run
// methods receive it.
type App struct {
	Out     io.Writer
	Err     io.Writer
	In      io.Reader
	Logger  *zap.Logger
	DataDir string
	Quiet   bool
}

func (a *App) storePath() string {
	return filepath.Join(a.DataDir, "badger")
}

// openStore opens the snapshot store, creating it when writable.
func (a *App) openStore(readOnly bool) (*storage.BadgerBackend, error) {
	path := a.storePath()
	if readOnly {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no analysis found in %s. Run 'fanout analyze' first", a.DataDir)
		}
	} else if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(path, readOnly); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Config  kong.ConfigFlag  `help:"Load flags from a JSON configuration file" placeholder:"FILE"`
	Verbose bool             `short:"v" help:"Enable verbose output"`
	Debug   bool             `help:"Enable debug logging"`
	Quiet   bool             `short:"q" help:"Suppress non-essential output"`
	DataDir string           `default:"${defaultDataDir}" env:"FANOUT_DATA_DIR" type:"path" help:"Directory holding the snapshot store"`

	// Commands
	Analyze AnalyzeCmd `cmd:"" help:"Fetch a site, build its content graph and write the report"`
	Watch   WatchCmd   `cmd:"" help:"Re-run the analysis whenever a bundle file changes"`
	Report  ReportCmd  `cmd:"" help:"Show the stored report"`
	Query   QueryCmd   `cmd:"" help:"Search the stored content"`
	MCP     MCPCmd     `cmd:"" name:"mcp" help:"Start MCP server (stdio transport)"`
	Setup   SetupCmd   `cmd:"" help:"Configure MCP for Claude / Cursor"`
	Status  StatusCmd  `cmd:"" help:"Show the stored snapshot"`
	Clean   CleanCmd   `cmd:"" help:"Delete the snapshot store"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

func (c *CLI) parser(app *App, opts ...kong.Option) (*kong.Kong, error) {
	base := []kong.Option{
		kong.Name("fanout"),
		kong.Description("Content graph and query fan-out analyzer for WordPress sites"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Configuration(kong.JSON, "~/.fanout.json", ".fanout.json"),
		kong.Writers(app.Out, app.Err),
		kong.Vars{
			"version":        Version,
			"defaultModel":   patterns.DefaultModel,
			"defaultDataDir": DefaultDataDir,
			"defaultReport":  DefaultReportFile,
		},
	}
	return kong.New(c, append(base, opts...)...)
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	return c.run(args, &App{Out: os.Stdout, Err: os.Stderr, In: os.Stdin})
}

// run parses args and runs the selected command with app. A nil
// app.Logger is built from the verbosity flags.
func (c *CLI) run(args []string, app *App, opts ...kong.Option) error {
	parser, err := c.parser(app, opts...)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	if app.Logger == nil {
		logger, err := newLogger(c.Verbose, c.Debug, c.Quiet)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()
		app.Logger = logger
	}
	app.DataDir = c.DataDir
	app.Quiet = c.Quiet

	return kctx.Run(app)
}

// newLogger writes to stderr: human-readable when verbose or debugging,
// JSON warnings and errors otherwise.
func newLogger(verbose, debug, quiet bool) (*zap.Logger, error) {
	var cfg zap.Config
	switch {
	case debug:
		cfg = zap.NewDevelopmentConfig()
	case verbose:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	default:
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	if quiet {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
