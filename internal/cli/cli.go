// Package cli implements the depviz command-line interface.
//
// Every command reads a row dump produced by a dependency extractor (for
// example `mix xref graph --format json`), builds the typed graph and asks
// the analysis worker for the closures. Query commands print one node's
// view of the result; explore and serve keep the graph loaded.
//
// # Configuration
//
// Settings come from defaults, a depviz.toml or depviz.yaml file, .env and
// DEPVIZ_* variables, and finally command-line flags. --config selects an
// explicit file. --verbose (-v) forces debug logging.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/depviz/internal/config"
	"github.com/matzehuels/depviz/pkg/buildinfo"
	"github.com/matzehuels/depviz/pkg/cache"
	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/errors"
	depio "github.com/matzehuels/depviz/pkg/io"
	"github.com/matzehuels/depviz/pkg/pathfind"
	"github.com/matzehuels/depviz/pkg/pipeline"
	"github.com/matzehuels/depviz/pkg/worker"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for display.
	appName = "depviz"

	// defaultTop is the default length of ranked lists.
	defaultTop = 10
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config config.Config

	configPath string
	verbose    bool
}

// New creates a new CLI instance logging to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "depviz analyzes source-file dependency graphs",
		Long: `depviz answers two questions about a source-file dependency graph:
which files recompile when a file changes, and what a file depends on,
directly and transitively.`,
		Version:           buildinfo.Get().Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return c.loadConfig() },
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default depviz.toml or depviz.yaml if present)")

	root.AddCommand(c.analyzeCommand())
	root.AddCommand(c.depsCommand())
	root.AddCommand(c.recompileCommand())
	root.AddCommand(c.pathCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.exploreCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.Config = cfg

	level := cfg.Level()
	if c.verbose {
		level = LogDebug
	}
	c.SetLogLevel(level)
	if cfg.Source != "" {
		c.Logger.Debug("loaded config", "file", cfg.Source)
	}
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner with an in-memory closure cache. A nil
// keyer uses the default keys.
func (c *CLI) newRunner(keyer cache.Keyer) (*pipeline.Runner, error) {
	var store cache.Cache = cache.NewNullCache()
	if size := c.Config.Server.CacheSize; size > 0 {
		lru, err := cache.NewLRUCache(size)
		if err != nil {
			return nil, err
		}
		store = lru
	}
	r := pipeline.NewRunner(store, keyer, c.Logger)
	r.TTL = c.Config.Server.CacheTTL
	return r, nil
}

// analysisOptions returns the pipeline options for f.
func (c *CLI) analysisOptions(f closure.Filter) pipeline.Options {
	return pipeline.Options{
		Filter:            f,
		LogFilesToCompile: c.Config.LogFilesToCompile,
		Logger:            c.Logger,
	}
}

// =============================================================================
// Flag Helpers
// =============================================================================

// filterFlag binds --filter. The flag wins over the configured filter when
// given explicitly.
type filterFlag struct {
	value string
	cmd   *cobra.Command
}

func addFilterFlag(cmd *cobra.Command) *filterFlag {
	f := &filterFlag{cmd: cmd}
	cmd.Flags().StringVar(&f.value, "filter", "", "edge filter: all (default), compile")
	return f
}

func (f *filterFlag) resolve(cfg config.Config) (closure.Filter, error) {
	if !f.cmd.Flags().Changed("filter") {
		return cfg.ClosureFilter(), nil
	}
	v, err := closure.ParseFilter(f.value)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidFilter, err, "--filter")
	}
	return v, nil
}

// =============================================================================
// Loading
// =============================================================================

// loaded is one row dump, read and built.
type loaded struct {
	rows   depio.Rows
	graph  *depgraph.Graph
	report *depgraph.Report
}

func (c *CLI) load(path string) (*loaded, error) {
	prog := newProgress(c.Logger)
	rows, err := depio.ImportRows(path)
	if err != nil {
		return nil, err
	}
	g, report, err := rows.Build(depgraph.WithLogger(c.Logger))
	if err != nil {
		return nil, err
	}
	prog.done("Loaded " + path)
	return &loaded{rows: rows, graph: g, report: report}, nil
}

// request builds the analysis request for l under filter f.
func (l *loaded) request(f closure.Filter) worker.Request {
	req := depio.ToRequest(l.rows)
	req.Filter = f
	return req
}

// analyze runs one request through a background worker and waits for its
// reply. The foreground keeps its own graph for display and path queries.
func (c *CLI) analyze(ctx context.Context, l *loaded, f closure.Filter) (worker.Reply, error) {
	runner, err := c.newRunner(nil)
	if err != nil {
		return worker.Reply{}, err
	}
	w := worker.New(runner.AnalyzeFunc(c.analysisOptions(f)), c.Logger.WithPrefix("worker"))
	if err := w.Start(ctx); err != nil {
		return worker.Reply{}, err
	}
	defer w.Stop()
	return w.Do(ctx, l.request(f))
}

// requireNode reports an unknown node with the error taxonomy's code.
func requireNode(g *depgraph.Graph, id depgraph.NodeID) error {
	if err := errors.ValidateNodeID(string(id)); err != nil {
		return err
	}
	if !g.Has(id) {
		return &pathfind.UnknownNodeError{ID: id}
	}
	return nil
}
