package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depviz/internal/tui"
	"github.com/matzehuels/depviz/pkg/closure"
)

// exploreCommand opens the interactive explorer.
func (c *CLI) exploreCommand() *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "explore [file]",
		Short: "Browse the graph interactively",
		Long: `Browse the graph interactively.

Keys:
  ↑/↓      move through the file list
  enter    select a file
  /        search file names (prefix matches first)
  tab      cycle the info box: all files, top stats, selected file
  m        toggle between dependencies and ancestors
  p        mark path endpoints; the second mark shows the path
  q        quit

The analysis runs in the background; the info box shows "computing" until
it arrives. Logs are discarded while the explorer owns the terminal unless
--log-file is given.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeArgs(0),
	}
	filter := addFilterFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		f, err := filter.resolve(c.Config)
		if err != nil {
			return err
		}
		return c.runExplore(cmd.Context(), args[0], f, logFile)
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file while exploring")

	return cmd
}

func (c *CLI) runExplore(ctx context.Context, path string, f closure.Filter, logFile string) error {
	l, err := c.load(path)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(nil)
	if err != nil {
		return err
	}

	var w io.Writer = io.Discard
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	logger := newLogger(w, c.Logger.GetLevel())
	runner.Logger = logger
	opts := c.analysisOptions(f)
	opts.Logger = logger

	_, err = tui.Run(ctx, tui.Options{
		Graph:   l.graph,
		Request: l.request(f),
		Analyze: runner.AnalyzeFunc(opts),
		Settings: tui.Settings{
			MaxLabelsToShow:   c.Config.MaxLabelsToShow,
			LogFilesToCompile: c.Config.LogFilesToCompile,
		},
		Logger: logger,
	})
	return err
}
