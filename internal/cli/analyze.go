package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/errors"
	"github.com/matzehuels/depviz/pkg/impact"
	depio "github.com/matzehuels/depviz/pkg/io"
)

type analyzeOpts struct {
	top    int
	json   bool
	output string
}

// analyzeCommand creates the analyze command printing the recompile summary.
func (c *CLI) analyzeCommand() *cobra.Command {
	var opts analyzeOpts

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Summarize which files cause and get recompiles",
		Long: `Analyze a dependency dump and print the recompile summary.

The file is a JSON array of node and edge rows, or "-" for standard input.
The summary lists the total number of files, the files whose change makes
the most other files recompile and the files that recompile most often.

With --json the full analysis reply (dependency, cause-recompile and
recompile-count maps) is written instead.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeArgs(0),
	}
	filter := addFilterFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if opts.top < 0 {
			return errors.New(errors.ErrCodeInvalidInput, "--top must not be negative")
		}
		f, err := filter.resolve(c.Config)
		if err != nil {
			return err
		}
		return c.runAnalyze(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], f, opts)
	}

	cmd.Flags().IntVarP(&opts.top, "top", "n", defaultTop, "length of ranked lists (0 for all)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "write the analysis reply as JSON")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file for --json (default stdout)")

	return cmd
}

func (c *CLI) runAnalyze(ctx context.Context, out, errOut io.Writer, path string, f closure.Filter, opts analyzeOpts) error {
	l, err := c.load(path)
	if err != nil {
		return err
	}

	spinner := newSpinnerWithContext(ctx, errOut, fmt.Sprintf("Analyzing %d files...", l.graph.NodeCount()))
	if !opts.json {
		spinner.Start()
	}
	reply, err := c.analyze(ctx, l, f)
	if !opts.json {
		spinner.Stop()
	}
	if err != nil {
		return err
	}

	if opts.json {
		if opts.output == "" {
			return depio.WriteReply(out, reply)
		}
		if err := depio.ExportReply(reply, opts.output); err != nil {
			return err
		}
		printFile(errOut, opts.output)
		return nil
	}

	stats := impact.Describe(reply.CauseRecompileMap)
	printSuccess(out, "Analyzed %s", path)
	printStats(out, l.graph.NodeCount(), l.graph.EdgeCount(), reply.SkippedEdges, false)
	fmt.Fprintln(out)
	printKeyValue(out, "Filter", f.String())
	printKeyValue(out, "Total files", fmt.Sprint(impact.TotalFiles(reply.GetsRecompiledMap)))
	printKeyValue(out, "Max recompile", fmt.Sprint(stats.MaxCauseRecompile))
	printKeyValue(out, "Mean recompile", fmt.Sprintf("%.2f", stats.MeanCauseRecompile))
	fmt.Fprintln(out)
	printRanking(out, "Files causing the most recompiles", impact.TopCauseRecompile(reply.CauseRecompileMap, opts.top))
	printRanking(out, "Files recompiled most often", impact.TopGetsRecompiled(reply.DependenciesMap, opts.top))
	if reply.SkippedEdges > 0 {
		printWarning(out, "%d edges referenced unknown files and were skipped", reply.SkippedEdges)
	}
	fmt.Fprintln(out)
	printNextStep(out, "Inspect a file", appName+" recompile "+path+" <file>")
	return nil
}
