package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/errors"
	"github.com/matzehuels/depviz/pkg/render/nodelink"
)

const (
	modeDeps      = "deps"
	modeAncestors = "ancestors"
)

type exportOpts struct {
	mode   string
	format string
	output string
}

// exportCommand renders one file's closure as a Graphviz diagram.
func (c *CLI) exportCommand() *cobra.Command {
	opts := exportOpts{mode: modeDeps, format: string(nodelink.FormatDOT)}

	cmd := &cobra.Command{
		Use:   "export [file] [node]",
		Short: "Export a file's dependencies or recompile set as a diagram",
		Long: `Export a file's dependencies or recompile set as a diagram.

The diagram contains the file and its closure, with edges coloured by kind:
compile in red, export in amber and runtime in blue. Only the most connected
files are labelled; set max_labels_to_show in the config to change this.

dot output is written as is; svg and png are laid out by Graphviz.`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeArgs(1),
	}
	filter := addFilterFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if opts.mode != modeDeps && opts.mode != modeAncestors {
			return errors.New(errors.ErrCodeInvalidInput, "--mode must be %s or %s", modeDeps, modeAncestors)
		}
		format, err := nodelink.ParseFormat(opts.format)
		if err != nil {
			return err
		}
		f, err := filter.resolve(c.Config)
		if err != nil {
			return err
		}
		return c.runExport(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], depgraph.NodeID(args[1]), f, format, opts)
	}

	cmd.Flags().StringVar(&opts.mode, "mode", opts.mode, "closure to draw: deps (default), ancestors")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: dot (default), svg, png")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, out, errOut io.Writer, path string, id depgraph.NodeID,
	f closure.Filter, format nodelink.Format, opts exportOpts) error {
	l, err := c.load(path)
	if err != nil {
		return err
	}
	if err := requireNode(l.graph, id); err != nil {
		return err
	}
	reply, err := c.analyze(ctx, l, f)
	if err != nil {
		return err
	}

	set, title := reply.DependenciesMap[id], "dependencies of "+string(id)
	if opts.mode == modeAncestors {
		set, title = reply.CauseRecompileMap[id], "files recompiled when "+string(id)+" changes"
	}
	dot := nodelink.ToDOT(l.graph, id, set, nodelink.Options{
		Filter:    f,
		MaxLabels: c.Config.MaxLabelsToShow,
		Title:     title,
	})
	data, err := nodelink.Render(ctx, dot, format)
	if err != nil {
		return err
	}

	if opts.output == "" {
		_, err := out.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return err
	}
	printSuccess(errOut, "Exported %s (%d files)", opts.mode, set.Len()+1)
	printFile(errOut, opts.output)
	return nil
}
