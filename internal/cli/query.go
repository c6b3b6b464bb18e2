package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/observability"
	"github.com/matzehuels/depviz/pkg/pathfind"
	"github.com/matzehuels/depviz/pkg/worker"
)

// depsCommand prints what one file depends on.
func (c *CLI) depsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "deps [file] [node]",
		Short:             "List the files a file depends on, directly and transitively",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeArgs(1),
	}
	filter := addFilterFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		f, err := filter.resolve(c.Config)
		if err != nil {
			return err
		}
		return c.runSetQuery(cmd.Context(), cmd.OutOrStdout(), args[0], depgraph.NodeID(args[1]), f,
			"Dependencies of", func(r worker.Reply, id depgraph.NodeID) closure.Set { return r.DependenciesMap[id] })
	}
	return cmd
}

// recompileCommand prints the files that recompile after one file changes.
func (c *CLI) recompileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recompile [file] [node]",
		Short: "List the files that recompile when a file changes",
		Long: `List the files that recompile when a file changes.

Use --filter compile to follow only compile and export edges, which are the
dependencies that force a recompile.`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeArgs(1),
	}
	filter := addFilterFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		f, err := filter.resolve(c.Config)
		if err != nil {
			return err
		}
		return c.runSetQuery(cmd.Context(), cmd.OutOrStdout(), args[0], depgraph.NodeID(args[1]), f,
			"Changing", func(r worker.Reply, id depgraph.NodeID) closure.Set { return r.CauseRecompileMap[id] })
	}
	return cmd
}

func (c *CLI) runSetQuery(ctx context.Context, out io.Writer, path string, id depgraph.NodeID, f closure.Filter,
	title string, pick func(worker.Reply, depgraph.NodeID) closure.Set) error {
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
	set := pick(reply, id)
	printSet(out, title, id, set)
	if c.Config.LogFilesToCompile {
		c.Logger.Debug("files to compile", "file", id, "files", reply.CauseRecompileMap[id])
	}
	return nil
}

// pathCommand prints the shortest dependency path between two files.
func (c *CLI) pathCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path [file] [from] [to]",
		Short: "Show the shortest dependency path between two files",
		Long: `Show the shortest dependency path between two files.

The path follows edges from a file to what it depends on. Among equally
short paths the one discovered first in input edge order is shown. The
command fails when either file is unknown or when no path exists.`,
		Args:              cobra.ExactArgs(3),
		ValidArgsFunction: completeArgs(2),
	}
	filter := addFilterFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		f, err := filter.resolve(c.Config)
		if err != nil {
			return err
		}
		l, err := c.load(args[0])
		if err != nil {
			return err
		}
		return c.runPath(cmd.Context(), cmd.OutOrStdout(), l.graph, depgraph.NodeID(args[1]), depgraph.NodeID(args[2]), f)
	}
	return cmd
}

// runPath answers in the foreground; path search needs no worker.
func (c *CLI) runPath(ctx context.Context, out io.Writer, g *depgraph.Graph, from, to depgraph.NodeID, f closure.Filter) error {
	start := time.Now()
	p, err := pathfind.FindFiltered(g, from, to, f)
	observability.Analysis().OnPathQuery(ctx, err == nil, time.Since(start))
	if err != nil {
		return err
	}

	fmt.Fprintln(out, StyleTitle.Render("Path")+" "+StyleDim.Render(fmt.Sprintf("(%d edges)", len(p))))
	if len(p) == 0 {
		printFile(out, string(from))
		return nil
	}
	printFile(out, string(p[0].Source))
	for _, e := range p {
		fmt.Fprintln(out, "    "+StyleDim.Render(e.Kind.String()))
		printFile(out, string(e.Target))
	}
	return nil
}
