package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/worker"
)

// WriteRows writes g as a tagged row array: all nodes in input order, then
// all accepted edges. WriteRows does not close w.
func WriteRows(w io.Writer, g *depgraph.Graph) error {
	rows := make([]row, 0, g.NodeCount()+g.EdgeCount())
	for _, n := range g.Nodes() {
		rows = append(rows, row{Type: RowTypeNode, ID: string(n.ID), Label: n.Label, Group: n.Group})
	}
	for _, e := range g.Edges() {
		rows = append(rows, row{
			Type:   RowTypeEdge,
			Source: string(e.Source),
			Target: string(e.Target),
			Label:  e.Kind.Label(),
		})
	}
	return writeJSON(w, rows)
}

// ExportRows writes g to path; see [WriteRows].
func ExportRows(g *depgraph.Graph, path string) error {
	return toPath(path, func(w io.Writer) error { return WriteRows(w, g) })
}

// WriteReply writes an analysis reply as indented JSON.
func WriteReply(w io.Writer, reply worker.Reply) error {
	return writeJSON(w, reply)
}

// ExportReply writes reply to path; see [WriteReply].
func ExportReply(reply worker.Reply, path string) error {
	return toPath(path, func(w io.Writer) error { return WriteReply(w, reply) })
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func toPath(path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
