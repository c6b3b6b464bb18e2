package io

import (
	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/worker"
)

// TargetObjects groups edges by source into the forward adjacency of the
// request wire format. Edge order within a source is preserved.
func (r Rows) TargetObjects() map[depgraph.NodeID][]depgraph.Target {
	out := make(map[depgraph.NodeID][]depgraph.Target)
	for _, e := range r.Edges {
		out[e.Source] = append(out[e.Source], depgraph.Target{
			ID:   e.Target,
			Kind: depgraph.KindFromLabel(e.Label),
		})
	}
	return out
}

// ToRequest builds an analysis request for rows.
func ToRequest(rows Rows) worker.Request {
	return worker.Request{
		Type:          worker.RequestTypeInit,
		NodeData:      rows.Nodes,
		TargetObjects: rows.TargetObjects(),
	}
}

// Build constructs the graph model directly from rows, for foreground use
// such as path queries.
func (r Rows) Build(opts ...depgraph.Option) (*depgraph.Graph, *depgraph.Report, error) {
	return depgraph.Build(r.Nodes, r.Edges, opts...)
}
