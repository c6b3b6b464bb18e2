package depgraph

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"path"
	"slices"

	"github.com/charmbracelet/log"
)

var (
	// ErrInvalidNodeID is returned by [Build] and [FromAdjacency] when a node
	// has an empty identifier.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNode is matched (via errors.Is) by every [*DuplicateNodeError].
	// A duplicate node id rejects the whole load.
	ErrDuplicateNode = errors.New("duplicate node ID")
)

// DuplicateNodeError reports the first node id that appeared twice.
type DuplicateNodeError struct {
	ID NodeID
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("%v: %s", ErrDuplicateNode, e.ID)
}

// Unwrap lets errors.Is match [ErrDuplicateNode].
func (e *DuplicateNodeError) Unwrap() error { return ErrDuplicateNode }

// NodeID identifies a node. For dependency dumps it is the file path relative
// to the project root, e.g. "lib/demo_dep/a.ex".
type NodeID string

// Node is a file in the dependency graph.
type Node struct {
	ID    NodeID `json:"id"`
	Label string `json:"label,omitempty"` // display label, defaults to ID
	Group string `json:"group,omitempty"` // display grouping, defaults to the directory
}

// DisplayLabel returns Label, or the ID when no label was given.
func (n Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return string(n.ID)
}

// DefaultGroup returns Group, or the directory part of the ID when no group
// was given. Files at the project root are grouped under ".".
func (n Node) DefaultGroup() string {
	if n.Group != "" {
		return n.Group
	}
	return path.Dir(string(n.ID))
}

// RawEdge is an edge row as read from input, before its label is resolved.
type RawEdge struct {
	Source NodeID
	Target NodeID
	Label  string
}

// Edge is a typed, directed dependency: Source depends on Target.
type Edge struct {
	Source NodeID `json:"source"`
	Target NodeID `json:"target"`
	Kind   Kind   `json:"type"`
}

// String formats the edge as "source -> target (kind)".
func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s (%s)", e.Source, e.Target, e.Kind)
}

// Target is one entry of a node's forward adjacency. Its JSON form
// {"id": ..., "type": "compile"} is the wire format of analysis requests.
type Target struct {
	ID   NodeID `json:"id"`
	Kind Kind   `json:"type"`
}

// Graph is an immutable dependency graph. Create one with [Build] or
// [FromAdjacency]; the zero value is an empty graph.
type Graph struct {
	nodes   []Node
	index   map[NodeID]int
	edges   []Edge
	forward map[NodeID][]Target
}

// Option configures graph construction.
type Option func(*buildConfig)

type buildConfig struct {
	logger *log.Logger
}

// WithLogger routes construction warnings (dangling edges) to l.
func WithLogger(l *log.Logger) Option {
	return func(c *buildConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func newBuildConfig(opts []Option) buildConfig {
	c := buildConfig{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Build constructs a graph from node and edge rows. Edge kinds are derived
// from labels with [KindFromLabel].
//
// Build fails with [ErrInvalidNodeID] for an empty id and with a
// [*DuplicateNodeError] when an id repeats; no partial graph is returned.
// Edges whose source or target is not a declared node are skipped and
// recorded in the returned [Report].
func Build(nodes []Node, edges []RawEdge, opts ...Option) (*Graph, *Report, error) {
	cfg := newBuildConfig(opts)
	g, err := newGraph(nodes, len(edges))
	if err != nil {
		return nil, nil, err
	}

	report := &Report{}
	for _, e := range edges {
		g.addEdge(Edge{Source: e.Source, Target: e.Target, Kind: KindFromLabel(e.Label)}, report, cfg.logger)
	}
	report.log(cfg.logger)
	return g, report, nil
}

// FromAdjacency constructs a graph from a pre-grouped forward adjacency, the
// shape carried by analysis requests. Sources are visited in node input order
// so that edge order is deterministic; adjacency keys that are not declared
// nodes are visited last in sorted order and all their edges are dangling.
func FromAdjacency(nodes []Node, targets map[NodeID][]Target, opts ...Option) (*Graph, *Report, error) {
	cfg := newBuildConfig(opts)
	size := 0
	for _, ts := range targets {
		size += len(ts)
	}
	g, err := newGraph(nodes, size)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{}
	for _, n := range nodes {
		for _, t := range targets[n.ID] {
			g.addEdge(Edge{Source: n.ID, Target: t.ID, Kind: t.Kind}, report, cfg.logger)
		}
	}
	for _, src := range slices.Sorted(maps.Keys(targets)) {
		if g.Has(src) {
			continue
		}
		for _, t := range targets[src] {
			g.addEdge(Edge{Source: src, Target: t.ID, Kind: t.Kind}, report, cfg.logger)
		}
	}
	report.log(cfg.logger)
	return g, report, nil
}

func newGraph(nodes []Node, edgeHint int) (*Graph, error) {
	g := &Graph{
		nodes:   make([]Node, 0, len(nodes)),
		index:   make(map[NodeID]int, len(nodes)),
		edges:   make([]Edge, 0, edgeHint),
		forward: make(map[NodeID][]Target, len(nodes)),
	}
	for _, n := range nodes {
		if n.ID == "" {
			return nil, ErrInvalidNodeID
		}
		if _, exists := g.index[n.ID]; exists {
			return nil, &DuplicateNodeError{ID: n.ID}
		}
		g.index[n.ID] = len(g.nodes)
		g.nodes = append(g.nodes, n)
	}
	return g, nil
}

func (g *Graph) addEdge(e Edge, report *Report, logger *log.Logger) {
	_, okS := g.index[e.Source]
	_, okT := g.index[e.Target]
	if !okS || !okT {
		report.Dangling = append(report.Dangling, DanglingEdge{
			Edge:          e,
			MissingSource: !okS,
			MissingTarget: !okT,
		})
		logger.Debug("skipping dangling edge", "source", e.Source, "target", e.Target, "kind", e.Kind)
		return
	}
	g.edges = append(g.edges, e)
	g.forward[e.Source] = append(g.forward[e.Source], Target{ID: e.Target, Kind: e.Kind})
}

// Nodes returns the nodes in input order. The slice is a copy.
func (g *Graph) Nodes() []Node { return slices.Clone(g.nodes) }

// NodeIDs returns the node ids in input order.
func (g *Graph) NodeIDs() []NodeID {
	ids := make([]NodeID, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.ID
	}
	return ids
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Has reports whether id is a declared node.
func (g *Graph) Has(id NodeID) bool {
	_, ok := g.index[id]
	return ok
}

// Index returns the input position of id. Positions are dense in
// [0, NodeCount) and are what the closure bitsets are indexed by.
func (g *Graph) Index(id NodeID) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// At returns the node at input position i.
func (g *Graph) At(i int) Node { return g.nodes[i] }

// Edges returns the accepted edges in input order. The slice is a copy.
func (g *Graph) Edges() []Edge { return slices.Clone(g.edges) }

// Targets returns the outgoing adjacency of id in input order, or nil.
// The returned slice must not be modified.
func (g *Graph) Targets(id NodeID) []Target { return g.forward[id] }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of accepted edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Adjacency returns a copy of the forward adjacency keyed by source. Nodes
// without outgoing edges have no entry, matching the wire format.
func (g *Graph) Adjacency() map[NodeID][]Target {
	out := make(map[NodeID][]Target, len(g.forward))
	for id, ts := range g.forward {
		out[id] = slices.Clone(ts)
	}
	return out
}

// Reverse returns the transposed adjacency: for every edge a->b, an entry
// {a, kind} under b. Entries appear in input edge order. The result is
// computed on each call and owned by the caller.
func (g *Graph) Reverse() map[NodeID][]Target {
	rev := make(map[NodeID][]Target, len(g.nodes))
	for _, e := range g.edges {
		rev[e.Target] = append(rev[e.Target], Target{ID: e.Source, Kind: e.Kind})
	}
	return rev
}

// Sources returns nodes without incoming edges, in input order.
func (g *Graph) Sources() []Node {
	incoming := make(map[NodeID]bool, len(g.nodes))
	for _, e := range g.edges {
		incoming[e.Target] = true
	}
	var out []Node
	for _, n := range g.nodes {
		if !incoming[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// Sinks returns nodes without outgoing edges, in input order.
func (g *Graph) Sinks() []Node {
	var out []Node
	for _, n := range g.nodes {
		if len(g.forward[n.ID]) == 0 {
			out = append(out, n)
		}
	}
	return out
}
