// Package pathfind finds a shortest dependency path between two files.
//
// Paths are found by breadth-first search over the forward adjacency, which
// preserves input edge order. The returned path therefore has the fewest
// edges, and among equally short paths it is the one discovered first.
//
// Callers distinguish three outcomes: a path (possibly empty when start and
// end coincide), [ErrNotFound] when both nodes exist but are not connected,
// and [ErrUnknownNode] when the query names a node that does not exist.
package pathfind

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/depgraph"
)

var (
	// ErrNotFound is returned when no path connects two existing nodes.
	ErrNotFound = errors.New("no path found")

	// ErrUnknownNode is matched by every [*UnknownNodeError].
	ErrUnknownNode = errors.New("unknown node")
)

// UnknownNodeError reports a query endpoint that is not in the graph.
type UnknownNodeError struct {
	ID depgraph.NodeID
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUnknownNode, e.ID)
}

// Unwrap lets errors.Is match [ErrUnknownNode].
func (e *UnknownNodeError) Unwrap() error { return ErrUnknownNode }

// Path is a simple walk from a start node to an end node.
type Path []depgraph.Edge

// Nodes returns the visited nodes from start to end. An empty path has no
// nodes.
func (p Path) Nodes() []depgraph.NodeID {
	if len(p) == 0 {
		return nil
	}
	ids := make([]depgraph.NodeID, 0, len(p)+1)
	ids = append(ids, p[0].Source)
	for _, e := range p {
		ids = append(ids, e.Target)
	}
	return ids
}

// String formats the path as "a -> b -> c".
func (p Path) String() string {
	ids := p.Nodes()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}

// Find returns the shortest path from start to end following any edge kind.
func Find(g *depgraph.Graph, start, end depgraph.NodeID) (Path, error) {
	return FindFiltered(g, start, end, closure.AllKinds)
}

// FindFiltered is [Find] restricted to edges allowed by f. With
// closure.PropagatingOnly it explains why changing end recompiles start.
func FindFiltered(g *depgraph.Graph, start, end depgraph.NodeID, f closure.Filter) (Path, error) {
	for _, id := range []depgraph.NodeID{start, end} {
		if !g.Has(id) {
			return nil, &UnknownNodeError{ID: id}
		}
	}
	return search(g.Targets, start, end, f)
}

// FindInAdjacency answers a path query directly against a forward adjacency
// in wire form. The node set is every adjacency key and every target.
func FindInAdjacency(targets map[depgraph.NodeID][]depgraph.Target, start, end depgraph.NodeID) (Path, error) {
	known := make(map[depgraph.NodeID]bool, len(targets))
	for src, ts := range targets {
		known[src] = true
		for _, t := range ts {
			known[t.ID] = true
		}
	}
	for _, id := range []depgraph.NodeID{start, end} {
		if !known[id] {
			return nil, &UnknownNodeError{ID: id}
		}
	}
	next := func(id depgraph.NodeID) []depgraph.Target { return targets[id] }
	return search(next, start, end, closure.AllKinds)
}

func search(next func(depgraph.NodeID) []depgraph.Target, start, end depgraph.NodeID, f closure.Filter) (Path, error) {
	if start == end {
		return Path{}, nil
	}

	via := map[depgraph.NodeID]depgraph.Edge{}
	seen := map[depgraph.NodeID]bool{start: true}
	queue := []depgraph.NodeID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range next(cur) {
			if seen[t.ID] || !f.Allows(t.Kind) {
				continue
			}
			seen[t.ID] = true
			via[t.ID] = depgraph.Edge{Source: cur, Target: t.ID, Kind: t.Kind}
			if t.ID == end {
				return walkBack(via, start, end), nil
			}
			queue = append(queue, t.ID)
		}
	}
	return nil, ErrNotFound
}

func walkBack(via map[depgraph.NodeID]depgraph.Edge, start, end depgraph.NodeID) Path {
	var p Path
	for id := end; id != start; {
		e := via[id]
		p = append(p, e)
		id = e.Source
	}
	for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
		p[i], p[j] = p[j], p[i]
	}
	return p
}
