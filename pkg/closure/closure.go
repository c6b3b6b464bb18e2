package closure

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/depviz/pkg/depgraph"
)

// Compute returns the forward and reverse transitive closures of g over the
// edges selected by f. Both directions are computed concurrently; g is only
// read.
func Compute(ctx context.Context, g *depgraph.Graph, f Filter) (Closures, error) {
	fwd := indexAdjacency(g, f)
	rev := transpose(fwd)

	var deps, causes Map
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		m, err := reachability(ctx, g, fwd)
		deps = m
		return err
	})
	eg.Go(func() error {
		m, err := reachability(ctx, g, rev)
		causes = m
		return err
	})
	if err := eg.Wait(); err != nil {
		return Closures{}, err
	}
	return Closures{Dependencies: deps, CauseRecompile: causes}, nil
}

// indexAdjacency converts the forward adjacency of g into position-indexed
// lists, keeping only edges allowed by f. Input order is preserved.
func indexAdjacency(g *depgraph.Graph, f Filter) [][]int {
	adj := make([][]int, g.NodeCount())
	for i, id := range g.NodeIDs() {
		for _, t := range g.Targets(id) {
			if !f.Allows(t.Kind) {
				continue
			}
			j, _ := g.Index(t.ID)
			adj[i] = append(adj[i], j)
		}
	}
	return adj
}

func transpose(adj [][]int) [][]int {
	rev := make([][]int, len(adj))
	for v, ws := range adj {
		for _, w := range ws {
			rev[w] = append(rev[w], v)
		}
	}
	return rev
}

// reachability computes, for every node, the set of nodes reachable from it
// over adj. It contracts components and propagates sets bottom-up through
// the condensation so that every component is visited once.
func reachability(ctx context.Context, g *depgraph.Graph, adj [][]int) (Map, error) {
	n := len(adj)
	c := tarjan(adj)

	// down[C] holds every node reachable from C plus the members of C.
	down := make([]bitset, len(c.members))
	lastSeen := make([]int, len(c.members))
	for i := range lastSeen {
		lastSeen[i] = -1
	}

	for id, ms := range c.members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := newBitset(n)
		for _, v := range ms {
			b.set(v)
			for _, w := range adj[v] {
				d := c.comp[w]
				if d == id || lastSeen[d] == id {
					continue
				}
				lastSeen[d] = id
				b.or(down[d])
			}
		}
		down[id] = b
	}

	out := make(Map, n)
	for id, ms := range c.members {
		s := toSet(g, down[id], c.cyclic[id], ms[0])
		s = s[:len(s):len(s)]
		for _, v := range ms {
			out[g.At(v).ID] = s
		}
	}
	return out, nil
}

// toSet converts a component's bitset to a sorted Set. For acyclic
// components the single member is excluded: a node only reaches itself
// through a cycle. Members of one cyclic component share the returned Set.
func toSet(g *depgraph.Graph, b bitset, cyclic bool, member int) Set {
	s := make(Set, 0, b.count())
	b.each(func(i int) {
		if !cyclic && i == member {
			return
		}
		s = append(s, g.At(i).ID)
	})
	slices.Sort(s)
	return s
}

// Naive computes the same closures as [Compute] with one breadth-first
// search per node and direction. It is quadratic and meant as a reference.
func Naive(g *depgraph.Graph, f Filter) Closures {
	fwd := indexAdjacency(g, f)
	rev := transpose(fwd)
	return Closures{
		Dependencies:   naiveReach(g, fwd),
		CauseRecompile: naiveReach(g, rev),
	}
}

func naiveReach(g *depgraph.Graph, adj [][]int) Map {
	out := make(Map, len(adj))
	for root := range adj {
		seen := newBitset(len(adj))
		queue := slices.Clone(adj[root])
		for _, w := range queue {
			seen.set(w)
		}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			for _, w := range adj[v] {
				if !seen.has(w) {
					seen.set(w)
					queue = append(queue, w)
				}
			}
		}
		s := make(Set, 0, seen.count())
		seen.each(func(i int) { s = append(s, g.At(i).ID) })
		slices.Sort(s)
		out[g.At(root).ID] = s
	}
	return out
}
