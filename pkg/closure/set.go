package closure

import (
	"slices"

	"github.com/matzehuels/depviz/pkg/depgraph"
)

// Set is a sorted, duplicate-free list of node ids.
type Set []depgraph.NodeID

// NewSet sorts and de-duplicates ids into a Set.
func NewSet(ids ...depgraph.NodeID) Set {
	s := slices.Clone(ids)
	slices.Sort(s)
	return Set(slices.Compact(s))
}

// Contains reports whether id is in the set.
func (s Set) Contains(id depgraph.NodeID) bool {
	_, ok := slices.BinarySearch(s, id)
	return ok
}

// Len returns the number of members.
func (s Set) Len() int { return len(s) }

// Map assigns a Set to every node of a graph. Nodes with nothing reachable
// map to an empty, non-nil Set so that they serialize as [].
//
// Sets in a Map returned by [Compute] are read-only: members of one cycle
// share a single backing array. Appending is safe, since every Set is
// capacity-capped, but clone a Set before modifying its elements.
type Map map[depgraph.NodeID]Set

// Equal reports whether m and o hold the same sets.
func (m Map) Equal(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for id, s := range m {
		t, ok := o[id]
		if !ok || !slices.Equal(s, t) {
			return false
		}
	}
	return true
}

// Closures holds both transitive closures of one graph.
type Closures struct {
	// Dependencies maps each node to everything it depends on.
	Dependencies   Map `json:"dependencies"`
	// CauseRecompile maps each node to everything that recompiles when it changes.
	CauseRecompile Map `json:"causeRecompile"`
}
