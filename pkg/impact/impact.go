// Package impact derives scalar summaries from transitive closures: how many
// files recompile when a file changes, and which files are the most
// expensive to touch.
package impact

import (
	"cmp"
	"slices"

	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/depgraph"
)

// GetsRecompiledMap maps each node to the number of nodes whose change causes
// it to recompile.
type GetsRecompiledMap map[depgraph.NodeID]int

// Summarize counts, for each node, the size of its set in m. Pass the
// cause-recompile closure to get the per-file recompile impact.
func Summarize(m closure.Map) GetsRecompiledMap {
	out := make(GetsRecompiledMap, len(m))
	for id, s := range m {
		out[id] = s.Len()
	}
	return out
}

// TotalFiles returns the number of distinct files in the summary.
func TotalFiles(m GetsRecompiledMap) int { return len(m) }

// Entry is one row of a ranked list.
type Entry struct {
	ID    depgraph.NodeID `json:"id"`
	Count int             `json:"count"`
}

// TopCauseRecompile ranks files by how many other files they force to
// recompile. It returns at most n entries; n <= 0 returns all of them.
func TopCauseRecompile(causeRecompile closure.Map, n int) []Entry {
	return top(causeRecompile, n)
}

// TopGetsRecompiled ranks files by how many files they depend on, which is
// how often they get recompiled when something else changes.
// It returns at most n entries; n <= 0 returns all of them.
func TopGetsRecompiled(dependencies closure.Map, n int) []Entry {
	return top(dependencies, n)
}

func top(m closure.Map, n int) []Entry {
	entries := make([]Entry, 0, len(m))
	for id, s := range m {
		entries = append(entries, Entry{ID: id, Count: s.Len()})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if n > 0 && n < len(entries) {
		entries = entries[:n]
	}
	return entries
}

// Stats aggregates a recompile summary.
type Stats struct {
	TotalFiles         int     `json:"total_files"`
	MaxCauseRecompile  int     `json:"max_cause_recompile"`
	MeanCauseRecompile float64 `json:"mean_cause_recompile"`
}

// Describe aggregates the cause-recompile closure into [Stats].
func Describe(causeRecompile closure.Map) Stats {
	st := Stats{TotalFiles: len(causeRecompile)}
	if st.TotalFiles == 0 {
		return st
	}
	sum := 0
	for _, s := range causeRecompile {
		sum += s.Len()
		st.MaxCauseRecompile = max(st.MaxCauseRecompile, s.Len())
	}
	st.MeanCauseRecompile = float64(sum) / float64(st.TotalFiles)
	return st
}
