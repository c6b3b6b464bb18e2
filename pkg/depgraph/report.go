package depgraph

import "github.com/charmbracelet/log"

// DanglingEdge is an input edge that was dropped because one of its
// endpoints is not a declared node.
type DanglingEdge struct {
	Edge          Edge
	MissingSource bool
	MissingTarget bool
}

// Report collects non-fatal findings of graph construction.
type Report struct {
	Dangling []DanglingEdge
}

// SkippedEdges returns the number of dropped dangling edges.
func (r *Report) SkippedEdges() int {
	if r == nil {
		return 0
	}
	return len(r.Dangling)
}

func (r *Report) log(l *log.Logger) {
	if n := r.SkippedEdges(); n > 0 {
		l.Warn("dropped edges referencing unknown nodes", "count", n)
	}
}
