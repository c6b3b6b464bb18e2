// Package depgraph provides the immutable source-file dependency graph that
// every analysis in depviz runs on.
//
// # Overview
//
// A dependency dump (for example the output of `mix xref graph`) lists files
// and labeled edges between them. Edge labels select one of three kinds:
//
//   - [KindCompile]: the source needs the target at compile time
//   - [KindExport]: the source depends on the target's exported API
//   - [KindRuntime]: every other label, including the empty one
//
// [KindFromLabel] maps raw labels onto kinds and never fails: unknown labels
// become [KindRuntime].
//
// # Building
//
// Use [Build] with node and edge rows, or [FromAdjacency] with the pre-grouped
// forward adjacency carried by analysis requests:
//
//	g, report, err := depgraph.Build(nodes, edges, depgraph.WithLogger(logger))
//	if err != nil {
//	    return err // duplicate or empty node id
//	}
//	if n := report.SkippedEdges(); n > 0 {
//	    logger.Warn("dropped dangling edges", "count", n)
//	}
//
// Duplicate node ids reject the whole load with a [*DuplicateNodeError].
// Edges that reference undeclared nodes are dropped and recorded in the
// [Report] instead, since real dumps routinely point at external or virtual
// files.
//
// # Determinism
//
// The forward adjacency of every node preserves input edge order. Consumers
// that break ties by first discovery (path finding, DOT export) therefore
// produce the same output on every run.
//
// # Concurrency
//
// A [Graph] is never modified after construction, so it is safe for
// concurrent readers. Accessors that return slices return copies or views
// that callers must treat as read-only.
package depgraph
