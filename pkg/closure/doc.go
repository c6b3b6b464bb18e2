// Package closure computes full transitive closures over a dependency graph
// in both directions.
//
// For every node, [Compute] returns the set of nodes it depends on
// (Closures.Dependencies, reachable over forward edges) and the set of nodes
// that must recompile when it changes (Closures.CauseRecompile, reachable over
// reverse edges).
//
// # Algorithm
//
// Per-root breadth-first search costs O(V·(V+E)). Compute instead contracts
// strongly connected components with Tarjan's algorithm and walks the
// condensation in reverse topological order, so each component's reachable
// set is the union of its successors' sets. Sets are bitsets over node
// positions until the final conversion to sorted [Set] values. Members of a
// cycle share one set, which contains the members themselves; a node that is
// not on a cycle never appears in its own set.
//
// [Naive] is the straightforward per-root search. It is kept as the reference
// the tests compare against.
//
// # Edge Kinds
//
// [AllKinds] follows every edge and is the default. [PropagatingOnly]
// follows only compile and export edges, which are the ones that actually
// force recompilation.
//
// # Cancellation
//
// Compute checks its context between components and returns ctx.Err() when
// cancelled; no partial result is returned.
package closure
