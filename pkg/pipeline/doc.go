// Package pipeline runs the analysis stages over one graph load.
//
// # Stages
//
//  1. build: [depgraph.FromAdjacency] turns node rows and the forward
//     adjacency into a graph, dropping dangling edges into a report
//  2. closure: [closure.Compute] derives the dependency and cause-recompile
//     closures, memoized by graph hash in a [cache.Cache]
//  3. summarize: [impact.Summarize] counts the recompile impact per file
//
// Every stage reports to [observability.Analysis] and wraps its failure in a
// [*StageError], so the worker can name the stage in its failure reply.
//
// # Usage
//
//	runner := pipeline.NewRunner(lru, nil, logger)
//	w := worker.New(runner.AnalyzeFunc(pipeline.Options{}), logger)
//
// A [Runner] keeps no per-analysis state and may be shared between
// goroutines.
package pipeline
