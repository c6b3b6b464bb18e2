// Package observability provides hooks for metrics and tracing of analysis
// runs, cache operations and the background worker.
//
// Libraries call the registered hooks; binaries register implementations at
// startup. The default hooks do nothing, so packages such as pipeline and
// worker carry no dependency on a metrics backend. The serve command
// installs Prometheus-backed hooks.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetAnalysisHooks(&myAnalysisHooks{})
//	    observability.SetWorkerHooks(&myWorkerHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Analysis().OnStageStart(ctx, "closure", nodeCount)
//	// ... compute closures ...
//	observability.Analysis().OnStageComplete(ctx, "closure", duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Analysis Hooks
// =============================================================================

// AnalysisHooks receives events from analysis stages and path queries.
type AnalysisHooks interface {
	// Stage events. Stages are "build", "closure" and "summarize".
	OnStageStart(ctx context.Context, stage string, nodeCount int)
	OnStageComplete(ctx context.Context, stage string, duration time.Duration, err error)

	// OnPathQuery records a foreground path search.
	OnPathQuery(ctx context.Context, found bool, duration time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Worker Hooks
// =============================================================================

// WorkerHooks receives events from the background analysis worker.
type WorkerHooks interface {
	// OnJobQueued records a request accepted into the worker's slot.
	OnJobQueued(ctx context.Context, id string)

	// OnJobSuperseded records a request replaced by a newer one.
	OnJobSuperseded(ctx context.Context, id string, running bool)

	// OnJobComplete records a delivered reply. code is empty on success.
	OnJobComplete(ctx context.Context, id string, code string, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopAnalysisHooks is a no-op implementation of AnalysisHooks.
type NoopAnalysisHooks struct{}

func (NoopAnalysisHooks) OnStageStart(context.Context, string, int)                     {}
func (NoopAnalysisHooks) OnStageComplete(context.Context, string, time.Duration, error) {}
func (NoopAnalysisHooks) OnPathQuery(context.Context, bool, time.Duration)              {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopWorkerHooks is a no-op implementation of WorkerHooks.
type NoopWorkerHooks struct{}

func (NoopWorkerHooks) OnJobQueued(context.Context, string)                          {}
func (NoopWorkerHooks) OnJobSuperseded(context.Context, string, bool)                {}
func (NoopWorkerHooks) OnJobComplete(context.Context, string, string, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	analysisHooks AnalysisHooks = NoopAnalysisHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	workerHooks   WorkerHooks   = NoopWorkerHooks{}
	hooksMu       sync.RWMutex
)

// SetAnalysisHooks registers custom analysis hooks.
// This should be called once at application startup before any analysis runs.
func SetAnalysisHooks(h AnalysisHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		analysisHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetWorkerHooks registers custom worker hooks.
// This should be called once at application startup before a worker starts.
func SetWorkerHooks(h WorkerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		workerHooks = h
	}
}

// Analysis returns the registered analysis hooks.
func Analysis() AnalysisHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return analysisHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Worker returns the registered worker hooks.
func Worker() WorkerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return workerHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	analysisHooks = NoopAnalysisHooks{}
	cacheHooks = NoopCacheHooks{}
	workerHooks = NoopWorkerHooks{}
}
