package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/depviz/pkg/cache"
	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/impact"
	"github.com/matzehuels/depviz/pkg/observability"
	"github.com/matzehuels/depviz/pkg/worker"
)

// Runner executes analyses with closure caching.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// TTL bounds how long cached closures live. Zero keeps them until
	// evicted.
	TTL time.Duration
}

// NewRunner creates a runner. A nil cache disables caching, a nil keyer
// uses [cache.DefaultKeyer] and a nil logger uses log.Default.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Result is the outcome of one analysis.
type Result struct {
	Graph          *depgraph.Graph
	GraphHash      string
	Filter         closure.Filter
	Closures       closure.Closures
	GetsRecompiled impact.GetsRecompiledMap
	Report         *depgraph.Report
	Stats          Stats
	CacheHit       bool
}

// Stats holds sizes and stage timings.
type Stats struct {
	NodeCount     int
	EdgeCount     int
	SkippedEdges  int
	BuildTime     time.Duration
	ClosureTime   time.Duration
	SummarizeTime time.Duration
}

// Total returns the summed stage time.
func (s Stats) Total() time.Duration { return s.BuildTime + s.ClosureTime + s.SummarizeTime }

// Reply converts the result into the worker's reply message.
func (r *Result) Reply(id string) worker.Reply {
	return worker.Reply{
		ID:                id,
		DependenciesMap:   r.Closures.Dependencies,
		CauseRecompileMap: r.Closures.CauseRecompile,
		GetsRecompiledMap: r.GetsRecompiled,
		SkippedEdges:      r.Report.SkippedEdges(),
	}
}

// Analyze builds the graph from nodes and targets and computes its closures
// and recompile summary. No partial result is returned on failure.
func (r *Runner) Analyze(ctx context.Context, nodes []depgraph.Node, targets map[depgraph.NodeID][]depgraph.Target, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(r.Logger); err != nil {
		return nil, err
	}
	logger := opts.Logger
	res := &Result{Filter: opts.Filter}

	var err error
	res.Stats.BuildTime, err = runStage(ctx, StageBuild, len(nodes), func() error {
		g, report, err := depgraph.FromAdjacency(nodes, targets, depgraph.WithLogger(logger))
		if err != nil {
			return err
		}
		res.Graph, res.Report = g, report
		res.GraphHash, err = graphHash(g)
		return err
	})
	if err != nil {
		return nil, err
	}
	res.Stats.NodeCount = res.Graph.NodeCount()
	res.Stats.EdgeCount = res.Graph.EdgeCount()
	res.Stats.SkippedEdges = res.Report.SkippedEdges()

	res.Stats.ClosureTime, err = runStage(ctx, StageClosure, res.Stats.NodeCount, func() error {
		c, hit, err := r.closures(ctx, res.Graph, res.GraphHash, opts)
		res.Closures, res.CacheHit = c, hit
		return err
	})
	if err != nil {
		return nil, err
	}

	res.Stats.SummarizeTime, err = runStage(ctx, StageSummarize, res.Stats.NodeCount, func() error {
		res.GetsRecompiled = impact.Summarize(res.Closures.CauseRecompile)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if opts.LogFilesToCompile {
		for _, id := range res.Graph.NodeIDs() {
			logger.Debug("files to compile", "file", id, "count", res.GetsRecompiled[id], "files", res.Closures.CauseRecompile[id])
		}
	}
	logger.Infof("Analyzed %d files (%s)", res.Stats.NodeCount, res.Stats.Total().Round(time.Millisecond))
	logger.Debug("analysis stats",
		"edges", res.Stats.EdgeCount,
		"skipped", res.Stats.SkippedEdges,
		"filter", res.Filter,
		"cache_hit", res.CacheHit)
	return res, nil
}

// AnalyzeRequest runs [Runner.Analyze] on a worker request. The request's
// filter overrides opts.Filter.
func (r *Runner) AnalyzeRequest(ctx context.Context, req worker.Request, opts Options) (*Result, error) {
	opts.Filter = req.Filter
	return r.Analyze(ctx, req.NodeData, req.TargetObjects, opts)
}

// AnalyzeBoth analyzes the same input under [closure.AllKinds] and
// [closure.PropagatingOnly] concurrently.
func (r *Runner) AnalyzeBoth(ctx context.Context, nodes []depgraph.Node, targets map[depgraph.NodeID][]depgraph.Target, opts Options) (all, propagating *Result, err error) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o := opts
		o.Filter = closure.AllKinds
		var err error
		all, err = r.Analyze(ctx, nodes, targets, o)
		return err
	})
	g.Go(func() error {
		o := opts
		o.Filter = closure.PropagatingOnly
		var err error
		propagating, err = r.Analyze(ctx, nodes, targets, o)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return all, propagating, nil
}

// AnalyzeFunc adapts the runner into a [worker.AnalyzeFunc].
func (r *Runner) AnalyzeFunc(opts Options) worker.AnalyzeFunc {
	return func(ctx context.Context, req worker.Request) (worker.Reply, error) {
		res, err := r.AnalyzeRequest(ctx, req, opts)
		if err != nil {
			return worker.Reply{}, err
		}
		return res.Reply(req.ID), nil
	}
}

func (r *Runner) closures(ctx context.Context, g *depgraph.Graph, hash string, opts Options) (closure.Closures, bool, error) {
	key := r.Keyer.ClosureKey(hash, cache.ClosureKeyOpts{Filter: opts.Filter.String()})

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			var c closure.Closures
			if err := json.Unmarshal(data, &c); err == nil {
				observability.Cache().OnCacheHit(ctx, "closure")
				return c, true, nil
			}
			opts.Logger.Debug("discarding undecodable cache entry", "key", key)
		}
		observability.Cache().OnCacheMiss(ctx, "closure")
	}

	c, err := closure.Compute(ctx, g, opts.Filter)
	if err != nil {
		return closure.Closures{}, false, err
	}
	if data, err := json.Marshal(c); err == nil {
		if err := r.Cache.Set(ctx, key, data, r.TTL); err != nil {
			opts.Logger.Warn("caching closures failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "closure", len(data))
		}
	}
	return c, false, nil
}

// graphHash identifies a graph by its accepted nodes and edges.
func graphHash(g *depgraph.Graph) (string, error) {
	return cache.HashJSON(struct {
		Nodes []depgraph.Node `json:"nodes"`
		Edges []depgraph.Edge `json:"edges"`
	}{g.Nodes(), g.Edges()})
}
