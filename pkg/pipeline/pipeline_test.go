package pipeline

import (
	"context"
	stderrors "errors"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depviz/pkg/cache"
	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/errors"
	"github.com/matzehuels/depviz/pkg/observability"
	"github.com/matzehuels/depviz/pkg/worker"
)

func quietRunner(t *testing.T, c cache.Cache) *Runner {
	t.Helper()
	return NewRunner(c, nil, log.New(io.Discard))
}

func nodes(ids ...depgraph.NodeID) []depgraph.Node {
	out := make([]depgraph.Node, len(ids))
	for i, id := range ids {
		out[i] = depgraph.Node{ID: id}
	}
	return out
}

// a -compile-> b -runtime-> c
func chain() ([]depgraph.Node, map[depgraph.NodeID][]depgraph.Target) {
	return nodes("a", "b", "c"), map[depgraph.NodeID][]depgraph.Target{
		"a": {{ID: "b", Kind: depgraph.KindCompile}},
		"b": {{ID: "c", Kind: depgraph.KindRuntime}},
	}
}

func TestAnalyze(t *testing.T) {
	r := quietRunner(t, nil)
	ns, ts := chain()

	res, err := r.Analyze(context.Background(), ns, ts, Options{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if got := res.Closures.Dependencies["a"]; !slices.Equal(got, closure.NewSet("b", "c")) {
		t.Errorf("deps[a] = %v, want [b c]", got)
	}
	if got := res.Closures.CauseRecompile["c"]; !slices.Equal(got, closure.NewSet("a", "b")) {
		t.Errorf("causeRecompile[c] = %v, want [a b]", got)
	}
	want := map[depgraph.NodeID]int{"a": 0, "b": 1, "c": 2}
	for id, n := range want {
		if res.GetsRecompiled[id] != n {
			t.Errorf("getsRecompiled[%s] = %d, want %d", id, res.GetsRecompiled[id], n)
		}
	}
	if res.Stats.NodeCount != 3 || res.Stats.EdgeCount != 2 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if res.GraphHash == "" {
		t.Error("GraphHash should be set")
	}
	if res.CacheHit {
		t.Error("first analysis cannot be a cache hit")
	}
}

func TestAnalyze_PropagatingOnly(t *testing.T) {
	r := quietRunner(t, nil)
	ns, ts := chain()

	res, err := r.Analyze(context.Background(), ns, ts, Options{Filter: closure.PropagatingOnly})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Closures.Dependencies["a"]; !slices.Equal(got, closure.NewSet("b")) {
		t.Errorf("deps[a] = %v, runtime edge must not be followed", got)
	}
}

func TestAnalyze_DuplicateNode(t *testing.T) {
	r := quietRunner(t, nil)

	res, err := r.Analyze(context.Background(), nodes("a", "a"), nil, Options{})
	if res != nil {
		t.Error("no partial result on failure")
	}
	var se *StageError
	if !stderrors.As(err, &se) || se.Op != StageBuild {
		t.Fatalf("err = %v, want build StageError", err)
	}
	if code := errors.CodeOf(err); code != errors.ErrCodeDuplicateNode {
		t.Errorf("CodeOf = %s, want DUPLICATE_NODE", code)
	}
}

func TestAnalyze_DanglingEdges(t *testing.T) {
	r := quietRunner(t, nil)
	ts := map[depgraph.NodeID][]depgraph.Target{
		"a":     {{ID: "b"}, {ID: "ghost"}},
		"ghost": {{ID: "a"}},
	}

	res, err := r.Analyze(context.Background(), nodes("a", "b"), ts, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.SkippedEdges != 2 {
		t.Errorf("SkippedEdges = %d, want 2", res.Stats.SkippedEdges)
	}
	if _, ok := res.Closures.Dependencies["ghost"]; ok {
		t.Error("undeclared node must not appear in closures")
	}
	if reply := res.Reply("x"); reply.SkippedEdges != 2 || reply.ID != "x" {
		t.Errorf("Reply = %+v", reply)
	}
}

func TestAnalyze_InvalidFilter(t *testing.T) {
	r := quietRunner(t, nil)
	_, err := r.Analyze(context.Background(), nil, nil, Options{Filter: closure.Filter(7)})
	if !errors.Is(err, errors.ErrCodeInvalidFilter) {
		t.Errorf("err = %v, want INVALID_FILTER", err)
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	r := quietRunner(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ns, ts := chain()
	_, err := r.Analyze(ctx, ns, ts, Options{})
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if errors.CodeOf(err) != errors.ErrCodeCancelled {
		t.Errorf("CodeOf = %s", errors.CodeOf(err))
	}
}

func TestAnalyze_CachesClosures(t *testing.T) {
	lru, err := cache.NewLRUCache(8)
	if err != nil {
		t.Fatal(err)
	}
	r := quietRunner(t, lru)
	ns, ts := chain()
	ctx := context.Background()

	first, err := r.Analyze(ctx, ns, ts, Options{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Analyze(ctx, ns, ts, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit {
		t.Error("identical graph should hit the cache")
	}
	if !second.Closures.Dependencies.Equal(first.Closures.Dependencies) ||
		!second.Closures.CauseRecompile.Equal(first.Closures.CauseRecompile) {
		t.Error("cached closures differ from computed ones")
	}

	other, _ := r.Analyze(ctx, ns, ts, Options{Filter: closure.PropagatingOnly})
	if other.CacheHit {
		t.Error("different filter must not share the cache entry")
	}

	refreshed, _ := r.Analyze(ctx, ns, ts, Options{Refresh: true})
	if refreshed.CacheHit {
		t.Error("Refresh should bypass the cache")
	}
}

func TestAnalyzeBoth(t *testing.T) {
	r := quietRunner(t, nil)
	ns, ts := chain()

	all, prop, err := r.AnalyzeBoth(context.Background(), ns, ts, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if all.Filter != closure.AllKinds || prop.Filter != closure.PropagatingOnly {
		t.Errorf("filters = %v, %v", all.Filter, prop.Filter)
	}
	if all.GetsRecompiled["c"] != 2 || prop.GetsRecompiled["c"] != 0 {
		t.Errorf("getsRecompiled[c] = %d / %d, want 2 / 0", all.GetsRecompiled["c"], prop.GetsRecompiled["c"])
	}
}

func TestAnalyzeFunc(t *testing.T) {
	r := quietRunner(t, nil)
	w := worker.New(r.AnalyzeFunc(Options{}), log.New(io.Discard))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	ns, ts := chain()
	reply, err := w.Do(context.Background(), worker.Request{
		Type:          worker.RequestTypeInit,
		NodeData:      ns,
		TargetObjects: ts,
		Filter:        closure.PropagatingOnly,
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(reply.GetsRecompiledMap) != 3 {
		t.Errorf("reply covers %d files, want 3", len(reply.GetsRecompiledMap))
	}
	if got := reply.DependenciesMap["a"]; !slices.Equal(got, closure.NewSet("b")) {
		t.Errorf("deps[a] = %v, request filter should apply", got)
	}

	reply, err = w.Do(context.Background(), worker.Request{NodeData: nodes("x", "x")})
	if err == nil || reply.Error == nil {
		t.Fatal("duplicate node should produce a failure reply")
	}
	if reply.Error.Stage != "build" || reply.Error.Code != errors.ErrCodeDuplicateNode {
		t.Errorf("failure = %+v", reply.Error)
	}
}

type stageRecorder struct {
	observability.NoopAnalysisHooks
	mu     sync.Mutex
	stages []string
	failed []string
}

func (h *stageRecorder) OnStageComplete(_ context.Context, stage string, _ time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stages = append(h.stages, stage)
	if err != nil {
		h.failed = append(h.failed, stage)
	}
}

func TestAnalyze_Hooks(t *testing.T) {
	rec := &stageRecorder{}
	observability.SetAnalysisHooks(rec)
	defer observability.Reset()

	r := quietRunner(t, nil)
	ns, ts := chain()
	if _, err := r.Analyze(context.Background(), ns, ts, Options{}); err != nil {
		t.Fatal(err)
	}
	want := []string{"build", "closure", "summarize"}
	if !slices.Equal(rec.stages, want) {
		t.Errorf("stages = %v, want %v", rec.stages, want)
	}

	r.Analyze(context.Background(), nodes("a", "a"), nil, Options{})
	if !slices.Equal(rec.failed, []string{"build"}) {
		t.Errorf("failed = %v, want [build]", rec.failed)
	}
}

func TestRunStage_RecoversPanic(t *testing.T) {
	_, err := runStage(context.Background(), StageClosure, 0, func() error {
		panic("bad index")
	})
	var se *StageError
	if !stderrors.As(err, &se) {
		t.Fatalf("err = %v, want StageError", err)
	}
	if se.Stage() != "closure" {
		t.Errorf("Stage() = %q", se.Stage())
	}
	if errors.CodeOf(err) != errors.ErrCodeInternal {
		t.Errorf("CodeOf = %s, want INTERNAL_ERROR", errors.CodeOf(err))
	}
}

func TestStageError(t *testing.T) {
	err := &StageError{Op: StageSummarize, Err: context.DeadlineExceeded}
	if err.Error() != "summarize: context deadline exceeded" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Error("StageError should unwrap")
	}
}
