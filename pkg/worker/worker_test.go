package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/errors"
	"github.com/matzehuels/depviz/pkg/impact"
)

type stagedErr struct {
	stage string
	err   error
}

func (e *stagedErr) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stagedErr) Unwrap() error { return e.err }
func (e *stagedErr) Stage() string { return e.stage }

func startWorker(t *testing.T, fn AnalyzeFunc) *Worker {
	t.Helper()
	w := New(fn, nil)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w
}

func okReply(ctx context.Context, req Request) (Reply, error) {
	deps := closure.Map{}
	for _, n := range req.NodeData {
		deps[n.ID] = closure.Set{}
	}
	return Reply{
		DependenciesMap:   deps,
		CauseRecompileMap: deps,
		GetsRecompiledMap: impact.Summarize(deps),
	}, nil
}

func request(ids ...depgraph.NodeID) Request {
	req := Request{Type: RequestTypeInit}
	for _, id := range ids {
		req.NodeData = append(req.NodeData, depgraph.Node{ID: id})
	}
	return req
}

func TestDo_DeliversResult(t *testing.T) {
	w := startWorker(t, okReply)

	reply, err := w.Do(context.Background(), request("a.ex", "b.ex"))
	require.NoError(t, err)
	assert.True(t, reply.OK())
	assert.NotEmpty(t, reply.ID, "missing ids are filled in")
	assert.Len(t, reply.GetsRecompiledMap, 2)
}

func TestDo_KeepsCallerID(t *testing.T) {
	w := startWorker(t, okReply)

	req := request("a.ex")
	req.ID = "load-7"
	reply, err := w.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "load-7", reply.ID)
}

func TestDo_FailureCarriesStage(t *testing.T) {
	w := startWorker(t, func(ctx context.Context, req Request) (Reply, error) {
		return Reply{}, &stagedErr{stage: "build", err: &depgraph.DuplicateNodeError{ID: "a.ex"}}
	})

	reply, err := w.Do(context.Background(), request("a.ex", "a.ex"))
	require.Error(t, err)
	require.NotNil(t, reply.Error)
	assert.Equal(t, "build", reply.Error.Stage)
	assert.Equal(t, errors.ErrCodeDuplicateNode, reply.Error.Code)
	assert.Nil(t, reply.DependenciesMap, "no partial results")
}

func TestDo_FailureMessageHasNoStagePrefix(t *testing.T) {
	w := startWorker(t, func(ctx context.Context, req Request) (Reply, error) {
		return Reply{}, &stagedErr{stage: "build", err: &depgraph.DuplicateNodeError{ID: "a"}}
	})

	_, err := w.Do(context.Background(), request("a", "a"))
	require.Error(t, err)
	assert.Equal(t, "DUPLICATE_NODE: build stage: duplicate node ID: a", err.Error())
}

func TestDo_UnclassifiedErrorIsWorkerFailure(t *testing.T) {
	w := startWorker(t, func(ctx context.Context, req Request) (Reply, error) {
		return Reply{}, &stagedErr{stage: "closure", err: assert.AnError}
	})

	reply, _ := w.Do(context.Background(), request("a.ex"))
	require.NotNil(t, reply.Error)
	assert.Equal(t, errors.ErrCodeWorkerFailure, reply.Error.Code)
	assert.Equal(t, "closure", reply.Error.Stage)
}

func TestDo_PanicIsRecovered(t *testing.T) {
	calls := 0
	w := startWorker(t, func(ctx context.Context, req Request) (Reply, error) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return okReply(ctx, req)
	})

	reply, err := w.Do(context.Background(), request("a.ex"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeWorkerFailure, reply.Error.Code)
	assert.Contains(t, reply.Error.Message, "boom")

	reply, err = w.Do(context.Background(), request("a.ex"))
	require.NoError(t, err, "worker keeps serving after a panic")
	assert.True(t, reply.OK())
}

func TestDo_InvalidRequestType(t *testing.T) {
	w := startWorker(t, okReply)

	req := request("a.ex")
	req.Type = "reset"
	reply, err := w.Do(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, reply.Error.Code)
}

func TestDo_ContextTimeout(t *testing.T) {
	release := make(chan struct{})
	w := startWorker(t, func(ctx context.Context, req Request) (Reply, error) {
		<-release
		return okReply(ctx, req)
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := w.Do(ctx, request("a.ex"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeTimeout))
}

// recorder collects replies by request id.
type recorder struct {
	mu      sync.Mutex
	replies map[string]Reply
	wg      sync.WaitGroup
}

func newRecorder(n int) *recorder {
	r := &recorder{replies: make(map[string]Reply)}
	r.wg.Add(n)
	return r
}

func (r *recorder) handler() Handler {
	return func(reply Reply) {
		r.mu.Lock()
		_, dup := r.replies[reply.ID]
		r.replies[reply.ID] = reply
		r.mu.Unlock()
		if !dup {
			r.wg.Done()
		}
	}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	go func() { r.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for replies")
	}
}

func TestSubmit_LatestWinsCancelsRunning(t *testing.T) {
	started := make(chan string, 4)
	w := startWorker(t, func(ctx context.Context, req Request) (Reply, error) {
		started <- req.ID
		if req.ID == "first" {
			<-ctx.Done()
			return Reply{}, &stagedErr{stage: "closure", err: ctx.Err()}
		}
		return okReply(ctx, req)
	})

	rec := newRecorder(2)
	first := request("a.ex")
	first.ID = "first"
	_, err := w.Submit(first, rec.handler())
	require.NoError(t, err)
	assert.Equal(t, "first", <-started)

	second := request("a.ex")
	second.ID = "second"
	_, err = w.Submit(second, rec.handler())
	require.NoError(t, err)
	rec.wait(t)

	old := rec.replies["first"]
	require.NotNil(t, old.Error)
	assert.Equal(t, errors.ErrCodeSuperseded, old.Error.Code)
	assert.Equal(t, "closure", old.Error.Stage)
	assert.True(t, rec.replies["second"].OK())
}

func TestSubmit_PendingRequestIsReplaced(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var mu sync.Mutex
	var ran []string

	w := startWorker(t, func(ctx context.Context, req Request) (Reply, error) {
		mu.Lock()
		ran = append(ran, req.ID)
		mu.Unlock()
		if req.ID == "a" {
			started <- struct{}{}
			<-release
			return Reply{}, ctx.Err()
		}
		return okReply(ctx, req)
	})

	rec := newRecorder(3)
	for _, id := range []string{"a", "b", "c"} {
		req := request("x.ex")
		req.ID = id
		_, err := w.Submit(req, rec.handler())
		require.NoError(t, err)
		if id == "a" {
			<-started
		}
	}
	close(release)
	rec.wait(t)

	assert.Equal(t, errors.ErrCodeSuperseded, rec.replies["a"].Error.Code)
	assert.Equal(t, errors.ErrCodeSuperseded, rec.replies["b"].Error.Code)
	assert.True(t, rec.replies["c"].OK())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "c"}, ran, "a replaced pending request never runs")
}

func TestSubmit_CompletedJobKeepsResult(t *testing.T) {
	// A job that finishes without observing its cancellation delivers its
	// result even when a newer request arrived meanwhile.
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	w := startWorker(t, func(ctx context.Context, req Request) (Reply, error) {
		if req.ID == "slow" {
			started <- struct{}{}
			<-release
		}
		return okReply(ctx, req)
	})

	rec := newRecorder(2)
	slow := request("a.ex")
	slow.ID = "slow"
	_, err := w.Submit(slow, rec.handler())
	require.NoError(t, err)
	<-started

	fast := request("a.ex")
	fast.ID = "fast"
	_, err = w.Submit(fast, rec.handler())
	require.NoError(t, err)
	close(release)
	rec.wait(t)

	assert.True(t, rec.replies["slow"].OK())
	assert.True(t, rec.replies["fast"].OK())
}

func TestSubmit_BeforeStart(t *testing.T) {
	w := New(okReply, nil)
	_, err := w.Submit(request("a.ex"), nil)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestStart_Twice(t *testing.T) {
	w := startWorker(t, okReply)
	assert.Error(t, w.Start(context.Background()))
}

func TestStop_RejectsNewRequests(t *testing.T) {
	w := New(okReply, nil)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()

	_, err := w.Submit(request("a.ex"), nil)
	assert.ErrorIs(t, err, ErrStopped)
	assert.True(t, errors.Is(err, errors.ErrCodeCancelled))
}

func TestStop_AnswersInFlight(t *testing.T) {
	started := make(chan struct{}, 1)
	w := New(func(ctx context.Context, req Request) (Reply, error) {
		started <- struct{}{}
		<-ctx.Done()
		return Reply{}, ctx.Err()
	}, nil)
	require.NoError(t, w.Start(context.Background()))

	rec := newRecorder(1)
	_, err := w.Submit(request("a.ex"), rec.handler())
	require.NoError(t, err)
	<-started
	w.Stop()
	rec.wait(t)

	for _, r := range rec.replies {
		require.NotNil(t, r.Error)
		assert.Equal(t, errors.ErrCodeCancelled, r.Error.Code)
	}
	assert.False(t, w.Busy())
}

func TestHandlerPanicDoesNotKillWorker(t *testing.T) {
	w := startWorker(t, okReply)

	_, err := w.Submit(request("a.ex"), func(Reply) { panic("handler") })
	require.NoError(t, err)

	reply, err := w.Do(context.Background(), request("b.ex"))
	require.NoError(t, err)
	assert.True(t, reply.OK())
}

func TestFailureError(t *testing.T) {
	f := &Failure{Stage: "build", Code: errors.ErrCodeDuplicateNode, Message: "duplicate node ID: a.ex"}
	assert.Equal(t, "DUPLICATE_NODE: build stage: duplicate node ID: a.ex", f.Error())

	f = &Failure{Code: errors.ErrCodeSuperseded, Message: "superseded"}
	assert.Equal(t, "SUPERSEDED: superseded", f.Error())
}

func TestRun_DequeuedJobYieldsToNewerRequest(t *testing.T) {
	calls := 0
	w := New(func(ctx context.Context, req Request) (Reply, error) {
		calls++
		return okReply(ctx, req)
	}, nil)
	w.ctx = context.Background()

	rec := newRecorder(1)
	older := &job{id: "older", req: request("a.ex"), handler: rec.handler(), queued: time.Now()}
	w.slot <- &job{id: "newer", req: request("a.ex"), queued: time.Now()}

	w.run(older)
	rec.wait(t)

	require.NotNil(t, rec.replies["older"].Error)
	assert.Equal(t, errors.ErrCodeSuperseded, rec.replies["older"].Error.Code)
	assert.Zero(t, calls, "older job never runs once a newer one is queued")
	assert.Len(t, w.slot, 1)
}

func TestReplyJSON(t *testing.T) {
	tests := []struct {
		name  string
		reply Reply
		want  string
	}{
		{
			name: "empty graph keeps result maps",
			reply: Reply{
				ID:                "x",
				DependenciesMap:   closure.Map{},
				CauseRecompileMap: closure.Map{},
				GetsRecompiledMap: impact.GetsRecompiledMap{},
			},
			want: `{"id":"x","dependenciesMap":{},"causeRecompileMap":{},"getsRecompiledMap":{}}`,
		},
		{
			name:  "failure has null maps",
			reply: Reply{ID: "x", Error: &Failure{Code: errors.ErrCodeSuperseded, Message: "superseded"}},
			want:  `{"id":"x","dependenciesMap":null,"causeRecompileMap":null,"getsRecompiledMap":null,"error":{"code":"SUPERSEDED","message":"superseded"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.reply)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}
