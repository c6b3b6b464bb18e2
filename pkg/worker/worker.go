package worker

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/depviz/pkg/errors"
	"github.com/matzehuels/depviz/pkg/observability"
)

var (
	// ErrNotStarted is returned by [Worker.Submit] before [Worker.Start].
	ErrNotStarted = errors.New(errors.ErrCodeInternal, "worker not started")

	// ErrStopped is returned by [Worker.Submit] after the worker stopped.
	ErrStopped = errors.New(errors.ErrCodeCancelled, "worker stopped")
)

// AnalyzeFunc performs one analysis. It must honor ctx cancellation.
type AnalyzeFunc func(ctx context.Context, req Request) (Reply, error)

// Handler receives the reply to a submitted request. It runs on the worker
// goroutine, or on the submitting goroutine for superseded pending requests,
// and must not block.
type Handler func(Reply)

// PanicError is a recovered panic from inside an analysis.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("analysis panicked: %v", e.Value) }

type job struct {
	id      string
	req     Request
	handler Handler
	queued  time.Time
}

// Worker is a single background goroutine serving analysis requests with a
// latest-wins policy.
type Worker struct {
	analyze AnalyzeFunc
	logger  *log.Logger
	slot    chan *job
	done    chan struct{}

	mu         sync.Mutex
	ctx        context.Context
	stop       context.CancelFunc
	started    bool
	stopped    bool
	current    *job
	cancelCur  context.CancelFunc
	superseded bool
}

// New creates a worker around analyze. Call [Worker.Start] before submitting.
func New(analyze AnalyzeFunc, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Worker{
		analyze: analyze,
		logger:  logger,
		slot:    make(chan *job, 1),
		done:    make(chan struct{}),
	}
}

// Start launches the worker goroutine. It runs until ctx is cancelled or
// [Worker.Stop] is called.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return errors.New(errors.ErrCodeInternal, "worker already started")
	}
	w.started = true
	w.ctx, w.stop = context.WithCancel(ctx)
	go w.loop()
	return nil
}

// Stop cancels any in-flight job, answers a pending one with CANCELLED and
// waits for the goroutine to exit. It must not be called from a Handler.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.stopped = true
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	w.stop()
	<-w.done
}

// Submit enqueues req and returns its id. A missing request id is filled
// with a random UUID. handler receives exactly one reply.
func (w *Worker) Submit(req Request, handler Handler) (string, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	j := &job{id: req.ID, req: req, handler: handler, queued: time.Now()}

	w.mu.Lock()
	switch {
	case w.stopped:
		w.mu.Unlock()
		return "", ErrStopped
	case !w.started:
		w.mu.Unlock()
		return "", ErrNotStarted
	}

	var dropped *job
	select {
	case dropped = <-w.slot:
	default:
	}
	if w.cancelCur != nil && !w.superseded {
		w.superseded = true
		w.cancelCur()
		w.logger.Debug("superseding running analysis", "id", w.current.id, "by", j.id)
		observability.Worker().OnJobSuperseded(w.ctx, w.current.id, true)
	}
	w.slot <- j
	w.mu.Unlock()

	observability.Worker().OnJobQueued(w.ctx, j.id)
	if dropped != nil {
		w.logger.Debug("superseding pending analysis", "id", dropped.id, "by", j.id)
		observability.Worker().OnJobSuperseded(w.ctx, dropped.id, false)
		w.deliver(dropped, supersededReply(dropped.id, ""), time.Since(dropped.queued))
	}
	return j.id, nil
}

// Do submits req and waits for its reply or for ctx to end. A failure reply
// is returned together with its [*Failure] as the error.
func (w *Worker) Do(ctx context.Context, req Request) (Reply, error) {
	ch := make(chan Reply, 1)
	if _, err := w.Submit(req, func(r Reply) { ch <- r }); err != nil {
		return Reply{}, err
	}
	select {
	case r := <-ch:
		return r, r.Err()
	case <-ctx.Done():
		return Reply{}, errors.Wrap(errors.CodeOf(ctx.Err()), ctx.Err(), "waiting for analysis reply")
	}
}

// Busy reports whether a job is running or waiting.
func (w *Worker) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current != nil || len(w.slot) > 0
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case j := <-w.slot:
			w.run(j)
		}
	}
}

func (w *Worker) run(j *job) {
	jctx, cancel := context.WithCancel(w.ctx)
	defer cancel()

	// A Submit between dequeue and this point found no job to cancel but
	// left its own request in the slot.
	w.mu.Lock()
	if len(w.slot) > 0 {
		w.mu.Unlock()
		w.logger.Debug("superseding dequeued analysis", "id", j.id)
		observability.Worker().OnJobSuperseded(w.ctx, j.id, false)
		w.deliver(j, supersededReply(j.id, ""), time.Since(j.queued))
		return
	}
	w.current, w.cancelCur, w.superseded = j, cancel, false
	w.mu.Unlock()

	start := time.Now()
	reply, err := w.safeAnalyze(jctx, j.req)

	w.mu.Lock()
	superseded := w.superseded
	w.current, w.cancelCur, w.superseded = nil, nil, false
	w.mu.Unlock()

	switch {
	case err == nil:
	case superseded:
		reply = supersededReply(j.id, failureFrom(err).Stage)
	default:
		reply = Reply{Error: failureFrom(err)}
		w.logger.Warn("analysis failed", "id", j.id, "code", reply.Error.Code, "stage", reply.Error.Stage, "err", err)
	}
	reply.ID = j.id
	w.deliver(j, reply, time.Since(start))
}

func (w *Worker) safeAnalyze(ctx context.Context, req Request) (reply Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
			w.logger.Error("analysis panicked", "panic", r)
		}
	}()
	if err := req.Validate(); err != nil {
		return Reply{}, err
	}
	return w.analyze(ctx, req)
}

// drain marks the worker stopped and answers a request left in the slot.
func (w *Worker) drain() {
	w.mu.Lock()
	w.stopped = true
	var pending *job
	select {
	case pending = <-w.slot:
	default:
	}
	w.mu.Unlock()

	if pending != nil {
		w.deliver(pending, Reply{
			ID:    pending.id,
			Error: &Failure{Code: errors.ErrCodeCancelled, Message: "worker stopped before the request ran"},
		}, time.Since(pending.queued))
	}
}

func (w *Worker) deliver(j *job, reply Reply, d time.Duration) {
	var code string
	if reply.Error != nil {
		code = string(reply.Error.Code)
	}
	observability.Worker().OnJobComplete(w.ctx, j.id, code, d)
	w.logger.Debug("reply delivered", "id", j.id, "code", code, "duration", d)

	if j.handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("reply handler panicked", "id", j.id, "panic", r)
		}
	}()
	j.handler(reply)
}

func supersededReply(id, stage string) Reply {
	return Reply{
		ID: id,
		Error: &Failure{
			Stage:   stage,
			Code:    errors.ErrCodeSuperseded,
			Message: "superseded by a newer request",
		},
	}
}
