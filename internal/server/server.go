// Package server exposes a loaded dependency graph and its analysis over
// HTTP.
//
// The server is a foreground consumer of the analysis worker: each load
// sends one request and publishes the reply once it arrives. Path queries
// run synchronously against the foreground graph. Every websocket
// connection gets a worker of its own, so clients never supersede each
// other or the server's own analysis.
//
// With watching enabled the input file is reloaded in full after changes
// settle; a reload always produces a new graph and a new analysis.
package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/errors"
	depio "github.com/matzehuels/depviz/pkg/io"
	"github.com/matzehuels/depviz/pkg/pipeline"
	"github.com/matzehuels/depviz/pkg/worker"
)

// Options configures a Server.
type Options struct {
	// Source is the row dump to serve.
	Source string

	// Addr is the listen address for Run.
	Addr string

	// Filter is applied to the published analysis.
	Filter closure.Filter

	// Runner executes analyses. Required.
	Runner *pipeline.Runner

	// Analysis is passed to every analysis the server starts.
	Analysis pipeline.Options

	// Timeout bounds synchronous analyses for non-default filters.
	Timeout time.Duration

	// Watch reloads Source after it changes, once Debounce has passed
	// without further events.
	Watch    bool
	Debounce time.Duration

	// MaxLabels limits labelled nodes in rendered diagrams.
	MaxLabels int

	// Metrics, when set, is served on /metrics and instruments requests.
	Metrics *Metrics

	Logger *log.Logger
}

// snapshot is one load of the source. It is immutable except for the
// reply, which is set once.
type snapshot struct {
	version  uint64
	loadedAt time.Time
	graph    *depgraph.Graph
	report   *depgraph.Report
	request  worker.Request

	once  sync.Once
	done  chan struct{}
	reply worker.Reply
}

func (s *snapshot) publish(r worker.Reply) {
	s.once.Do(func() {
		s.reply = r
		close(s.done)
	})
}

// ready returns the reply if it has arrived.
func (s *snapshot) ready() (worker.Reply, bool) {
	select {
	case <-s.done:
		return s.reply, true
	default:
		return worker.Reply{}, false
	}
}

// Server serves one source file.
type Server struct {
	opts    Options
	logger  *log.Logger
	worker  *worker.Worker
	version atomic.Uint64

	mu   sync.RWMutex
	snap *snapshot

	watcher *fileWatcher
}

// New validates opts and creates a server. Call Start or Run to load.
func New(opts Options) (*Server, error) {
	if opts.Runner == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "server requires a runner")
	}
	if err := errors.ValidateInputPath(opts.Source); err != nil {
		return nil, err
	}
	if opts.Source == "-" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "serve cannot read from stdin")
	}
	if opts.Logger == nil {
		opts.Logger = opts.Runner.Logger
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	s := &Server{opts: opts, logger: opts.Logger}
	s.worker = worker.New(opts.Runner.AnalyzeFunc(opts.Analysis), opts.Logger.WithPrefix("worker"))
	return s, nil
}

// Start launches the worker, performs the initial load and starts the file
// watcher if enabled. The initial analysis continues in the background.
func (s *Server) Start(ctx context.Context) error {
	if err := s.worker.Start(ctx); err != nil {
		return err
	}
	if err := s.Load(); err != nil {
		s.worker.Stop()
		return err
	}
	if s.opts.Watch {
		w, err := newFileWatcher(s.opts.Source, s.opts.Debounce, s.reload, s.logger)
		if err != nil {
			s.worker.Stop()
			return err
		}
		if err := w.Start(ctx); err != nil {
			s.worker.Stop()
			return err
		}
		s.watcher = w
	}
	return nil
}

// Stop stops the watcher and the worker.
func (s *Server) Stop() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.worker.Stop()
}

// Run starts the server and serves HTTP on opts.Addr until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop()

	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("serving", "addr", s.opts.Addr, "source", s.opts.Source, "watch", s.opts.Watch)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Load reads the source, swaps in a new snapshot and submits its analysis.
// On error the previous snapshot stays in place.
func (s *Server) Load() error {
	start := time.Now()
	rows, err := depio.ImportRows(s.opts.Source)
	if err != nil {
		return err
	}
	g, report, err := rows.Build(depgraph.WithLogger(s.logger))
	if err != nil {
		return err
	}

	req := depio.ToRequest(rows)
	req.Filter = s.opts.Filter
	snap := &snapshot{
		version:  s.version.Add(1),
		loadedAt: time.Now(),
		graph:    g,
		report:   report,
		request:  req,
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	_, err = s.worker.Submit(req, func(r worker.Reply) {
		snap.publish(r)
		switch {
		case r.Error != nil && r.Error.Code == errors.ErrCodeSuperseded:
			s.logger.Debug("analysis superseded", "version", snap.version)
			return
		case r.Error != nil:
			s.logger.Error("analysis failed", "version", snap.version, "err", r.Error)
			return
		}
		s.logger.Info("analysis ready", "version", snap.version, "files", len(r.GetsRecompiledMap))
	})
	if err != nil {
		return err
	}
	s.logger.Info("loaded graph",
		"version", snap.version,
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"skipped", report.SkippedEdges(),
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (s *Server) reload() {
	if err := s.Load(); err != nil {
		s.logger.Error("reload failed, keeping previous graph", "err", err)
	}
}

func (s *Server) current() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// WaitAnalysis blocks until the current snapshot's reply arrives. A reload
// while waiting switches to the newer snapshot.
func (s *Server) WaitAnalysis(ctx context.Context) (worker.Reply, error) {
	for {
		snap := s.current()
		if snap == nil {
			return worker.Reply{}, errors.New(errors.ErrCodeInternal, "nothing loaded")
		}
		select {
		case <-snap.done:
			if snap == s.current() {
				return snap.reply, snap.reply.Err()
			}
		case <-ctx.Done():
			return worker.Reply{}, errors.Wrap(errors.CodeOf(ctx.Err()), ctx.Err(), "waiting for analysis")
		}
	}
}
