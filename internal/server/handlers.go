package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/depviz/pkg/buildinfo"
	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/errors"
	"github.com/matzehuels/depviz/pkg/impact"
	depio "github.com/matzehuels/depviz/pkg/io"
	"github.com/matzehuels/depviz/pkg/observability"
	"github.com/matzehuels/depviz/pkg/pathfind"
	"github.com/matzehuels/depviz/pkg/render/nodelink"
	"github.com/matzehuels/depviz/pkg/worker"
)

const defaultTopN = 10

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if s.opts.Metrics != nil {
		r.Use(s.opts.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/graph", s.handleGraph)
		r.Get("/analysis", s.handleAnalysis)
		r.Get("/summary", s.handleSummary)
		r.Get("/path", s.handlePath)
		r.Route("/files/{id}", func(r chi.Router) {
			r.Get("/deps", s.handleFileSet(modeDeps))
			r.Get("/recompile", s.handleFileSet(modeAncestors))
			r.Get("/diagram", s.handleDiagram)
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// =============================================================================
// Responses
// =============================================================================

type apiError struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
	Stage   string      `json:"stage,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := apiError{Code: errors.CodeOf(err), Message: errors.UserMessage(err)}
	if f, ok := err.(*worker.Failure); ok {
		body = apiError{Code: f.Code, Message: f.Message, Stage: f.Stage}
	}
	if status == 0 {
		status = statusFor(body.Code)
	}
	writeJSON(w, status, map[string]apiError{"error": body})
}

func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidNodeID, errors.ErrCodeInvalidFilter, errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case errors.ErrCodeUnknownNode, errors.ErrCodePathNotFound, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeSuperseded, errors.ErrCodeCancelled:
		return http.StatusServiceUnavailable
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

var errAnalysisPending = errors.New(errors.ErrCodeSuperseded, "analysis in progress")

// =============================================================================
// Analysis Access
// =============================================================================

// filterParam reads ?filter=, defaulting to the server's filter.
func (s *Server) filterParam(r *http.Request) (closure.Filter, error) {
	q := r.URL.Query().Get("filter")
	if q == "" {
		return s.opts.Filter, nil
	}
	f, err := closure.ParseFilter(q)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidFilter, err, "filter")
	}
	return f, nil
}

// analysis returns the snapshot's reply for filter. The published analysis
// is used for the server's filter; other filters run synchronously through
// the runner's cache.
func (s *Server) analysis(ctx context.Context, snap *snapshot, f closure.Filter) (worker.Reply, error) {
	if f == snap.request.Filter {
		reply, ok := snap.ready()
		if !ok || (reply.Error != nil && reply.Error.Code == errors.ErrCodeSuperseded) {
			return worker.Reply{}, errAnalysisPending
		}
		return reply, reply.Err()
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	req := snap.request
	req.Filter = f
	res, err := s.opts.Runner.AnalyzeRequest(ctx, req, s.opts.Analysis)
	if err != nil {
		return worker.Reply{}, err
	}
	return res.Reply(""), nil
}

// resolve returns the current snapshot and its analysis for the request's
// filter, writing an error response on failure.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (*snapshot, closure.Filter, worker.Reply, bool) {
	f, err := s.filterParam(r)
	if err != nil {
		writeError(w, 0, err)
		return nil, 0, worker.Reply{}, false
	}
	snap := s.current()
	reply, err := s.analysis(r.Context(), snap, f)
	if err != nil {
		writeError(w, 0, err)
		return nil, 0, worker.Reply{}, false
	}
	return snap, f, reply, true
}

func fileParam(r *http.Request) (depgraph.NodeID, error) {
	raw := chi.URLParam(r, "id")
	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidNodeID, err, "file id %q", raw)
	}
	if err := errors.ValidateNodeID(id); err != nil {
		return "", err
	}
	return depgraph.NodeID(id), nil
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.current()
	_, ready := snap.ready()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  snap.version,
		"loadedAt": snap.loadedAt,
		"ready":    ready,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Get())
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := depio.WriteRows(w, s.current().graph); err != nil {
		s.logger.Warn("writing graph failed", "err", err)
	}
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	_, _, reply, ok := s.resolve(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type summary struct {
	Filter            closure.Filter `json:"filter"`
	SkippedEdges      int            `json:"skippedEdges"`
	Stats             impact.Stats   `json:"stats"`
	TopCauseRecompile []impact.Entry `json:"topCauseRecompile"`
	TopGetsRecompiled []impact.Entry `json:"topGetsRecompiled"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	n := defaultTopN
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 0 {
			writeError(w, 0, errors.New(errors.ErrCodeInvalidInput, "n must be a non-negative integer"))
			return
		}
		n = v
	}
	snap, f, reply, ok := s.resolve(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, summary{
		Filter:            f,
		SkippedEdges:      snap.report.SkippedEdges(),
		Stats:             impact.Describe(reply.CauseRecompileMap),
		TopCauseRecompile: impact.TopCauseRecompile(reply.CauseRecompileMap, n),
		TopGetsRecompiled: impact.TopGetsRecompiled(reply.DependenciesMap, n),
	})
}

type viewMode string

const (
	modeDeps      viewMode = "deps"
	modeAncestors viewMode = "ancestors"
)

func (m viewMode) set(reply worker.Reply, id depgraph.NodeID) closure.Set {
	if m == modeAncestors {
		return reply.CauseRecompileMap[id]
	}
	return reply.DependenciesMap[id]
}

type fileSet struct {
	ID     depgraph.NodeID `json:"id"`
	Mode   viewMode        `json:"mode"`
	Filter closure.Filter  `json:"filter"`
	Count  int             `json:"count"`
	Files  closure.Set     `json:"files"`
}

func (s *Server) handleFileSet(mode viewMode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := fileParam(r)
		if err != nil {
			writeError(w, 0, err)
			return
		}
		snap, f, reply, ok := s.resolve(w, r)
		if !ok {
			return
		}
		if !snap.graph.Has(id) {
			writeError(w, http.StatusNotFound, &pathfind.UnknownNodeError{ID: id})
			return
		}
		files := mode.set(reply, id)
		if files == nil {
			files = closure.Set{}
		}
		writeJSON(w, http.StatusOK, fileSet{ID: id, Mode: mode, Filter: f, Count: files.Len(), Files: files})
	}
}

func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	id, err := fileParam(r)
	if err != nil {
		writeError(w, 0, err)
		return
	}
	mode := viewMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = modeDeps
	}
	if mode != modeDeps && mode != modeAncestors {
		writeError(w, 0, errors.New(errors.ErrCodeInvalidInput, "mode must be deps or ancestors"))
		return
	}
	format := nodelink.FormatSVG
	if q := r.URL.Query().Get("format"); q != "" {
		if format, err = nodelink.ParseFormat(q); err != nil {
			writeError(w, 0, err)
			return
		}
	}

	snap, f, reply, ok := s.resolve(w, r)
	if !ok {
		return
	}
	if !snap.graph.Has(id) {
		writeError(w, http.StatusNotFound, &pathfind.UnknownNodeError{ID: id})
		return
	}

	dot := nodelink.ToDOT(snap.graph, id, mode.set(reply, id), nodelink.Options{
		Filter:    f,
		MaxLabels: s.opts.MaxLabels,
		Title:     string(mode) + " of " + string(id),
	})
	out, err := nodelink.Render(r.Context(), dot, format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	_, _ = w.Write(out)
}

func contentType(f nodelink.Format) string {
	switch f {
	case nodelink.FormatSVG:
		return "image/svg+xml"
	case nodelink.FormatPNG:
		return "image/png"
	default:
		return "text/vnd.graphviz; charset=utf-8"
	}
}

type pathResponse struct {
	From   depgraph.NodeID   `json:"from"`
	To     depgraph.NodeID   `json:"to"`
	Filter closure.Filter    `json:"filter"`
	Length int               `json:"length"`
	Nodes  []depgraph.NodeID `json:"nodes"`
	Edges  pathfind.Path     `json:"edges"`
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := depgraph.NodeID(q.Get("from")), depgraph.NodeID(q.Get("to"))
	if from == "" || to == "" {
		writeError(w, 0, errors.New(errors.ErrCodeInvalidInput, "from and to are required"))
		return
	}
	f, err := s.filterParam(r)
	if err != nil {
		writeError(w, 0, err)
		return
	}

	start := time.Now()
	p, err := pathfind.FindFiltered(s.current().graph, from, to, f)
	observability.Analysis().OnPathQuery(r.Context(), err == nil, time.Since(start))
	switch {
	case errors.Is(err, errors.ErrCodeUnknownNode):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		writeError(w, 0, err)
		return
	}

	nodes := p.Nodes()
	if nodes == nil {
		nodes = []depgraph.NodeID{from}
	}
	if p == nil {
		p = pathfind.Path{}
	}
	writeJSON(w, http.StatusOK, pathResponse{From: from, To: to, Filter: f, Length: len(p), Nodes: nodes, Edges: p})
}
