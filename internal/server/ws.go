package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/matzehuels/depviz/pkg/errors"
	"github.com/matzehuels/depviz/pkg/worker"
)

const wsSendBuffer = 16

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// handleWS speaks the analysis message protocol over a websocket. Every
// text frame is a request; every request gets exactly one reply, either the
// analysis or a failure. A newer request supersedes an older one still in
// flight on the same connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := s.logger.With("remote", r.RemoteAddr)
	wk := worker.New(s.opts.Runner.AnalyzeFunc(s.opts.Analysis), logger.WithPrefix("ws"))
	if err := wk.Start(ctx); err != nil {
		logger.Error("starting worker failed", "err", err)
		return
	}

	send := make(chan worker.Reply, wsSendBuffer)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for reply := range send {
			if err := conn.WriteJSON(reply); err != nil {
				logger.Warn("websocket write failed", "err", err)
				cancel()
				return
			}
		}
	}()

	deliver := func(reply worker.Reply) {
		select {
		case send <- reply:
		case <-ctx.Done():
		}
	}

	logger.Debug("websocket connected")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read ended", "err", err)
			}
			break
		}

		var req worker.Request
		if err := json.Unmarshal(data, &req); err != nil {
			deliver(worker.Reply{Error: &worker.Failure{
				Code:    errors.ErrCodeInvalidInput,
				Message: "malformed request: " + err.Error(),
			}})
			continue
		}
		if _, err := wk.Submit(req, deliver); err != nil {
			deliver(worker.Reply{ID: req.ID, Error: &worker.Failure{
				Code:    errors.CodeOf(err),
				Message: errors.UserMessage(err),
			}})
		}
	}

	// Stop delivers the pending replies before returning.
	wk.Stop()
	cancel()
	close(send)
	<-writerDone
	logger.Debug("websocket closed")
}
