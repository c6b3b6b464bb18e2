package tui

import (
	"context"
	stderrors "errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/worker"
)

// Options configures Run.
type Options struct {
	Graph    *depgraph.Graph
	Request  worker.Request
	Analyze  worker.AnalyzeFunc
	Settings Settings
	Logger   *log.Logger

	// Input and Output override the terminal, mainly for tests.
	Input  io.Reader
	Output io.Writer
}

// Run starts a worker, submits opts.Request and runs the explorer until the
// user quits or ctx ends. It returns the final model.
func Run(ctx context.Context, opts Options) (Model, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	w := worker.New(opts.Analyze, logger.WithPrefix("worker"))
	if err := w.Start(ctx); err != nil {
		return Model{}, err
	}
	defer w.Stop()

	model := New(opts.Graph, opts.Request.Filter, opts.Settings, logger)
	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	} else {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	p := tea.NewProgram(model, progOpts...)

	if _, err := w.Submit(opts.Request, func(r worker.Reply) { p.Send(ReplyMsg{Reply: r}) }); err != nil {
		return Model{}, err
	}

	final, err := p.Run()
	if err != nil {
		if stderrors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return Model{}, ctx.Err()
		}
		return Model{}, err
	}
	m, _ := final.(Model)
	return m, nil
}
