// Package tui is the interactive explorer for a loaded dependency graph.
//
// The model is the foreground of the analysis: it submits one request to a
// worker on start and renders "computing" until the reply arrives as a
// [ReplyMsg]. All navigation state lives in [State]; [Settings] is fixed for
// the life of the program.
package tui

import (
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/pathfind"
	"github.com/matzehuels/depviz/pkg/worker"
)

// InfoBoxMode selects what the info box shows.
type InfoBoxMode int

const (
	InfoAllFiles InfoBoxMode = iota
	InfoTopStats
	InfoSelectedFile
)

func (m InfoBoxMode) String() string {
	switch m {
	case InfoTopStats:
		return "top-stats"
	case InfoSelectedFile:
		return "selected-file"
	default:
		return "all-files"
	}
}

// next cycles the modes in display order.
func (m InfoBoxMode) next() InfoBoxMode { return (m + 1) % 3 }

// ViewMode selects which closure of the selected file is shown.
type ViewMode int

const (
	// ViewDeps shows what the file depends on.
	ViewDeps ViewMode = iota
	// ViewAncestors shows the files that recompile when it changes.
	ViewAncestors
)

func (v ViewMode) String() string {
	if v == ViewAncestors {
		return "ancestors"
	}
	return "deps"
}

// State is the mutable navigation state of the explorer.
type State struct {
	InfoBoxMode InfoBoxMode
	ViewMode    ViewMode
	Selected    depgraph.NodeID
}

// Settings are fixed display options.
type Settings struct {
	MaxLabelsToShow   int
	LogFilesToCompile bool
}

// DefaultSettings returns the explorer defaults.
func DefaultSettings() Settings {
	return Settings{MaxLabelsToShow: 10}
}

// ReplyMsg delivers the worker's reply to the model.
type ReplyMsg struct {
	Reply worker.Reply
}

// Model is the bubbletea model of the explorer.
type Model struct {
	State    State
	Settings Settings

	graph  *depgraph.Graph
	filter closure.Filter
	logger *log.Logger

	reply   *worker.Reply
	ids     []depgraph.NodeID
	matches []depgraph.NodeID
	cursor  int
	offset  int
	height  int
	width   int

	searching bool
	query     string

	pathFrom depgraph.NodeID
	path     string
}

// New creates a model for g. Settings with a non-positive label limit get
// the default.
func New(g *depgraph.Graph, f closure.Filter, settings Settings, logger *log.Logger) Model {
	if settings.MaxLabelsToShow <= 0 {
		settings.MaxLabelsToShow = DefaultSettings().MaxLabelsToShow
	}
	ids := g.NodeIDs()
	slices.Sort(ids)
	return Model{
		Settings: settings,
		graph:    g,
		filter:   f,
		logger:   logger,
		ids:      ids,
		matches:  ids,
		height:   15,
	}
}

// Ready reports whether the analysis reply has arrived.
func (m Model) Ready() bool { return m.reply != nil }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ReplyMsg:
		r := msg.Reply
		m.reply = &r
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = max(msg.Height-8, 5)
		m.clampOffset()
		return m, nil
	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.State.InfoBoxMode = m.State.InfoBoxMode.next()
	case "m":
		if m.State.ViewMode == ViewDeps {
			m.State.ViewMode = ViewAncestors
		} else {
			m.State.ViewMode = ViewDeps
		}
	case "/":
		m.searching = true
	case "esc":
		m.query = ""
		m.applyQuery()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		m.clampOffset()
	case "down", "j":
		if m.cursor < len(m.matches)-1 {
			m.cursor++
		}
		m.clampOffset()
	case "enter":
		m.selectCursor()
	case "p":
		m.markPath()
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.searching = false
		m.query = ""
	case tea.KeyEnter:
		m.searching = false
		m.applyQuery()
		m.selectCursor()
		return m, nil
	case tea.KeyBackspace:
		if r := []rune(m.query); len(r) > 0 {
			m.query = string(r[:len(r)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		m.query += string(msg.Runes)
	default:
		return m, nil
	}
	m.applyQuery()
	return m, nil
}

// applyQuery narrows the file list to ids with a matching prefix first,
// then ids containing the query anywhere.
func (m *Model) applyQuery() {
	m.cursor, m.offset = 0, 0
	if m.query == "" {
		m.matches = m.ids
		return
	}
	q := strings.ToLower(m.query)
	var prefix, infix []depgraph.NodeID
	for _, id := range m.ids {
		s := strings.ToLower(string(id))
		switch {
		case strings.HasPrefix(s, q):
			prefix = append(prefix, id)
		case strings.Contains(s, q):
			infix = append(infix, id)
		}
	}
	m.matches = append(prefix, infix...)
}

func (m *Model) selectCursor() {
	if len(m.matches) == 0 {
		return
	}
	m.State.Selected = m.matches[m.cursor]
	m.State.InfoBoxMode = InfoSelectedFile
	if m.Settings.LogFilesToCompile && m.reply != nil && m.logger != nil {
		m.logger.Debug("files to compile", "file", m.State.Selected, "files", m.reply.CauseRecompileMap[m.State.Selected])
	}
}

// markPath records the cursor as a path endpoint. The second mark runs the
// query from the first.
func (m *Model) markPath() {
	if len(m.matches) == 0 {
		return
	}
	id := m.matches[m.cursor]
	if m.pathFrom == "" {
		m.pathFrom = id
		m.path = "path from " + string(id) + " to ..."
		return
	}
	p, err := pathfind.FindFiltered(m.graph, m.pathFrom, id, m.filter)
	switch {
	case err != nil:
		m.path = err.Error()
	case len(p) == 0:
		m.path = string(id)
	default:
		m.path = p.String()
	}
	m.pathFrom = ""
}

func (m *Model) clampOffset() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.height {
		m.offset = m.cursor - m.height + 1
	}
}

// selectedSet returns the closure of the selected file for the view mode.
func (m Model) selectedSet() closure.Set {
	if m.reply == nil || m.State.Selected == "" {
		return nil
	}
	if m.State.ViewMode == ViewAncestors {
		return m.reply.CauseRecompileMap[m.State.Selected]
	}
	return m.reply.DependenciesMap[m.State.Selected]
}
