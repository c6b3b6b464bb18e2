package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/impact"
	"github.com/matzehuels/depviz/pkg/worker"
)

func testGraph(t *testing.T) *depgraph.Graph {
	t.Helper()
	g, _, err := depgraph.Build(
		[]depgraph.Node{{ID: "lib/b.ex"}, {ID: "lib/a.ex"}, {ID: "test/c_test.exs"}},
		[]depgraph.RawEdge{
			{Source: "lib/a.ex", Target: "lib/b.ex", Label: "(compile)"},
			{Source: "test/c_test.exs", Target: "lib/a.ex"},
		},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func testReply() worker.Reply {
	deps := closure.Map{
		"lib/a.ex":        closure.NewSet("lib/b.ex"),
		"lib/b.ex":        closure.NewSet(),
		"test/c_test.exs": closure.NewSet("lib/a.ex", "lib/b.ex"),
	}
	causes := closure.Map{
		"lib/a.ex":        closure.NewSet("test/c_test.exs"),
		"lib/b.ex":        closure.NewSet("lib/a.ex", "test/c_test.exs"),
		"test/c_test.exs": closure.NewSet(),
	}
	return worker.Reply{
		DependenciesMap:   deps,
		CauseRecompileMap: causes,
		GetsRecompiledMap: impact.Summarize(deps),
	}
}

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func key(s string) tea.Msg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_ComputingUntilReply(t *testing.T) {
	m := New(testGraph(t), closure.AllKinds, DefaultSettings(), nil)
	if m.Ready() {
		t.Fatal("ready before reply")
	}
	if !strings.Contains(m.View(), "computing") {
		t.Errorf("view should show computing:\n%s", m.View())
	}

	m = update(t, m, ReplyMsg{Reply: testReply()})
	if !m.Ready() {
		t.Fatal("not ready after reply")
	}
	if !strings.Contains(m.View(), "Total files: 3") {
		t.Errorf("view should show total files:\n%s", m.View())
	}
}

func TestModel_TabCyclesInfoBox(t *testing.T) {
	m := New(testGraph(t), closure.AllKinds, DefaultSettings(), nil)
	want := []InfoBoxMode{InfoTopStats, InfoSelectedFile, InfoAllFiles}
	for _, w := range want {
		m = update(t, m, key("tab"))
		if m.State.InfoBoxMode != w {
			t.Fatalf("mode = %v, want %v", m.State.InfoBoxMode, w)
		}
	}
}

func TestModel_ToggleViewMode(t *testing.T) {
	m := New(testGraph(t), closure.AllKinds, DefaultSettings(), nil)
	m = update(t, m, key("m"))
	if m.State.ViewMode != ViewAncestors {
		t.Fatalf("view = %v, want ancestors", m.State.ViewMode)
	}
	m = update(t, m, key("m"))
	if m.State.ViewMode != ViewDeps {
		t.Fatalf("view = %v, want deps", m.State.ViewMode)
	}
}

func TestModel_SelectShowsClosure(t *testing.T) {
	m := New(testGraph(t), closure.AllKinds, DefaultSettings(), nil)
	m = update(t, m, ReplyMsg{Reply: testReply()})

	// Files are listed sorted; the second one is lib/b.ex.
	m = update(t, m, key("down"), key("enter"))
	if m.State.Selected != "lib/b.ex" {
		t.Fatalf("selected = %q", m.State.Selected)
	}
	if m.State.InfoBoxMode != InfoSelectedFile {
		t.Fatalf("mode = %v", m.State.InfoBoxMode)
	}
	if got := m.selectedSet().Len(); got != 0 {
		t.Errorf("deps of b = %d, want 0", got)
	}

	m = update(t, m, key("m"))
	if got := m.selectedSet(); !got.Contains("lib/a.ex") || got.Len() != 2 {
		t.Errorf("ancestors of b = %v", got)
	}
	if !strings.Contains(m.View(), "Files recompiled when changing lib/b.ex") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestModel_Search(t *testing.T) {
	m := New(testGraph(t), closure.AllKinds, DefaultSettings(), nil)
	m = update(t, m, key("/"), key("t"), key("e"), key("s"), key("t"))
	if !m.searching {
		t.Fatal("expected search mode")
	}
	// "test/c_test.exs" matches by prefix; nothing else contains "test".
	if len(m.matches) != 1 || m.matches[0] != "test/c_test.exs" {
		t.Fatalf("matches = %v", m.matches)
	}

	m = update(t, m, key("enter"))
	if m.searching {
		t.Error("search mode should end on enter")
	}
	if m.State.Selected != "test/c_test.exs" {
		t.Errorf("selected = %q", m.State.Selected)
	}

	m = update(t, m, key("esc"))
	if len(m.matches) != 3 {
		t.Errorf("esc should clear the filter, got %v", m.matches)
	}
}

func TestModel_SearchPrefixBeforeSubstring(t *testing.T) {
	m := New(testGraph(t), closure.AllKinds, DefaultSettings(), nil)
	m = update(t, m, key("/"), key("c"))
	// No id starts with "c"; only the test file contains it.
	if len(m.matches) != 1 {
		t.Fatalf("matches = %v", m.matches)
	}
	m = update(t, m, key("backspace"), key("l"))
	if len(m.matches) != 2 || m.matches[0] != "lib/a.ex" {
		t.Fatalf("matches = %v", m.matches)
	}
}

func TestModel_Path(t *testing.T) {
	m := New(testGraph(t), closure.AllKinds, DefaultSettings(), nil)
	// Cursor order: lib/a.ex, lib/b.ex, test/c_test.exs.
	m = update(t, m, key("down"), key("down"), key("p"))
	m = update(t, m, key("/"), key("lib/b"), key("enter"), key("p"))
	if want := "test/c_test.exs -> lib/a.ex -> lib/b.ex"; m.path != want {
		t.Errorf("path = %q, want %q", m.path, want)
	}
}

func TestModel_FailureReply(t *testing.T) {
	m := New(testGraph(t), closure.AllKinds, DefaultSettings(), nil)
	m = update(t, m, ReplyMsg{Reply: worker.Reply{Error: &worker.Failure{Stage: "closure", Code: "WORKER_FAILURE", Message: "boom"}}})
	if !strings.Contains(m.View(), "boom") {
		t.Errorf("view should show the failure:\n%s", m.View())
	}
}

func TestModel_LabelLimit(t *testing.T) {
	m := New(testGraph(t), closure.AllKinds, Settings{MaxLabelsToShow: 1}, nil)
	m = update(t, m, ReplyMsg{Reply: testReply()}, key("down"), key("down"), key("enter"))
	if !strings.Contains(m.View(), "and 1 more") {
		t.Errorf("view should truncate labels:\n%s", m.View())
	}
}

func TestModel_Quit(t *testing.T) {
	m := New(testGraph(t), closure.AllKinds, DefaultSettings(), nil)
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}
