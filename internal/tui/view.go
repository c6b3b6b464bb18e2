package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/depviz/pkg/impact"
)

var (
	colorCyan   = lipgloss.Color("36")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorWhite  = lipgloss.Color("255")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

var (
	styleTitle    = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleSelected = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleNormal   = lipgloss.NewStyle().Foreground(colorWhite)
	styleDim      = lipgloss.NewStyle().Foreground(colorDim)
	styleWarn     = lipgloss.NewStyle().Foreground(colorYellow)
	styleError    = lipgloss.NewStyle().Foreground(colorRed)
	styleHeader   = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleBox      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(styleTitle.Render("depviz"))
	b.WriteString(styleDim.Render(fmt.Sprintf("  %d files · filter %s · view %s", len(m.ids), m.filter, m.State.ViewMode)))
	b.WriteString("\n")
	b.WriteString(styleDim.Render("↑/↓ navigate  ⏎ select  / search  tab info  m mode  p path  q quit"))
	b.WriteString("\n\n")

	info := styleBox.Render(m.infoBox())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.fileList(), "  ", info))
	b.WriteString("\n")

	switch {
	case m.searching:
		b.WriteString(styleNormal.Render("/" + m.query + "█"))
	case m.query != "":
		b.WriteString(styleDim.Render(fmt.Sprintf("filtered by %q (esc clears)", m.query)))
	}
	if m.path != "" {
		b.WriteString("\n")
		b.WriteString(styleWarn.Render(m.path))
	}
	return b.String()
}

func (m Model) fileList() string {
	var b strings.Builder
	end := min(m.offset+m.height, len(m.matches))
	for i := m.offset; i < end; i++ {
		id := string(m.matches[i])
		if i == m.cursor {
			b.WriteString(styleSelected.Render("▸ " + id))
		} else {
			b.WriteString(styleNormal.Render("  " + id))
		}
		b.WriteString("\n")
	}
	if len(m.matches) == 0 {
		b.WriteString(styleDim.Render("  no matching files\n"))
	}
	b.WriteString(styleDim.Render(fmt.Sprintf("  [%d/%d]", min(m.cursor+1, len(m.matches)), len(m.matches))))
	return b.String()
}

func (m Model) infoBox() string {
	if m.reply == nil {
		return styleDim.Render("computing…")
	}
	if f := m.reply.Error; f != nil {
		return styleError.Render(f.Error())
	}

	switch m.State.InfoBoxMode {
	case InfoTopStats:
		return m.topStats()
	case InfoSelectedFile:
		return m.selectedFile()
	default:
		return m.allFiles()
	}
}

func (m Model) allFiles() string {
	st := impact.Describe(m.reply.CauseRecompileMap)
	lines := []string{
		styleHeader.Render("All files"),
		fmt.Sprintf("Total files: %d", impact.TotalFiles(m.reply.GetsRecompiledMap)),
		fmt.Sprintf("Max cause recompile: %d", st.MaxCauseRecompile),
		fmt.Sprintf("Mean cause recompile: %.2f", st.MeanCauseRecompile),
	}
	if n := m.reply.SkippedEdges; n > 0 {
		lines = append(lines, styleWarn.Render(fmt.Sprintf("Skipped edges: %d", n)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) topStats() string {
	n := m.Settings.MaxLabelsToShow
	causes := impact.TopCauseRecompile(m.reply.CauseRecompileMap, n)
	gets := impact.TopGetsRecompiled(m.reply.DependenciesMap, n)

	rows := make([][]string, max(len(causes), len(gets)))
	for i := range rows {
		rows[i] = []string{"", "", "", ""}
		if i < len(causes) {
			rows[i][0], rows[i][1] = string(causes[i].ID), strconv.Itoa(causes[i].Count)
		}
		if i < len(gets) {
			rows[i][2], rows[i][3] = string(gets[i].ID), strconv.Itoa(gets[i].Count)
		}
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styleDim).
		Headers("Causes recompile", "#", "Gets recompiled", "#").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if col == 1 || col == 3 {
				return styleTitle
			}
			return styleNormal
		})
	return t.Render()
}

func (m Model) selectedFile() string {
	if m.State.Selected == "" {
		return styleDim.Render("no file selected (⏎ to select)")
	}
	set := m.selectedSet()
	title := "Dependencies of "
	if m.State.ViewMode == ViewAncestors {
		title = "Files recompiled when changing "
	}

	lines := []string{
		styleHeader.Render(title + string(m.State.Selected)),
		fmt.Sprintf("%d files", set.Len()),
	}
	limit := m.Settings.MaxLabelsToShow
	for i, id := range set {
		if i == limit {
			lines = append(lines, styleDim.Render(fmt.Sprintf("… and %d more", set.Len()-limit)))
			break
		}
		lines = append(lines, "  "+string(id))
	}
	return strings.Join(lines, "\n")
}
