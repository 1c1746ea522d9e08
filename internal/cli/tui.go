package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/nvlviz/pkg/store"
)

var listDimStyle = lipgloss.NewStyle().Foreground(colorDim)

// =============================================================================
// GraphListModel - Interactive stored graph selection
// =============================================================================

// GraphListModel is the bubbletea model for picking a stored graph.
type GraphListModel struct {
	Graphs   []store.Info
	Cursor   int
	Selected *store.Info
	Height   int
	Offset   int
	now      func() time.Time
}

// NewGraphListModel creates a picker over graphs.
func NewGraphListModel(graphs []store.Info) GraphListModel {
	return GraphListModel{
		Graphs: graphs,
		Height: 15,
		now:    time.Now,
	}
}

func (m GraphListModel) Init() tea.Cmd {
	return nil
}

func (m GraphListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Graphs)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Graphs) == 0 {
				return m, tea.Quit
			}
			info := m.Graphs[m.Cursor]
			m.Selected = &info
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m GraphListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Graph"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Graphs) {
		end = len(m.Graphs)
	}
	rows := make([][]string, 0, end-m.Offset)
	for i := m.Offset; i < end; i++ {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, append([]string{cursor}, m.row(m.Graphs[i])...))
	}

	t := graphTable(rows).
		Headers("", "Graph", "Nodes", "Relationships", "Updated").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleTableHeader
			}
			if m.Offset+row == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			}
			if col == 4 {
				return lipgloss.NewStyle().Foreground(colorDim)
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Graphs))))
	return b.String()
}

func (m GraphListModel) row(info store.Info) []string {
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	return []string{
		info.Name,
		fmt.Sprint(info.Nodes),
		fmt.Sprint(info.Relationships),
		formatRelativeTime(info.UpdatedAt, now()),
	}
}

// =============================================================================
// Helpers
// =============================================================================

var styleTableHeader = lipgloss.NewStyle().Foreground(colorGray).Bold(true)

// graphTable returns a rounded table over rows.
func graphTable(rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Rows(rows...)
}

func formatRelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "—"
	}
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
