package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hull/internal/history"
	"hull/pkg/depgraph"
)

// keyMap defines the log browser keybindings.
type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Top  key.Binding
	Bot  key.Binding
	Quit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bot: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// model is the bubbletea model for the log browser: a selectable list of
// operations with the selected plan rendered beside it.
type model struct {
	entries  []history.Entry
	selected int
	keys     keyMap
	styles   *Styles
	detail   viewport.Model
	width    int
	height   int
	ready    bool
}

// RunLogBrowser opens the interactive view over the given entries,
// newest first.
func RunLogBrowser(entries []history.Entry) error {
	m := model{
		entries: entries,
		keys:    defaultKeyMap(),
		styles:  DefaultStyles(),
	}
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.detail = viewport.New(msg.Width/2-4, msg.Height-4)
		m.ready = true
		m.refreshDetail()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.selected > 0 {
				m.selected--
				m.refreshDetail()
			}
		case key.Matches(msg, m.keys.Down):
			if m.selected < len(m.entries)-1 {
				m.selected++
				m.refreshDetail()
			}
		case key.Matches(msg, m.keys.Top):
			m.selected = 0
			m.refreshDetail()
		case key.Matches(msg, m.keys.Bot):
			if len(m.entries) > 0 {
				m.selected = len(m.entries) - 1
				m.refreshDetail()
			}
		}
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m *model) refreshDetail() {
	if !m.ready || len(m.entries) == 0 {
		return
	}
	m.detail.SetContent(m.renderPlan(m.entries[m.selected]))
}

func (m *model) renderPlan(entry history.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", m.styles.ID.Render(fmt.Sprintf("#%d", entry.ID)), m.styles.Command.Render(entry.Command))
	fmt.Fprintf(&b, "%s\n\n", m.styles.Time.Render(entry.FormatTime()))

	if entry.Plan.Empty() {
		b.WriteString(m.styles.Time.Render("no filesystem changes"))
		return b.String()
	}

	for _, step := range entry.Plan.Steps {
		var style lipgloss.Style
		switch step.Op {
		case depgraph.OpInstall:
			style = m.styles.StepInstall
		case depgraph.OpRemove:
			style = m.styles.StepRemove
		case depgraph.OpUpgrade:
			style = m.styles.StepUpgrade
		case depgraph.OpDowngrade:
			style = m.styles.StepDowngrade
		}
		fmt.Fprintf(&b, "%s\n", style.Render(step.String()))
	}
	return b.String()
}

func (m model) View() string {
	if !m.ready {
		return "loading..."
	}
	if len(m.entries) == 0 {
		return m.styles.Header.Render("Operation log") + "\n\n  The operation log is empty\n\n" +
			m.styles.Footer.Render("q quit")
	}

	listWidth := m.width/2 - 2
	var list strings.Builder
	visible := m.height - 4
	start := 0
	if m.selected >= visible {
		start = m.selected - visible + 1
	}

	for i := start; i < len(m.entries) && i-start < visible; i++ {
		entry := m.entries[i]
		line := fmt.Sprintf("%s %s %s",
			m.styles.ID.Render(fmt.Sprintf("%4d", entry.ID)),
			m.styles.Time.Render(entry.Timestamp.Format("2006-01-02 15:04")),
			entry.Command)
		if i == m.selected {
			line = m.styles.Selected.Render("▸ ") + line
		} else {
			line = "  " + line
		}
		if lipgloss.Width(line) > listWidth {
			line = line[:listWidth]
		}
		list.WriteString(line + "\n")
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(listWidth).Render(list.String()),
		m.styles.Detail.Render(m.detail.View()))

	return m.styles.Header.Render("Operation log") + "\n" +
		body + "\n" +
		m.styles.Footer.Render("↑/↓ navigate · g/G top/bottom · q quit")
}
