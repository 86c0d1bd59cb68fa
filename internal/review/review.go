// Package review is the interactive type-mapping review screen. It lists
// every source type seen during a conversion with its current target token
// and lets the user cycle common tokens, type a custom one, or restore the
// default before the DBML is regenerated.
package review

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pgdbml/pgdbml/internal/typemap"
)

// cycleTokens are the target tokens the edit key steps through.
var cycleTokens = []string{
	"text", "varchar", "int4", "int8", "numeric", "bool",
	"timestamp", "timestamptz", "date", "jsonb", "uuid", "float8",
}

// Model is the bubbletea model for the review screen.
type Model struct {
	types     *typemap.TypeMap
	seen      []string // source types seen during the run, sorted
	cursor    int
	editing   bool
	input     textinput.Model
	done      bool
	cancelled bool
	width     int
	height    int
}

// New creates a review model over the types seen by the given mapper.
func New(types *typemap.TypeMap) Model {
	input := textinput.New()
	input.Placeholder = "target token"
	input.CharLimit = 40

	return Model{
		types:  types,
		seen:   types.SeenTypes(),
		input:  input,
		width:  100,
		height: 24,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateList(msg)
	}

	return m, nil
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		token := strings.TrimSpace(m.input.Value())
		if token != "" && m.cursor < len(m.seen) {
			m.types.Override(m.seen[m.cursor], token)
		}
		m.editing = false
		m.input.Blur()
		m.input.SetValue("")
		return m, nil
	case "esc":
		m.editing = false
		m.input.Blur()
		m.input.SetValue("")
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if len(m.seen) == 0 {
		switch msg.String() {
		case "enter", "q", "esc", "ctrl+c":
			m.done = true
			m.cancelled = msg.String() != "enter"
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "esc", "ctrl+c":
		m.done = true
		m.cancelled = true
		return m, tea.Quit

	case "j", "down":
		if m.cursor < len(m.seen)-1 {
			m.cursor++
		}

	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}

	case "e": // cycle common target tokens
		source := m.seen[m.cursor]
		current := m.types.Map(source).Type.Token
		m.types.Override(source, nextToken(current))

	case "d": // restore default
		m.types.RestoreDefault(m.seen[m.cursor])

	case "o": // type a custom token
		m.editing = true
		m.input.Focus()
		return m, textinput.Blink

	case "enter":
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Type Mapping Review") + "\n\n")

	if len(m.seen) == 0 {
		b.WriteString("  No source types seen in this conversion.\n\n")
		b.WriteString(dimStyle.Render("  Press enter to continue • q to cancel\n"))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("  %-30s %-20s %s\n", "Source Type", "Target Token", "Status"))
	b.WriteString("  " + strings.Repeat("─", 64) + "\n")

	maxVisible := m.height - 10
	if maxVisible < 5 {
		maxVisible = 5
	}
	start := 0
	if m.cursor >= maxVisible {
		start = m.cursor - maxVisible + 1
	}
	end := start + maxVisible
	if end > len(m.seen) {
		end = len(m.seen)
	}

	for i := start; i < end; i++ {
		source := m.seen[i]
		token := m.types.Map(source).Type.String()

		cursor := "  "
		if i == m.cursor {
			cursor = highlightStyle.Render("> ")
		}

		status := dimStyle.Render("default")
		if m.types.IsOverridden(source) {
			status = successStyle.Render("override ★")
		}

		b.WriteString(fmt.Sprintf("%s%-30s %-20s %s\n", cursor, source, token, status))
	}

	b.WriteString("\n")
	if m.editing {
		b.WriteString(fmt.Sprintf("  Custom token for %s: %s\n", m.seen[m.cursor], m.input.View()))
		b.WriteString(dimStyle.Render("  enter apply • esc cancel\n"))
	} else {
		b.WriteString(dimStyle.Render("  e cycle • o custom • d restore default • enter confirm • q cancel\n"))
	}

	return b.String()
}

// Done reports whether the review finished.
func (m Model) Done() bool {
	return m.done
}

// Cancelled reports whether the user abandoned the review.
func (m Model) Cancelled() bool {
	return m.done && m.cancelled
}

// Run blocks until the review screen exits and reports whether the edits
// should be applied.
func Run(types *typemap.TypeMap) (bool, error) {
	p := tea.NewProgram(New(types))
	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("running review: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return false, nil
	}
	return !m.Cancelled(), nil
}

// nextToken returns the next token in the cycle after current.
func nextToken(current string) string {
	for i, t := range cycleTokens {
		if t == current {
			return cycleTokens[(i+1)%len(cycleTokens)]
		}
	}
	return cycleTokens[0]
}

// styles
var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).BorderStyle(lipgloss.DoubleBorder()).BorderBottom(true).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)
