package picker

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// SelectionMsg carries an emitted selection to the owning screen, in
// full-set order. Multi pickers send it on submit, Single pickers on
// every toggle.
type SelectionMsg struct {
	Options []Option
}

// Model is the interactive picker widget: a text input filtering a
// checkbox list. Typing edits the filter, Up/Down move the cursor, Tab
// toggles the highlighted option, Enter submits (Multi) or toggles
// (Single). Esc is left to the owning screen.
type Model struct {
	sel    *Select
	input  textinput.Model
	cursor int // Index into the visible subsequence
	offset int // First visible row, for scrolling
	width  int
	height int
}

// New creates a focused picker over the given options. Owners reset the
// widget, selection included, by creating a new one.
func New(mode Mode, options []Option) Model {
	ti := textinput.New()
	ti.Placeholder = "type to filter"
	ti.Prompt = "/ "
	ti.Focus()
	return Model{
		sel:    NewSelect(mode, options),
		input:  ti,
		width:  60,
		height: 12,
	}
}

// Init returns the cursor blink command for the filter input.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// SetSize bounds the rendered widget. Height covers the input line, the
// option rows, and the hint line.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.ensureVisible()
}

// Selection returns the current selection in full-set order.
func (m Model) Selection() []Option {
	return m.sel.Selection()
}

// SelectedCount returns the size of the selection set.
func (m Model) SelectedCount() int {
	return m.sel.SelectedCount()
}

// CanSubmit reports whether Enter would emit the selection.
func (m Model) CanSubmit() bool {
	return m.sel.CanSubmit()
}

// Query returns the current filter text.
func (m Model) Query() string {
	return m.sel.Query()
}

// Update processes one message. Non-key messages go to the filter input
// (cursor blink ticks).
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch key.Type {
	case tea.KeyUp:
		m.moveCursor(-1)
		return m, nil

	case tea.KeyDown:
		m.moveCursor(1)
		return m, nil

	case tea.KeyTab:
		return m, m.toggleHighlighted()

	case tea.KeyEnter:
		if m.sel.Mode() == Multi {
			if opts, emit := m.sel.Submit(); emit {
				return m, emitSelection(opts)
			}
			return m, nil
		}
		return m, m.toggleHighlighted()
	}

	// Everything else edits the filter.
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	if v := m.input.Value(); v != before {
		m.sel.SetQuery(v)
		m.cursor = 0
		m.offset = 0
	}
	return m, cmd
}

// toggleHighlighted flips the option under the cursor and returns an
// emission command when the mode reports toggles immediately.
func (m *Model) toggleHighlighted() tea.Cmd {
	if m.sel.VisibleLen() == 0 {
		return nil
	}
	opt := m.sel.VisibleAt(m.cursor)
	emitted, emit := m.sel.Toggle(opt.Value)
	if !emit {
		return nil
	}
	return emitSelection(emitted)
}

func emitSelection(opts []Option) tea.Cmd {
	return func() tea.Msg { return SelectionMsg{Options: opts} }
}

// moveCursor shifts the cursor within the visible subsequence.
func (m *Model) moveCursor(delta int) {
	n := m.sel.VisibleLen()
	if n == 0 {
		m.cursor = 0
		m.offset = 0
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= n {
		m.cursor = n - 1
	}
	m.ensureVisible()
}

// ensureVisible scrolls the list window so the cursor row is shown.
func (m *Model) ensureVisible() {
	rows := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}

// listHeight returns the number of visible option rows (widget height
// minus the input and hint lines).
func (m Model) listHeight() int {
	h := m.height - 2
	if h < 1 {
		h = 1
	}
	return h
}

// --- View rendering ---

var (
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	checkedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	normalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View renders the filter input, the option list, and the hint line.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteRune('\n')
	b.WriteString(m.viewList())
	b.WriteString(m.viewHint())
	return b.String()
}

// viewList renders the visible window of options with cursor and
// checkbox markers.
func (m Model) viewList() string {
	n := m.sel.VisibleLen()
	if n == 0 {
		return dimStyle.Render("  no matches") + "\n"
	}

	var b strings.Builder
	end := m.offset + m.listHeight()
	if end > n {
		end = n
	}
	for i := m.offset; i < end; i++ {
		b.WriteString(m.viewRow(m.sel.VisibleAt(i), i == m.cursor))
		b.WriteRune('\n')
	}
	return b.String()
}

// viewRow renders one option row.
func (m Model) viewRow(opt Option, highlighted bool) string {
	prefix := "  "
	if highlighted {
		prefix = cursorStyle.Render("> ")
	}

	marker := ""
	if m.sel.Mode() == Multi {
		if m.sel.IsSelected(opt.Value) {
			marker = checkedStyle.Render("[x] ")
		} else {
			marker = "[ ] "
		}
	}

	text := runewidth.Truncate(opt.Text, m.textWidth(), "…")
	switch {
	case m.sel.Mode() == Single && m.sel.IsSelected(opt.Value):
		text = checkedStyle.Render(text)
	case highlighted:
		text = normalStyle.Bold(true).Render(text)
	default:
		text = normalStyle.Render(text)
	}
	return prefix + marker + text
}

// textWidth returns the room left for option text after markers.
func (m Model) textWidth() int {
	w := m.width - 2
	if m.sel.Mode() == Multi {
		w -= 4
	}
	if w < 8 {
		w = 8
	}
	return w
}

// viewHint renders the count and key hint line.
func (m Model) viewHint() string {
	var hint string
	switch m.sel.Mode() {
	case Multi:
		hint = fmt.Sprintf("%d/%d shown · %d selected · tab toggle · enter add",
			m.sel.VisibleLen(), m.sel.Len(), m.sel.SelectedCount())
	default:
		hint = fmt.Sprintf("%d/%d shown · enter select", m.sel.VisibleLen(), m.sel.Len())
	}
	return dimStyle.Render(hint)
}
