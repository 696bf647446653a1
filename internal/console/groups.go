package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ostrem/steward/internal/directory"
	"github.com/ostrem/steward/internal/task"
)

// groupsModel is the groups screen: the full group list with a live
// client-side filter, group creation, and deletion. Enter opens the
// detail screen for the highlighted group.
type groupsModel struct {
	client             Directory
	log                *slog.Logger
	confirmDestructive bool

	listTask   task.Task[[]directory.GroupSummary]
	createTask task.Task[*directory.Group]
	deleteTask task.Task[deletedEntity]
	groups     []directory.GroupSummary
	loaded     bool

	filter    textinput.Model
	filtering bool
	query     string // live filter; applied client-side as it is typed

	creating    bool
	createInput textinput.Model

	cursor  int // index into the visible subsequence
	offset  int
	maxRows int // cap on rendered rows; 0 means fill the space
	confirm *confirmModel

	lastErr       *errNotice
	width, height int
}

func newGroups(client Directory, log *slog.Logger, confirmDestructive bool) groupsModel {
	fi := textinput.New()
	fi.Placeholder = "type to filter"
	fi.Prompt = "/ "
	ci := textinput.New()
	ci.Placeholder = "group name"
	ci.Prompt = "new group: "
	return groupsModel{
		client:             client,
		log:                log,
		confirmDestructive: confirmDestructive,
		listTask:           task.New[[]directory.GroupSummary](),
		createTask:         task.New[*directory.Group](),
		deleteTask:         task.New[deletedEntity](),
		filter:             fi,
		createInput:        ci,
		width:              80,
		height:             24,
	}
}

// ensureLoaded starts the first list fetch. The screen loads lazily, on
// first visit.
func (m *groupsModel) ensureLoaded() tea.Cmd {
	if m.loaded || m.listTask.Busy() {
		return nil
	}
	return m.dispatchList()
}

func (m *groupsModel) dispatchList() tea.Cmd {
	client := m.client
	return m.listTask.Start(func() ([]directory.GroupSummary, error) {
		return client.ListGroups(context.Background())
	})
}

func (m *groupsModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m groupsModel) capturesKeys() bool {
	return m.filtering || m.creating || m.confirm != nil
}

func (m groupsModel) Update(msg tea.Msg) (groupsModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		cmd := m.handleKey(key)
		return m, cmd
	}

	if done, ok := m.listTask.Observe(msg); ok {
		if done.Err != nil {
			m.lastErr = noticeFromErr(done.Err)
			return m, reportError(done.Err)
		}
		m.groups = done.Value
		m.loaded = true
		m.lastErr = nil
		m.clampCursor()
		return m, nil
	}

	if done, ok := m.createTask.Observe(msg); ok {
		if done.Err != nil {
			m.lastErr = noticeFromErr(done.Err)
			return m, reportError(done.Err)
		}
		g := done.Value
		m.groups = append(m.groups, directory.GroupSummary{
			ID:           g.ID,
			DisplayName:  g.DisplayName,
			CreationDate: g.CreationDate,
		})
		m.lastErr = nil
		return m, statusf("created group %s", g.DisplayName)
	}

	if done, ok := m.deleteTask.Observe(msg); ok {
		if done.Err != nil {
			m.lastErr = noticeFromErr(done.Err)
			return m, reportError(done.Err)
		}
		m.pruneGroup(done.Value.id)
		return m, statusf("deleted group %s", done.Value.label)
	}

	var cmd tea.Cmd
	if m.filtering {
		m.filter, cmd = m.filter.Update(msg)
	} else if m.creating {
		m.createInput, cmd = m.createInput.Update(msg)
	}
	return m, cmd
}

func (m *groupsModel) handleKey(key tea.KeyMsg) tea.Cmd {
	if m.confirm != nil {
		c := m.confirm
		m.confirm = nil
		if key.Type == tea.KeyEnter || key.String() == "y" {
			return m.deleteGroup(c.subjectID)
		}
		return nil
	}

	if m.filtering {
		return m.handleFilterKey(key)
	}
	if m.creating {
		return m.handleCreateKey(key)
	}

	switch key.Type {
	case tea.KeyUp:
		m.moveCursor(-1)
		return nil
	case tea.KeyDown:
		m.moveCursor(1)
		return nil
	case tea.KeyEnter:
		return m.openSelected()
	case tea.KeyEsc:
		if m.query != "" {
			m.query = ""
			m.filter.SetValue("")
			m.cursor = 0
			m.offset = 0
		}
		return nil
	}

	switch key.String() {
	case "/":
		m.filtering = true
		m.filter.Focus()
		return textinput.Blink
	case "n":
		m.creating = true
		m.createInput.Focus()
		return textinput.Blink
	case "d":
		return m.confirmDelete()
	case "r":
		return m.dispatchList()
	}
	return nil
}

func (m *groupsModel) handleFilterKey(key tea.KeyMsg) tea.Cmd {
	switch key.Type {
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.query = ""
		m.cursor = 0
		m.offset = 0
		return nil
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return nil
	}
	var cmd tea.Cmd
	before := m.filter.Value()
	m.filter, cmd = m.filter.Update(key)
	if v := m.filter.Value(); v != before {
		m.query = v
		m.cursor = 0
		m.offset = 0
	}
	return cmd
}

func (m *groupsModel) handleCreateKey(key tea.KeyMsg) tea.Cmd {
	switch key.Type {
	case tea.KeyEsc:
		m.creating = false
		m.createInput.Blur()
		m.createInput.SetValue("")
		return nil
	case tea.KeyEnter:
		name := strings.TrimSpace(m.createInput.Value())
		if name == "" || m.createTask.Busy() {
			return nil
		}
		m.creating = false
		m.createInput.Blur()
		m.createInput.SetValue("")
		client := m.client
		return m.createTask.Start(func() (*directory.Group, error) {
			return client.CreateGroup(context.Background(), name)
		})
	}
	var cmd tea.Cmd
	m.createInput, cmd = m.createInput.Update(key)
	return cmd
}

func (m *groupsModel) confirmDelete() tea.Cmd {
	g, ok := m.selectedGroup()
	if !ok {
		return nil
	}
	if !m.confirmDestructive {
		return m.deleteGroup(g.ID)
	}
	m.confirm = confirmPrompt(confirmDeleteGroup, g.ID, g.DisplayName, "", "")
	return nil
}

func (m *groupsModel) deleteGroup(id string) tea.Cmd {
	if m.deleteTask.Busy() {
		return nil
	}
	label := id
	for _, g := range m.groups {
		if g.ID == id {
			label = g.DisplayName
			break
		}
	}
	client := m.client
	return m.deleteTask.Start(func() (deletedEntity, error) {
		return deletedEntity{id: id, label: label}, client.DeleteGroup(context.Background(), id)
	})
}

func (m *groupsModel) openSelected() tea.Cmd {
	g, ok := m.selectedGroup()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		return openGroupMsg{id: g.ID, name: g.DisplayName}
	}
}

// visibleGroups returns the groups matching the live filter, in list
// order. Matching is a case-insensitive substring test on the display
// name and id.
func (m *groupsModel) visibleGroups() []directory.GroupSummary {
	if m.query == "" {
		return m.groups
	}
	q := strings.ToLower(m.query)
	visible := make([]directory.GroupSummary, 0, len(m.groups))
	for _, g := range m.groups {
		if strings.Contains(strings.ToLower(g.DisplayName), q) || strings.Contains(strings.ToLower(g.ID), q) {
			visible = append(visible, g)
		}
	}
	return visible
}

func (m *groupsModel) selectedGroup() (directory.GroupSummary, bool) {
	visible := m.visibleGroups()
	if m.cursor >= len(visible) {
		return directory.GroupSummary{}, false
	}
	return visible[m.cursor], true
}

func (m *groupsModel) pruneGroup(id string) {
	groups := m.groups[:0]
	for _, g := range m.groups {
		if g.ID != id {
			groups = append(groups, g)
		}
	}
	m.groups = groups
	m.clampCursor()
}

func (m *groupsModel) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
}

func (m *groupsModel) clampCursor() {
	if n := len(m.visibleGroups()); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.ensureVisible()
}

func (m *groupsModel) ensureVisible() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m groupsModel) listHeight() int {
	h := m.height - 7
	if h < 3 {
		h = 3
	}
	if m.maxRows > 0 && h > m.maxRows {
		h = m.maxRows
	}
	return h
}

func (m groupsModel) View() string {
	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteString("\n")
	b.WriteString(m.viewTable())
	if m.confirm != nil {
		b.WriteString(m.confirm.View())
		b.WriteString("\n")
	}
	if m.lastErr != nil {
		b.WriteString(viewNotice(m.lastErr))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("/ filter · enter open · n new · d delete · r refresh"))
	return b.String()
}

func (m groupsModel) viewHeader() string {
	if m.filtering {
		return m.filter.View()
	}
	if m.creating {
		return m.createInput.View()
	}
	visible := m.visibleGroups()
	head := titleStyle.Render("Groups") + dimStyle.Render(fmt.Sprintf("  %d/%d shown", len(visible), len(m.groups)))
	if m.query != "" {
		head += dimStyle.Render("  filter: ") + normalStyle.Render(m.query)
	}
	if m.listTask.Busy() {
		head += warnStyle.Render("  refreshing…")
	}
	return head
}

func (m groupsModel) viewTable() string {
	if !m.loaded {
		if m.listTask.Busy() {
			return dimStyle.Render("loading groups…") + "\n"
		}
		return dimStyle.Render("not loaded") + "\n"
	}

	nameW := max(m.width/2, 24)
	var b strings.Builder
	b.WriteString(headerStyle.Render("  " + padCell("NAME", nameW) + "ID"))
	b.WriteString("\n")

	visible := m.visibleGroups()
	if len(visible) == 0 {
		b.WriteString(dimStyle.Render("  no groups match"))
		b.WriteString("\n")
		return b.String()
	}

	end := m.offset + m.listHeight()
	if end > len(visible) {
		end = len(visible)
	}
	for i := m.offset; i < end; i++ {
		g := visible[i]
		row := padCell(g.DisplayName, nameW) + g.ID
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> ") + normalStyle.Render(row))
		} else {
			b.WriteString("  " + normalStyle.Render(row))
		}
		b.WriteString("\n")
	}
	return b.String()
}
