package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ostrem/steward/internal/directory"
	"github.com/ostrem/steward/internal/task"
)

// groupDetailModel shows one group's members and owns the add-members
// overlay. Removals and additions update the table in place; the group
// is only refetched on demand.
type groupDetailModel struct {
	client    Directory
	log       *slog.Logger
	groupID   string
	groupName string // from the list row, shown until the load lands

	loadTask   task.Task[*directory.Group]
	removeTask task.Task[string]
	group      *directory.Group

	cursor  int
	offset  int
	maxRows int // cap on rendered rows; 0 means fill the space
	confirm *confirmModel
	overlay *addMembersModel

	lastErr       *errNotice
	width, height int
}

func newGroupDetail(client Directory, log *slog.Logger, groupID, groupName string, width, height int) (*groupDetailModel, tea.Cmd) {
	m := &groupDetailModel{
		client:     client,
		log:        log,
		groupID:    groupID,
		groupName:  groupName,
		loadTask:   task.New[*directory.Group](),
		removeTask: task.New[string](),
		width:      width,
		height:     height,
	}
	return m, m.refetch()
}

func (m *groupDetailModel) refetch() tea.Cmd {
	client, id := m.client, m.groupID
	return m.loadTask.Start(func() (*directory.Group, error) {
		return client.GetGroup(context.Background(), id)
	})
}

func (m *groupDetailModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.overlay != nil {
		m.overlay.SetSize(width, height)
	}
}

// capturesKeys reports whether the screen is in a state where global
// keys (tab, q) must not fire.
func (m *groupDetailModel) capturesKeys() bool {
	return m.overlay != nil || m.confirm != nil
}

func (m *groupDetailModel) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		return m.handleKey(key)
	}

	switch msg := msg.(type) {
	case memberCommittedMsg:
		if msg.groupID == m.groupID {
			m.appendMember(msg.user)
		}
		return nil
	case batchDoneMsg:
		if msg.groupID == m.groupID && !msg.failed {
			return statusf("added %d member(s) to %s", msg.added, m.title())
		}
		return nil
	}

	if done, ok := m.loadTask.Observe(msg); ok {
		if done.Err != nil {
			m.lastErr = noticeFromErr(done.Err)
			return reportError(done.Err)
		}
		m.group = done.Value
		m.lastErr = nil
		m.clampCursor()
		return nil
	}

	if done, ok := m.removeTask.Observe(msg); ok {
		if done.Err != nil {
			m.lastErr = noticeFromErr(done.Err)
			return reportError(done.Err)
		}
		m.pruneMember(done.Value)
		return statusf("removed member from %s", m.title())
	}

	if m.overlay != nil {
		return m.overlay.Update(msg)
	}
	return nil
}

func (m *groupDetailModel) handleKey(key tea.KeyMsg) tea.Cmd {
	if m.confirm != nil {
		c := m.confirm
		m.confirm = nil
		if key.Type == tea.KeyEnter || key.String() == "y" {
			return m.removeMember(c.subjectID)
		}
		return nil
	}

	if m.overlay != nil {
		if key.Type == tea.KeyEsc {
			// Tearing the overlay down also orphans any in-flight
			// completion; nothing observes it afterwards.
			m.overlay = nil
			return nil
		}
		return m.overlay.Update(key)
	}

	switch key.Type {
	case tea.KeyUp:
		m.moveCursor(-1)
		return nil
	case tea.KeyDown:
		m.moveCursor(1)
		return nil
	case tea.KeyEsc:
		return func() tea.Msg { return closeDetailMsg{} }
	}

	switch key.String() {
	case "a":
		return m.openAddMembers()
	case "d":
		m.confirmRemove()
		return nil
	case "r":
		return m.refetch()
	}
	return nil
}

func (m *groupDetailModel) openAddMembers() tea.Cmd {
	if m.group == nil {
		return nil
	}
	overlay, cmd := newAddMembers(m.client, m.log, m.groupID, m.title(), m.group.Members, m.width, m.height)
	m.overlay = overlay
	return cmd
}

func (m *groupDetailModel) confirmRemove() {
	u, ok := m.selectedMember()
	if !ok {
		return
	}
	m.confirm = confirmPrompt(confirmRemoveMember, u.ID, u.Label(), m.groupID, m.title())
}

func (m *groupDetailModel) removeMember(userID string) tea.Cmd {
	client, groupID := m.client, m.groupID
	return m.removeTask.Start(func() (string, error) {
		return userID, client.RemoveMember(context.Background(), userID, groupID)
	})
}

func (m *groupDetailModel) selectedMember() (directory.User, bool) {
	if m.group == nil || m.cursor >= len(m.group.Members) {
		return directory.User{}, false
	}
	return m.group.Members[m.cursor], true
}

func (m *groupDetailModel) appendMember(u directory.User) {
	if m.group == nil {
		return
	}
	for _, existing := range m.group.Members {
		if existing.ID == u.ID {
			return
		}
	}
	m.group.Members = append(m.group.Members, u)
}

func (m *groupDetailModel) pruneMember(userID string) {
	if m.group == nil {
		return
	}
	members := m.group.Members[:0]
	for _, u := range m.group.Members {
		if u.ID != userID {
			members = append(members, u)
		}
	}
	m.group.Members = members
	m.clampCursor()
}

func (m *groupDetailModel) title() string {
	if m.group != nil && m.group.DisplayName != "" {
		return m.group.DisplayName
	}
	if m.groupName != "" {
		return m.groupName
	}
	return m.groupID
}

func (m *groupDetailModel) memberCount() int {
	if m.group == nil {
		return 0
	}
	return len(m.group.Members)
}

func (m *groupDetailModel) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
	m.ensureVisible()
}

func (m *groupDetailModel) clampCursor() {
	if n := m.memberCount(); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.ensureVisible()
}

func (m *groupDetailModel) ensureVisible() {
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

func (m *groupDetailModel) listHeight() int {
	h := m.height - 6
	if h < 3 {
		h = 3
	}
	if m.maxRows > 0 && h > m.maxRows {
		h = m.maxRows
	}
	return h
}

func (m *groupDetailModel) View() string {
	if m.overlay != nil {
		return m.overlay.View()
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title()))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d member(s)", m.memberCount())))
	b.WriteString("\n")

	switch {
	case m.group == nil && m.loadTask.Busy():
		b.WriteString(dimStyle.Render("loading group…"))
		b.WriteString("\n")
	case m.group == nil:
		b.WriteString(dimStyle.Render("group not loaded"))
		b.WriteString("\n")
	default:
		b.WriteString(m.viewMembers())
	}

	if m.confirm != nil {
		b.WriteString(m.confirm.View())
		b.WriteString("\n")
	}
	if m.lastErr != nil {
		b.WriteString(viewNotice(m.lastErr))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("a add members · d remove · r refresh · esc back"))
	return b.String()
}

func (m *groupDetailModel) viewMembers() string {
	nameW, emailW := m.columnWidths()
	var b strings.Builder
	b.WriteString(headerStyle.Render("  " + padCell("NAME", nameW) + padCell("EMAIL", emailW) + "ID"))
	b.WriteString("\n")

	members := m.group.Members
	if len(members) == 0 {
		b.WriteString(dimStyle.Render("  no members"))
		b.WriteString("\n")
		return b.String()
	}

	end := m.offset + m.listHeight()
	if end > len(members) {
		end = len(members)
	}
	for i := m.offset; i < end; i++ {
		u := members[i]
		row := padCell(u.Label(), nameW) + padCell(u.Email, emailW) + u.ID
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> ") + normalStyle.Render(row))
		} else {
			b.WriteString("  " + normalStyle.Render(row))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *groupDetailModel) columnWidths() (name, email int) {
	name = max(m.width/3, 16)
	email = max(m.width/3, 20)
	return name, email
}
