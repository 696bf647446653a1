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

// deletedEntity is the completion value for a delete: the id that was
// removed and the label to report.
type deletedEntity struct {
	id    string
	label string
}

// usersModel is the users screen: a server-side filtered table with
// delete and add-to-groups actions. Searches go to the directory as
// parsed filters; deletes prune the table in place without a refetch.
type usersModel struct {
	client             Directory
	log                *slog.Logger
	confirmDestructive bool

	listTask   task.Task[[]directory.User]
	deleteTask task.Task[deletedEntity]
	users      []directory.User
	loaded     bool

	search    textinput.Model
	searching bool
	query     string            // applied query text, shown in the header
	filter    *directory.Filter // applied filter, reused on refresh

	cursor  int
	offset  int
	maxRows int // cap on rendered rows; 0 means fill the space
	confirm *confirmModel
	overlay *addGroupsModel

	lastErr       *errNotice
	width, height int
}

func newUsers(client Directory, log *slog.Logger, confirmDestructive bool) usersModel {
	ti := textinput.New()
	ti.Placeholder = `name, email, field:value, memberof:group`
	ti.Prompt = "/ "
	return usersModel{
		client:             client,
		log:                log,
		confirmDestructive: confirmDestructive,
		listTask:           task.New[[]directory.User](),
		deleteTask:         task.New[deletedEntity](),
		search:             ti,
		width:              80,
		height:             24,
	}
}

// ensureLoaded starts the initial unfiltered load, once.
func (m *usersModel) ensureLoaded() tea.Cmd {
	if m.loaded || m.listTask.Busy() {
		return nil
	}
	return m.dispatchList(nil)
}

func (m *usersModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.overlay != nil {
		m.overlay.SetSize(width, height)
	}
}

func (m usersModel) capturesKeys() bool {
	return m.searching || m.confirm != nil || m.overlay != nil
}

func (m usersModel) Update(msg tea.Msg) (usersModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		cmd := m.handleKey(key)
		return m, cmd
	}

	switch msg := msg.(type) {
	case userGroupAddedMsg:
		return m, statusf("added %s to %s", msg.user.Label(), msg.group.DisplayName)
	}

	if done, ok := m.listTask.Observe(msg); ok {
		if done.Err != nil {
			m.lastErr = noticeFromErr(done.Err)
			return m, reportError(done.Err)
		}
		m.users = done.Value
		m.loaded = true
		m.lastErr = nil
		m.clampCursor()
		return m, nil
	}

	if done, ok := m.deleteTask.Observe(msg); ok {
		if done.Err != nil {
			m.lastErr = noticeFromErr(done.Err)
			return m, reportError(done.Err)
		}
		m.pruneUser(done.Value.id)
		return m, statusf("deleted user %s", done.Value.label)
	}

	if m.overlay != nil {
		return m, m.overlay.Update(msg)
	}
	if m.searching {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *usersModel) handleKey(key tea.KeyMsg) tea.Cmd {
	if m.confirm != nil {
		c := m.confirm
		m.confirm = nil
		if key.Type == tea.KeyEnter || key.String() == "y" {
			return m.deleteUser(c.subjectID)
		}
		return nil
	}

	if m.overlay != nil {
		if key.Type == tea.KeyEsc {
			m.overlay = nil
			return nil
		}
		return m.overlay.Update(key)
	}

	if m.searching {
		return m.handleSearchKey(key)
	}

	switch key.Type {
	case tea.KeyUp:
		m.moveCursor(-1)
		return nil
	case tea.KeyDown:
		m.moveCursor(1)
		return nil
	case tea.KeyEsc:
		if m.query != "" {
			return m.clearSearch()
		}
		return nil
	}

	switch key.String() {
	case "/":
		m.searching = true
		m.search.Focus()
		return textinput.Blink
	case "d":
		return m.confirmDelete()
	case "g":
		return m.openAddGroups()
	case "r":
		// Refresh reuses the applied filter. A refresh while one is in
		// flight supersedes it; the older result is discarded.
		return m.dispatchList(m.filter)
	}
	return nil
}

func (m *usersModel) handleSearchKey(key tea.KeyMsg) tea.Cmd {
	switch key.Type {
	case tea.KeyEsc:
		return m.clearSearch()
	case tea.KeyEnter:
		filter, err := directory.ParseQuery(m.search.Value())
		if err != nil {
			m.lastErr = noticeFromErr(err)
			return reportError(err)
		}
		if m.listTask.Busy() {
			// A search is already running; keep the input open instead
			// of stacking another one.
			return nil
		}
		m.searching = false
		m.search.Blur()
		m.query = strings.TrimSpace(m.search.Value())
		m.filter = filter
		m.lastErr = nil
		return m.dispatchList(filter)
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(key)
	return cmd
}

func (m *usersModel) clearSearch() tea.Cmd {
	m.searching = false
	m.search.Blur()
	m.search.SetValue("")
	m.query = ""
	m.filter = nil
	m.lastErr = nil
	return m.dispatchList(nil)
}

func (m *usersModel) dispatchList(filter *directory.Filter) tea.Cmd {
	client := m.client
	return m.listTask.Start(func() ([]directory.User, error) {
		return client.ListUsers(context.Background(), filter)
	})
}

func (m *usersModel) confirmDelete() tea.Cmd {
	u, ok := m.selectedUser()
	if !ok {
		return nil
	}
	if !m.confirmDestructive {
		return m.deleteUser(u.ID)
	}
	m.confirm = confirmPrompt(confirmDeleteUser, u.ID, u.Label(), "", "")
	return nil
}

func (m *usersModel) deleteUser(id string) tea.Cmd {
	if m.deleteTask.Busy() {
		return nil
	}
	label := id
	if u, ok := m.userByID(id); ok {
		label = u.Label()
	}
	client := m.client
	return m.deleteTask.Start(func() (deletedEntity, error) {
		return deletedEntity{id: id, label: label}, client.DeleteUser(context.Background(), id)
	})
}

func (m *usersModel) openAddGroups() tea.Cmd {
	u, ok := m.selectedUser()
	if !ok {
		return nil
	}
	overlay, cmd := newAddGroups(m.client, m.log, u, m.width, m.height)
	m.overlay = overlay
	return cmd
}

func (m *usersModel) selectedUser() (directory.User, bool) {
	if m.cursor >= len(m.users) {
		return directory.User{}, false
	}
	return m.users[m.cursor], true
}

func (m *usersModel) userByID(id string) (directory.User, bool) {
	for _, u := range m.users {
		if u.ID == id {
			return u, true
		}
	}
	return directory.User{}, false
}

func (m *usersModel) pruneUser(id string) {
	users := m.users[:0]
	for _, u := range m.users {
		if u.ID != id {
			users = append(users, u)
		}
	}
	m.users = users
	m.clampCursor()
}

func (m *usersModel) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
}

func (m *usersModel) clampCursor() {
	if m.cursor >= len(m.users) {
		m.cursor = len(m.users) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.ensureVisible()
}

func (m *usersModel) ensureVisible() {
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

func (m usersModel) listHeight() int {
	h := m.height - 7
	if h < 3 {
		h = 3
	}
	if m.maxRows > 0 && h > m.maxRows {
		h = m.maxRows
	}
	return h
}

func (m usersModel) View() string {
	if m.overlay != nil {
		return m.overlay.View()
	}

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
	b.WriteString(m.viewHint())
	return b.String()
}

func (m usersModel) viewHeader() string {
	if m.searching {
		return m.search.View()
	}
	head := titleStyle.Render("Users") + dimStyle.Render(fmt.Sprintf("  %d user(s)", len(m.users)))
	if m.query != "" {
		head += dimStyle.Render("  filter: ") + normalStyle.Render(m.query)
	}
	if m.listTask.Busy() {
		head += warnStyle.Render("  refreshing…")
	}
	return head
}

func (m usersModel) viewTable() string {
	if !m.loaded {
		if m.listTask.Busy() {
			return dimStyle.Render("loading users…") + "\n"
		}
		return dimStyle.Render("not loaded") + "\n"
	}

	nameW, emailW := m.columnWidths()
	var b strings.Builder
	b.WriteString(headerStyle.Render("  " + padCell("NAME", nameW) + padCell("EMAIL", emailW) + "ID"))
	b.WriteString("\n")

	if len(m.users) == 0 {
		b.WriteString(dimStyle.Render("  no users match"))
		b.WriteString("\n")
		return b.String()
	}

	end := m.offset + m.listHeight()
	if end > len(m.users) {
		end = len(m.users)
	}
	for i := m.offset; i < end; i++ {
		u := m.users[i]
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

func (m usersModel) viewHint() string {
	return dimStyle.Render("/ search · enter applies · g add to groups · d delete · r refresh")
}

func (m usersModel) columnWidths() (name, email int) {
	name = max(m.width/3, 16)
	email = max(m.width/3, 20)
	return name, email
}
