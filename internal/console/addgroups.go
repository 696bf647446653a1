package console

import (
	"context"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ostrem/steward/internal/directory"
	"github.com/ostrem/steward/internal/picker"
	"github.com/ostrem/steward/internal/task"
)

// addGroupsData is the combined load for the add-to-groups overlay: the
// full group list and the set of groups the user already belongs to.
type addGroupsData struct {
	groups   []directory.GroupSummary
	memberOf map[string]bool
}

// addGroupsModel is the overlay that puts one user into groups, one at
// a time. The picker runs in single mode: toggling a group emits the
// choice immediately, and ctrl+a dispatches the addition. Groups the
// user is already in are excluded, and each success shrinks the list
// further by recreating the picker.
type addGroupsModel struct {
	client Directory
	user   directory.User
	log    *slog.Logger

	loadTask task.Task[addGroupsData]
	groups   []directory.GroupSummary
	memberOf map[string]bool
	byID     map[string]directory.GroupSummary

	pick   *picker.Model
	staged *picker.Option // single-mode emission; nil after a toggle-off

	addTask task.Task[directory.GroupSummary]

	lastErr       *errNotice
	width, height int
}

func newAddGroups(client Directory, log *slog.Logger, user directory.User, width, height int) (*addGroupsModel, tea.Cmd) {
	m := &addGroupsModel{
		client:   client,
		user:     user,
		log:      log,
		loadTask: task.New[addGroupsData](),
		addTask:  task.New[directory.GroupSummary](),
		width:    width,
		height:   height,
	}
	userID := user.ID
	cmd := m.loadTask.Start(func() (addGroupsData, error) {
		detail, err := client.GetUser(context.Background(), userID)
		if err != nil {
			return addGroupsData{}, err
		}
		groups, err := client.ListGroups(context.Background())
		if err != nil {
			return addGroupsData{}, err
		}
		memberOf := make(map[string]bool, len(detail.Groups))
		for _, g := range detail.Groups {
			memberOf[g.ID] = true
		}
		return addGroupsData{groups: groups, memberOf: memberOf}, nil
	})
	return m, cmd
}

func (m *addGroupsModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.pick != nil {
		m.pick.SetSize(max(width-4, 20), max(height-6, 5))
	}
}

func (m *addGroupsModel) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		if key.Type == tea.KeyCtrlA {
			return m.startAdd()
		}
		if m.pick != nil {
			var cmd tea.Cmd
			*m.pick, cmd = m.pick.Update(key)
			return cmd
		}
		return nil
	}

	switch msg := msg.(type) {
	case picker.SelectionMsg:
		if len(msg.Options) == 0 {
			m.staged = nil
		} else {
			opt := msg.Options[0]
			m.staged = &opt
		}
		return nil
	}

	if done, ok := m.loadTask.Observe(msg); ok {
		if done.Err != nil {
			m.lastErr = noticeFromErr(done.Err)
			return reportError(done.Err)
		}
		m.groups = done.Value.groups
		m.memberOf = done.Value.memberOf
		m.byID = make(map[string]directory.GroupSummary, len(m.groups))
		for _, g := range m.groups {
			m.byID[g.ID] = g
		}
		return m.buildPicker()
	}

	if done, ok := m.addTask.Observe(msg); ok {
		return m.finishAdd(done)
	}

	if m.pick != nil {
		var cmd tea.Cmd
		*m.pick, cmd = m.pick.Update(msg)
		return cmd
	}
	return nil
}

func (m *addGroupsModel) buildPicker() tea.Cmd {
	opts := make([]picker.Option, 0, len(m.groups))
	for _, g := range m.groups {
		if m.memberOf[g.ID] {
			continue
		}
		opts = append(opts, picker.Option{Value: g.ID, Text: g.DisplayName})
	}
	p := picker.New(picker.Single, opts)
	p.SetSize(max(m.width-4, 20), max(m.height-6, 5))
	m.pick = &p
	m.staged = nil
	return p.Init()
}

func (m *addGroupsModel) startAdd() tea.Cmd {
	if m.addTask.Busy() || m.staged == nil {
		return nil
	}
	group, ok := m.byID[m.staged.Value]
	if !ok || m.memberOf[group.ID] {
		return nil
	}
	client, userID := m.client, m.user.ID
	return m.addTask.Start(func() (directory.GroupSummary, error) {
		return group, client.AddMember(context.Background(), userID, group.ID)
	})
}

func (m *addGroupsModel) finishAdd(done task.DoneMsg[directory.GroupSummary]) tea.Cmd {
	if done.Err != nil {
		m.lastErr = noticeFromErr(done.Err)
		return reportError(done.Err)
	}
	group := done.Value
	m.memberOf[group.ID] = true
	m.lastErr = nil
	user := m.user
	announce := func() tea.Msg {
		return userGroupAddedMsg{user: user, group: group}
	}
	return tea.Sequence(announce, m.buildPicker())
}

func (m *addGroupsModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Add to groups · " + m.user.Label()))
	b.WriteString("\n")
	switch {
	case m.loadTask.Busy():
		b.WriteString(dimStyle.Render("loading groups…"))
	case m.pick == nil:
		b.WriteString(dimStyle.Render("no groups to join"))
	default:
		b.WriteString(m.pick.View())
	}
	b.WriteString("\n")
	b.WriteString(m.viewFooter())
	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(viewNotice(m.lastErr))
	}
	return overlayStyle.Render(b.String())
}

func (m *addGroupsModel) viewFooter() string {
	switch {
	case m.addTask.Busy():
		return warnStyle.Render("adding…")
	case m.staged != nil:
		return okStyle.Render(m.staged.Text) + dimStyle.Render(" staged · ctrl+a add · esc close")
	default:
		return dimStyle.Render("enter stages a group, ctrl+a adds · esc close")
	}
}
