package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ostrem/steward/internal/directory"
	"github.com/ostrem/steward/internal/picker"
	"github.com/ostrem/steward/internal/task"
)

// addMembersModel is the overlay that adds users to a group. It loads
// the candidate users, excludes current members, and lets the operator
// stage a multi-selection with the picker. Ctrl+a then adds the staged
// users one request at a time: each success is announced to the owning
// screen before the next request is dispatched, and a failure halts the
// run with everything before it committed.
type addMembersModel struct {
	client    Directory
	groupID   string
	groupName string
	log       *slog.Logger

	memberIDs map[string]bool           // current members; grows as additions commit
	loadTask  task.Task[[]directory.User]
	users     []directory.User          // candidates from the last load, unfiltered
	byID      map[string]directory.User // candidate lookup for staged option values

	pick   *picker.Model   // nil until the candidate load finishes
	staged []picker.Option // selection last emitted by the picker

	batch    *task.Batch[directory.User]
	itemTask task.Task[directory.User]

	lastErr       *errNotice
	width, height int
}

func newAddMembers(client Directory, log *slog.Logger, groupID, groupName string, members []directory.User, width, height int) (*addMembersModel, tea.Cmd) {
	memberIDs := make(map[string]bool, len(members))
	for _, u := range members {
		memberIDs[u.ID] = true
	}
	m := &addMembersModel{
		client:    client,
		groupID:   groupID,
		groupName: groupName,
		log:       log,
		memberIDs: memberIDs,
		loadTask:  task.New[[]directory.User](),
		itemTask:  task.New[directory.User](),
		width:     width,
		height:    height,
	}
	cmd := m.loadTask.Start(func() ([]directory.User, error) {
		return client.ListUsers(context.Background(), nil)
	})
	return m, cmd
}

func (m *addMembersModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.pick != nil {
		m.pick.SetSize(m.pickWidth(), m.pickHeight())
	}
}

func (m *addMembersModel) pickWidth() int  { return max(m.width-4, 20) }
func (m *addMembersModel) pickHeight() int { return max(m.height-6, 5) }

func (m *addMembersModel) batchRunning() bool {
	return m.batch != nil && m.batch.Status() == task.StatusRunning
}

// Update processes one message and reports commands to run. Esc is
// handled by the owning screen, which closes the overlay; completions
// that arrive after that are dropped there.
func (m *addMembersModel) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		if key.Type == tea.KeyCtrlA {
			return m.startBatch()
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
		m.staged = msg.Options
		return nil
	}

	if done, ok := m.loadTask.Observe(msg); ok {
		if done.Err != nil {
			m.lastErr = noticeFromErr(done.Err)
			return reportError(done.Err)
		}
		m.users = done.Value
		m.byID = make(map[string]directory.User, len(m.users))
		for _, u := range m.users {
			m.byID[u.ID] = u
		}
		return m.buildPicker()
	}

	if done, ok := m.itemTask.Observe(msg); ok {
		return m.finishItem(done)
	}

	if m.pick != nil {
		var cmd tea.Cmd
		*m.pick, cmd = m.pick.Update(msg)
		return cmd
	}
	return nil
}

// buildPicker constructs a fresh picker over the candidates that are
// not already members. Recreating the widget is what resets the
// selection and the filter.
func (m *addMembersModel) buildPicker() tea.Cmd {
	opts := make([]picker.Option, 0, len(m.users))
	for _, u := range m.users {
		if m.memberIDs[u.ID] {
			continue
		}
		opts = append(opts, picker.Option{Value: u.ID, Text: u.Label()})
	}
	p := picker.New(picker.Multi, opts)
	p.SetSize(m.pickWidth(), m.pickHeight())
	m.pick = &p
	m.staged = nil
	return p.Init()
}

// startBatch snapshots the staged users and dispatches the first
// addition. It refuses to start while a run is in flight; staged users
// that became members in the meantime are skipped, so retrying after a
// partial failure resumes with the remainder.
func (m *addMembersModel) startBatch() tea.Cmd {
	if m.batchRunning() || len(m.staged) == 0 {
		return nil
	}
	users := make([]directory.User, 0, len(m.staged))
	for _, opt := range m.staged {
		if m.memberIDs[opt.Value] {
			continue
		}
		if u, ok := m.byID[opt.Value]; ok {
			users = append(users, u)
		}
	}
	m.batch = task.NewBatch(users)
	m.lastErr = nil
	item, ok := m.batch.Current()
	if !ok {
		// Nothing left to add: no requests go out.
		m.batch = nil
		return nil
	}
	m.log.Debug("member batch started", "group_id", m.groupID, "count", len(users))
	return m.dispatch(item)
}

func (m *addMembersModel) dispatch(u directory.User) tea.Cmd {
	client, groupID := m.client, m.groupID
	return m.itemTask.Start(func() (directory.User, error) {
		return u, client.AddMember(context.Background(), u.ID, groupID)
	})
}

// finishItem handles the completion of one addition. On success the
// commit is announced before the next item is dispatched, so the owner
// sees members land one by one, in order.
func (m *addMembersModel) finishItem(done task.DoneMsg[directory.User]) tea.Cmd {
	if !m.batchRunning() {
		return nil
	}
	if done.Err != nil {
		m.batch.Fail(done.Err)
		m.lastErr = noticeFromErr(done.Err)
		groupID, added := m.groupID, m.batch.Committed()
		return tea.Batch(reportError(done.Err), func() tea.Msg {
			return batchDoneMsg{groupID: groupID, added: added, failed: true}
		})
	}

	u := done.Value
	m.memberIDs[u.ID] = true
	groupID := m.groupID
	committed := func() tea.Msg {
		return memberCommittedMsg{user: u, groupID: groupID}
	}

	next, ok := m.batch.Advance()
	if !ok {
		added := m.batch.Committed()
		finished := func() tea.Msg {
			return batchDoneMsg{groupID: groupID, added: added, failed: false}
		}
		return tea.Sequence(committed, finished, m.buildPicker())
	}
	return tea.Sequence(committed, m.dispatch(next))
}

func (m *addMembersModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Add members · " + m.groupName))
	b.WriteString("\n")
	switch {
	case m.loadTask.Busy():
		b.WriteString(dimStyle.Render("loading users…"))
	case m.pick == nil:
		b.WriteString(dimStyle.Render("no candidates"))
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

func (m *addMembersModel) viewFooter() string {
	switch {
	case m.batchRunning():
		return warnStyle.Render(fmt.Sprintf("adding %d/%d…", m.batch.Cursor()+1, m.batch.Len()))
	case m.batch != nil && m.batch.Status() == task.StatusFailed:
		return errorStyle.Render(fmt.Sprintf("halted: %d of %d added", m.batch.Committed(), m.batch.Len())) +
			dimStyle.Render(" · ctrl+a retries the rest")
	case len(m.staged) > 0:
		return okStyle.Render(fmt.Sprintf("%d staged", len(m.staged))) + dimStyle.Render(" · ctrl+a add · esc close")
	default:
		return dimStyle.Render("tab marks, enter stages, ctrl+a adds · esc close")
	}
}
