package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ostrem/steward/internal/directory"
	"github.com/ostrem/steward/internal/picker"
)

var (
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyCtrlA = tea.KeyMsg{Type: tea.KeyCtrlA}
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixtureUsers() []directory.User {
	return []directory.User{
		{ID: "u-1", Email: "alice@example.com", DisplayName: "Alice Adams"},
		{ID: "u-2", Email: "bob@example.com", DisplayName: "Bob Stone"},
		{ID: "u-3", Email: "carol@example.com", DisplayName: "Carol Chen"},
	}
}

func fixtureGroups() []directory.GroupSummary {
	return []directory.GroupSummary{
		{ID: "g-1", DisplayName: "Admins"},
		{ID: "g-2", DisplayName: "Developers"},
		{ID: "g-3", DisplayName: "Support"},
	}
}

// fakeDirectory is a scripted directory server. Every call appends to
// the event log, so tests can assert not just what was called but in
// what order relative to the console's own announcements.
type fakeDirectory struct {
	users   []directory.User
	groups  []directory.GroupSummary
	details map[string]*directory.UserDetail
	byGroup map[string]*directory.Group

	lastFilter *directory.Filter

	listUsersErr  error
	listGroupsErr error
	addErr        map[string]error // keyed by user id
	removeErr     error
	createErr     error
	deleteErr     error

	events []string
}

func newFake() *fakeDirectory {
	users := fixtureUsers()
	return &fakeDirectory{
		users:   users,
		groups:  fixtureGroups(),
		details: map[string]*directory.UserDetail{},
		byGroup: map[string]*directory.Group{
			"g-1": {ID: "g-1", DisplayName: "Admins", Members: []directory.User{users[0]}},
			"g-2": {ID: "g-2", DisplayName: "Developers"},
		},
		addErr: map[string]error{},
	}
}

func (f *fakeDirectory) note(ev string) {
	f.events = append(f.events, ev)
}

func (f *fakeDirectory) ListUsers(_ context.Context, filter *directory.Filter) ([]directory.User, error) {
	f.note("list_users")
	f.lastFilter = filter
	if f.listUsersErr != nil {
		return nil, f.listUsersErr
	}
	return append([]directory.User(nil), f.users...), nil
}

func (f *fakeDirectory) ListGroups(context.Context) ([]directory.GroupSummary, error) {
	f.note("list_groups")
	if f.listGroupsErr != nil {
		return nil, f.listGroupsErr
	}
	return append([]directory.GroupSummary(nil), f.groups...), nil
}

func (f *fakeDirectory) GetUser(_ context.Context, id string) (*directory.UserDetail, error) {
	f.note("get_user:" + id)
	if d, ok := f.details[id]; ok {
		return d, nil
	}
	return nil, &directory.Error{Kind: directory.KindNetwork, Op: "get_user", Message: "no such user"}
}

func (f *fakeDirectory) GetGroup(_ context.Context, id string) (*directory.Group, error) {
	f.note("get_group:" + id)
	if g, ok := f.byGroup[id]; ok {
		cp := *g
		cp.Members = append([]directory.User(nil), g.Members...)
		return &cp, nil
	}
	return nil, &directory.Error{Kind: directory.KindNetwork, Op: "get_group", Message: "no such group"}
}

func (f *fakeDirectory) AddMember(_ context.Context, userID, groupID string) error {
	f.note("add:" + userID)
	_ = groupID
	return f.addErr[userID]
}

func (f *fakeDirectory) RemoveMember(_ context.Context, userID, groupID string) error {
	f.note("remove:" + userID)
	_ = groupID
	return f.removeErr
}

func (f *fakeDirectory) CreateGroup(_ context.Context, displayName string) (*directory.Group, error) {
	f.note("create:" + displayName)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &directory.Group{ID: "g-new", DisplayName: displayName}, nil
}

func (f *fakeDirectory) DeleteGroup(_ context.Context, id string) error {
	f.note("delete_group:" + id)
	return f.deleteErr
}

func (f *fakeDirectory) DeleteUser(_ context.Context, id string) error {
	f.note("delete_user:" + id)
	return f.deleteErr
}

// harness runs a model's commands the way the runtime would: batch
// members in order, sequences strictly one after another with each
// produced message delivered before the next command executes. That
// makes ordering observable: a commit announcement noted in the event
// log is guaranteed to precede the next directory call.
type harness struct {
	t      *testing.T
	fake   *fakeDirectory
	update func(tea.Msg) tea.Cmd

	reported []reportErrorMsg
	statuses []string
	quits    int
}

func newHarness(t *testing.T, fake *fakeDirectory, update func(tea.Msg) tea.Cmd) *harness {
	return &harness{t: t, fake: fake, update: update}
}

func (h *harness) deliver(msg tea.Msg) {
	switch v := msg.(type) {
	case reportErrorMsg:
		h.reported = append(h.reported, v)
	case statusMsg:
		h.statuses = append(h.statuses, string(v))
	case memberCommittedMsg:
		h.fake.note("committed:" + v.user.ID)
	case batchDoneMsg:
		h.fake.note(fmt.Sprintf("done:%d:%t", v.added, v.failed))
	case userGroupAddedMsg:
		h.fake.note("joined:" + v.group.ID)
	case tea.QuitMsg:
		h.quits++
	}
	h.run(h.update(msg))
}

func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	h.expand(cmd())
}

func (h *harness) expand(msg tea.Msg) {
	if msg == nil {
		return
	}
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			h.run(c)
		}
		return
	}
	if cmds, ok := cmdSlice(msg); ok {
		for _, c := range cmds {
			h.run(c)
		}
		return
	}
	if relevantMsg(msg) {
		h.deliver(msg)
	}
}

// cmdSlice unwraps the unexported message tea.Sequence produces. It is
// a plain []tea.Cmd underneath, distinguishable from tea.BatchMsg by
// type identity.
func cmdSlice(msg tea.Msg) ([]tea.Cmd, bool) {
	if _, ok := msg.(tea.BatchMsg); ok {
		return nil, false
	}
	rv := reflect.ValueOf(msg)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, false
	}
	if rv.Type().Elem() != reflect.TypeOf((*tea.Cmd)(nil)).Elem() {
		return nil, false
	}
	cmds := make([]tea.Cmd, rv.Len())
	for i := range cmds {
		cmds[i], _ = rv.Index(i).Interface().(tea.Cmd)
	}
	return cmds, true
}

// relevantMsg keeps the feedback loop to the messages the console
// itself exchanges. Cursor-blink ticks would otherwise recurse forever
// in a synchronous pump.
func relevantMsg(msg tea.Msg) bool {
	switch msg.(type) {
	case reportErrorMsg, statusMsg, initMsg,
		openGroupMsg, closeDetailMsg,
		memberCommittedMsg, batchDoneMsg, userGroupAddedMsg,
		picker.SelectionMsg,
		tea.QuitMsg, tea.WindowSizeMsg:
		return true
	}
	return strings.HasPrefix(reflect.TypeOf(msg).String(), "task.DoneMsg[")
}
