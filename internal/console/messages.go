// Package console implements the interactive admin TUI: a users screen,
// a groups screen with per-group detail, and the overlays for membership
// changes. Every directory call runs through a single-flight task so a
// screen never has more than one outstanding request per concern, and
// every failure is reported both on the owning screen and on the shared
// status bar.
package console

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ostrem/steward/internal/directory"
)

// errNotice is the failure a screen shows inline. The same notice is
// always also sent app-level via reportError.
type errNotice struct {
	kind directory.Kind
	text string
}

func noticeFromErr(err error) *errNotice {
	return &errNotice{kind: directory.KindOf(err), text: err.Error()}
}

// reportErrorMsg carries a failure to the app-level status bar. Screens
// that render an inline error still send it; both slots stay in sync.
type reportErrorMsg struct {
	kind directory.Kind
	text string
}

func reportError(err error) tea.Cmd {
	n := noticeFromErr(err)
	return func() tea.Msg {
		return reportErrorMsg{kind: n.kind, text: n.text}
	}
}

// statusMsg sets the transient app-level status line.
type statusMsg string

func statusf(format string, args ...any) tea.Cmd {
	return func() tea.Msg {
		return statusMsg(fmt.Sprintf(format, args...))
	}
}

// initMsg kicks off the initial load once the program is running.
// State started from Update survives; state started from Init would be
// lost with the discarded initial model value.
type initMsg struct{}

// openGroupMsg asks the app to open the detail screen for a group.
type openGroupMsg struct {
	id   string
	name string
}

// closeDetailMsg returns from the detail screen to the groups list.
type closeDetailMsg struct{}

// memberCommittedMsg announces one successful addition inside a batch.
// It is delivered before the next item is dispatched, so the member
// table is current when the next request goes out.
type memberCommittedMsg struct {
	user    directory.User
	groupID string
}

// batchDoneMsg announces that a member-addition batch reached a
// terminal state.
type batchDoneMsg struct {
	groupID string
	added   int
	failed  bool
}

// userGroupAddedMsg announces the selected user was added to a group
// from the users screen.
type userGroupAddedMsg struct {
	user  directory.User
	group directory.GroupSummary
}
