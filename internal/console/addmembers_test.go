package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ostrem/steward/internal/directory"
	"github.com/ostrem/steward/internal/task"
)

func newAddMembersHarness(t *testing.T, fake *fakeDirectory, members []directory.User) (*addMembersModel, *harness) {
	t.Helper()
	overlay, cmd := newAddMembers(fake, discardLogger(), "g-1", "Admins", members, 80, 24)
	h := newHarness(t, fake, overlay.Update)
	h.run(cmd)
	return overlay, h
}

// stageAll marks the first n visible candidates and submits the
// selection to the overlay.
func stageAll(h *harness, n int) {
	for i := 0; i < n; i++ {
		if i > 0 {
			h.deliver(keyDown)
		}
		h.deliver(keyTab)
	}
	h.deliver(keyEnter)
}

func TestAddMembers_ExcludesCurrentMembers(t *testing.T) {
	fake := newFake()
	overlay, _ := newAddMembersHarness(t, fake, []directory.User{fixtureUsers()[0]})

	require.NotNil(t, overlay.pick)
	view := overlay.View()
	assert.NotContains(t, view, "Alice Adams")
	assert.Contains(t, view, "Bob Stone")
	assert.Contains(t, view, "Carol Chen")
}

func TestAddMembers_CommitsEachBeforeNextDispatch(t *testing.T) {
	fake := newFake()
	overlay, h := newAddMembersHarness(t, fake, nil)

	stageAll(h, 3)
	require.Len(t, overlay.staged, 3)
	require.Equal(t, 3, overlay.pick.SelectedCount(), "submit must not clear the selection")

	h.deliver(keyCtrlA)

	// Each commit is announced before the next addition goes out.
	require.Equal(t, []string{
		"list_users",
		"add:u-1", "committed:u-1",
		"add:u-2", "committed:u-2",
		"add:u-3", "committed:u-3",
		"done:3:false",
	}, fake.events)

	require.Equal(t, task.StatusDone, overlay.batch.Status())
	assert.Equal(t, 3, overlay.batch.Committed())

	// A finished run recreates the picker: fresh selection, committed
	// users excluded.
	assert.Empty(t, overlay.staged)
	assert.Zero(t, overlay.pick.SelectedCount())
	assert.Contains(t, overlay.pick.View(), "no matches")
}

func TestAddMembers_FailureHaltsAtFailedItem(t *testing.T) {
	fake := newFake()
	fake.addErr["u-2"] = &directory.Error{Kind: directory.KindValidation, Op: "add_group_member", Message: "already a member"}
	overlay, h := newAddMembersHarness(t, fake, nil)

	stageAll(h, 3)
	h.deliver(keyCtrlA)

	// The item before the failure is committed; nothing after it was
	// ever dispatched.
	require.Equal(t, []string{
		"list_users",
		"add:u-1", "committed:u-1",
		"add:u-2",
		"done:1:true",
	}, fake.events)

	require.Equal(t, task.StatusFailed, overlay.batch.Status())
	assert.Equal(t, 1, overlay.batch.Committed())
	assert.Equal(t, 1, overlay.batch.Cursor(), "cursor stays at the failed item")

	require.NotNil(t, overlay.lastErr)
	assert.Equal(t, directory.KindValidation, overlay.lastErr.kind)
	require.Len(t, h.reported, 1)
	assert.Equal(t, directory.KindValidation, h.reported[0].kind)

	// The picker is not recreated on failure; the stage is retained for
	// a retry.
	assert.Len(t, overlay.staged, 3)
}

func TestAddMembers_RetrySkipsCommittedItems(t *testing.T) {
	fake := newFake()
	fake.addErr["u-2"] = &directory.Error{Kind: directory.KindNetwork, Op: "add_group_member", Message: "connection reset"}
	overlay, h := newAddMembersHarness(t, fake, nil)

	stageAll(h, 3)
	h.deliver(keyCtrlA)
	require.Equal(t, task.StatusFailed, overlay.batch.Status())

	delete(fake.addErr, "u-2")
	h.deliver(keyCtrlA)

	require.Equal(t, task.StatusDone, overlay.batch.Status())

	var addsForU1 int
	for _, ev := range fake.events {
		if ev == "add:u-1" {
			addsForU1++
		}
	}
	assert.Equal(t, 1, addsForU1, "a committed item is never re-dispatched")
	assert.Equal(t, []string{
		"add:u-2", "committed:u-2",
		"add:u-3", "committed:u-3",
		"done:2:false",
	}, fake.events[5:])
}

func TestAddMembers_EmptyStageStartsNothing(t *testing.T) {
	fake := newFake()
	overlay, h := newAddMembersHarness(t, fake, nil)

	h.deliver(keyCtrlA)

	assert.Equal(t, []string{"list_users"}, fake.events)
	assert.Nil(t, overlay.batch)
}

func TestAddMembers_StageOfOnlyExistingMembersStartsNothing(t *testing.T) {
	fake := newFake()
	overlay, h := newAddMembersHarness(t, fake, nil)

	stageAll(h, 1)
	// The staged user becomes a member through some other path before
	// the run starts.
	overlay.memberIDs["u-1"] = true

	h.deliver(keyCtrlA)

	assert.Equal(t, []string{"list_users"}, fake.events)
	assert.Nil(t, overlay.batch)
}

func TestAddMembers_StartWhileRunningIsRefused(t *testing.T) {
	fake := newFake()
	overlay, h := newAddMembersHarness(t, fake, nil)

	stageAll(h, 2)
	held := overlay.Update(keyCtrlA)
	require.NotNil(t, held)
	require.True(t, overlay.batchRunning())

	require.Nil(t, overlay.Update(keyCtrlA), "second start while running must be refused")

	// Let the held run finish.
	h.expand(held())

	var adds int
	for _, ev := range fake.events {
		if strings.HasPrefix(ev, "add:") {
			adds++
		}
	}
	assert.Equal(t, 2, adds)
	assert.Equal(t, task.StatusDone, overlay.batch.Status())
}

func TestAddMembers_LoadFailureReportsBothChannels(t *testing.T) {
	fake := newFake()
	fake.listUsersErr = &directory.Error{Kind: directory.KindNetwork, Op: "list_users", Message: "dial tcp: connection refused"}

	overlay, h := newAddMembersHarness(t, fake, nil)

	require.Nil(t, overlay.pick)
	require.NotNil(t, overlay.lastErr)
	assert.Equal(t, directory.KindNetwork, overlay.lastErr.kind)
	require.Len(t, h.reported, 1)
	assert.Equal(t, directory.KindNetwork, h.reported[0].kind)
	assert.Contains(t, overlay.View(), "no candidates")
}
