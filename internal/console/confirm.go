package console

import "fmt"

// confirmAction tags what a pending confirmation will do once accepted.
type confirmAction int

const (
	confirmDeleteUser confirmAction = iota
	confirmDeleteGroup
	confirmRemoveMember
)

// confirmModel is a yes/no prompt for a destructive operation. The
// owning screen routes keys while it is open: y or enter accepts, any
// other key dismisses.
type confirmModel struct {
	action    confirmAction
	subjectID string // entity the action applies to
	targetID  string // secondary entity, e.g. the group a member is removed from
	prompt    string
}

func confirmPrompt(action confirmAction, subjectID, subjectLabel, targetID, targetLabel string) *confirmModel {
	var prompt string
	switch action {
	case confirmDeleteUser:
		prompt = fmt.Sprintf("Delete user %q?", subjectLabel)
	case confirmDeleteGroup:
		prompt = fmt.Sprintf("Delete group %q?", subjectLabel)
	case confirmRemoveMember:
		prompt = fmt.Sprintf("Remove %q from %q?", subjectLabel, targetLabel)
	}
	return &confirmModel{
		action:    action,
		subjectID: subjectID,
		targetID:  targetID,
		prompt:    prompt,
	}
}

func (c *confirmModel) View() string {
	return overlayStyle.Render(warnStyle.Render(c.prompt) + dimStyle.Render("  y confirm · any other key cancels"))
}
