package console

import (
	"context"

	"github.com/ostrem/steward/internal/directory"
)

// Directory is the slice of the directory client the console consumes.
// *directory.Client satisfies it; tests substitute a scripted fake.
type Directory interface {
	ListUsers(ctx context.Context, filter *directory.Filter) ([]directory.User, error)
	ListGroups(ctx context.Context) ([]directory.GroupSummary, error)
	GetUser(ctx context.Context, id string) (*directory.UserDetail, error)
	GetGroup(ctx context.Context, id string) (*directory.Group, error)
	AddMember(ctx context.Context, userID, groupID string) error
	RemoveMember(ctx context.Context, userID, groupID string) error
	CreateGroup(ctx context.Context, displayName string) (*directory.Group, error)
	DeleteGroup(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, id string) error
}
