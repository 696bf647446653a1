// Package directory is the client for the directory service's query API:
// typed wrappers over the single JSON endpoint, the search filter tree,
// and the error classification the console reports to operators.
package directory

import "time"

// User is one directory user as the list and detail operations return it.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	CreationDate time.Time `json:"creationDate"`
}

// Label returns the name to show for the user, falling back to the id
// when the display name is empty.
func (u User) Label() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID
}

// GroupSummary is a group without its member list, as returned by
// ListGroups and by user detail memberships.
type GroupSummary struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"displayName"`
	CreationDate time.Time `json:"creationDate"`
}

// Group is a group with its full member list.
type Group struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"displayName"`
	CreationDate time.Time `json:"creationDate"`
	Members      []User    `json:"members"`
}

// UserDetail is one user together with the groups they belong to.
type UserDetail struct {
	User
	Groups []GroupSummary `json:"groups"`
}
