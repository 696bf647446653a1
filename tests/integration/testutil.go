// Package integration provides end-to-end integration tests for steward.
// These tests exercise the directory client against an in-process fake of
// the directory service, the audit trail the client writes, and the
// console model driven through its own message loop.
package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ostrem/steward/internal/audit"
	"github.com/ostrem/steward/internal/directory"
)

// TestEnv holds all resources for an integration test.
type TestEnv struct {
	T        *testing.T
	Dir      *FakeDirectory
	Server   *httptest.Server
	Client   *directory.Client
	Recorder *audit.Recorder
	TempDir  string
	DBPath   string
}

// SetupTestEnv creates a complete test environment: a seeded fake
// directory behind an HTTP server, an audit recorder on a temporary
// database, and a client wired to both.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "audit.db")

	recorder, err := audit.Open(dbPath, discardLogger())
	if err != nil {
		t.Fatalf("failed to open audit database: %v", err)
	}

	dir := NewFakeDirectory()
	SeedFixture(dir)
	server := httptest.NewServer(dir)

	client := directory.NewClient(directory.ClientConfig{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
		Audit:   recorder,
		Logger:  discardLogger(),
	})

	return &TestEnv{
		T:        t,
		Dir:      dir,
		Server:   server,
		Client:   client,
		Recorder: recorder,
		TempDir:  tempDir,
		DBPath:   dbPath,
	}
}

// Teardown cleans up all test resources. The temporary directory is
// removed by the testing package.
func (e *TestEnv) Teardown() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Recorder != nil {
		e.Recorder.Close()
	}
}

// SeedFixture loads the standard test dataset: three users and two
// groups, with Alice administering and Bob and Carol developing.
func SeedFixture(dir *FakeDirectory) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	dir.SeedUser(directory.User{
		ID: "u-1", Email: "alice.adams@corp.example", DisplayName: "Alice Adams",
		FirstName: "Alice", LastName: "Adams", CreationDate: base,
	})
	dir.SeedUser(directory.User{
		ID: "u-2", Email: "bob.stone@corp.example", DisplayName: "Bob Stone",
		FirstName: "Bob", LastName: "Stone", CreationDate: base.AddDate(0, 1, 14),
	})
	dir.SeedUser(directory.User{
		ID: "u-3", Email: "carol.chen@corp.example", DisplayName: "Carol Chen",
		FirstName: "Carol", LastName: "Chen", CreationDate: base.AddDate(0, 2, 0),
	})
	dir.SeedGroup("g-1", "Admins", "u-1")
	dir.SeedGroup("g-2", "Developers", "u-2", "u-3")
}

// newFakeServer serves dir over HTTP and closes the server with the
// test, for tests that wire their own client.
func newFakeServer(t *testing.T, dir *FakeDirectory) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(dir)
	t.Cleanup(server.Close)
	return server
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FakeDirectory is an in-memory directory service speaking the query
// protocol. It keeps real state so mutations observable through later
// reads behave like the production service, including the rejection of
// duplicate membership additions.
type FakeDirectory struct {
	mu       sync.Mutex
	users    []directory.User
	groups   []*fakeGroup
	nextID   int
	failNext int
	requests []requestLog
}

type fakeGroup struct {
	id      string
	name    string
	created time.Time
	members []string // user ids, insertion order
}

type requestLog struct {
	op        string
	requestID string
}

// NewFakeDirectory returns an empty directory.
func NewFakeDirectory() *FakeDirectory {
	return &FakeDirectory{nextID: 100}
}

// SeedUser adds a user without going through the wire protocol.
func (f *FakeDirectory) SeedUser(u directory.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, u)
}

// SeedGroup adds a group with the given members.
func (f *FakeDirectory) SeedGroup(id, name string, memberIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = append(f.groups, &fakeGroup{
		id:      id,
		name:    name,
		created: time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC),
		members: append([]string(nil), memberIDs...),
	})
}

// FailNext makes the next n requests fail with an internal error.
func (f *FakeDirectory) FailNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = n
}

// Calls reports how many requests arrived for the operation.
func (f *FakeDirectory) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.op == op {
			n++
		}
	}
	return n
}

// RequestIDs returns the X-Request-Id headers seen for the operation,
// in arrival order.
func (f *FakeDirectory) RequestIDs(op string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, r := range f.requests {
		if r.op == op {
			ids = append(ids, r.requestID)
		}
	}
	return ids
}

// MemberIDs returns the current member ids of a group, or nil when the
// group does not exist.
func (f *FakeDirectory) MemberIDs(groupID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := f.findGroup(groupID)
	if g == nil {
		return nil
	}
	return append([]string(nil), g.members...)
}

func (f *FakeDirectory) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Operation string          `json:"operation"`
		Variables json.RawMessage `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "validation", "malformed request")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, requestLog{op: req.Operation, requestID: r.Header.Get("X-Request-Id")})

	if f.failNext > 0 {
		f.failNext--
		writeAPIError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	switch req.Operation {
	case "list_users":
		f.listUsers(w, req.Variables)
	case "list_groups":
		f.listGroups(w)
	case "get_user":
		f.getUser(w, req.Variables)
	case "get_group":
		f.getGroup(w, req.Variables)
	case "add_group_member":
		f.addMember(w, req.Variables)
	case "remove_group_member":
		f.removeMember(w, req.Variables)
	case "create_group":
		f.createGroup(w, req.Variables)
	case "delete_group":
		f.deleteGroup(w, req.Variables)
	case "delete_user":
		f.deleteUser(w, req.Variables)
	default:
		writeAPIError(w, http.StatusBadRequest, "validation", fmt.Sprintf("unknown operation %q", req.Operation))
	}
}

func (f *FakeDirectory) listUsers(w http.ResponseWriter, vars json.RawMessage) {
	var in struct {
		Filter *directory.Filter `json:"filter"`
	}
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &in); err != nil {
			writeAPIError(w, http.StatusBadRequest, "validation", "malformed filter")
			return
		}
	}

	out := []directory.User{}
	for _, u := range f.users {
		if f.matches(in.Filter, u) {
			out = append(out, u)
		}
	}
	writeData(w, map[string]any{"users": out})
}

func (f *FakeDirectory) listGroups(w http.ResponseWriter) {
	out := []directory.GroupSummary{}
	for _, g := range f.groups {
		out = append(out, directory.GroupSummary{ID: g.id, DisplayName: g.name, CreationDate: g.created})
	}
	writeData(w, map[string]any{"groups": out})
}

func (f *FakeDirectory) getUser(w http.ResponseWriter, vars json.RawMessage) {
	var in struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(vars, &in); err != nil {
		writeAPIError(w, http.StatusBadRequest, "validation", "malformed variables")
		return
	}
	u, ok := f.findUser(in.ID)
	if !ok {
		writeAPIError(w, http.StatusBadRequest, "validation", fmt.Sprintf("user %q not found", in.ID))
		return
	}

	detail := directory.UserDetail{User: u}
	for _, g := range f.groups {
		if g.hasMember(u.ID) {
			detail.Groups = append(detail.Groups, directory.GroupSummary{ID: g.id, DisplayName: g.name, CreationDate: g.created})
		}
	}
	writeData(w, map[string]any{"user": detail})
}

func (f *FakeDirectory) getGroup(w http.ResponseWriter, vars json.RawMessage) {
	var in struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(vars, &in); err != nil {
		writeAPIError(w, http.StatusBadRequest, "validation", "malformed variables")
		return
	}
	g := f.findGroup(in.ID)
	if g == nil {
		writeAPIError(w, http.StatusBadRequest, "validation", fmt.Sprintf("group %q not found", in.ID))
		return
	}
	writeData(w, map[string]any{"group": f.groupWithMembers(g)})
}

func (f *FakeDirectory) addMember(w http.ResponseWriter, vars json.RawMessage) {
	var in struct {
		UserID  string `json:"userId"`
		GroupID string `json:"groupId"`
	}
	if err := json.Unmarshal(vars, &in); err != nil {
		writeAPIError(w, http.StatusBadRequest, "validation", "malformed variables")
		return
	}
	if _, ok := f.findUser(in.UserID); !ok {
		writeAPIError(w, http.StatusBadRequest, "validation", fmt.Sprintf("user %q not found", in.UserID))
		return
	}
	g := f.findGroup(in.GroupID)
	if g == nil {
		writeAPIError(w, http.StatusBadRequest, "validation", fmt.Sprintf("group %q not found", in.GroupID))
		return
	}
	// Re-adding an existing member is an error, like the real service.
	if g.hasMember(in.UserID) {
		writeAPIError(w, http.StatusBadRequest, "validation", fmt.Sprintf("user %q is already a member of %q", in.UserID, in.GroupID))
		return
	}
	g.members = append(g.members, in.UserID)
	writeData(w, map[string]any{"ok": true})
}

func (f *FakeDirectory) removeMember(w http.ResponseWriter, vars json.RawMessage) {
	var in struct {
		UserID  string `json:"userId"`
		GroupID string `json:"groupId"`
	}
	if err := json.Unmarshal(vars, &in); err != nil {
		writeAPIError(w, http.StatusBadRequest, "validation", "malformed variables")
		return
	}
	g := f.findGroup(in.GroupID)
	if g == nil {
		writeAPIError(w, http.StatusBadRequest, "validation", fmt.Sprintf("group %q not found", in.GroupID))
		return
	}
	if !g.hasMember(in.UserID) {
		writeAPIError(w, http.StatusBadRequest, "validation", "membership not found")
		return
	}
	members := g.members[:0]
	for _, id := range g.members {
		if id != in.UserID {
			members = append(members, id)
		}
	}
	g.members = members
	writeData(w, map[string]any{"ok": true})
}

func (f *FakeDirectory) createGroup(w http.ResponseWriter, vars json.RawMessage) {
	var in struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(vars, &in); err != nil {
		writeAPIError(w, http.StatusBadRequest, "validation", "malformed variables")
		return
	}
	if strings.TrimSpace(in.DisplayName) == "" {
		writeAPIError(w, http.StatusBadRequest, "validation", "display name must not be empty")
		return
	}
	g := &fakeGroup{
		id:      fmt.Sprintf("g-%d", f.nextID),
		name:    in.DisplayName,
		created: time.Now().UTC(),
	}
	f.nextID++
	f.groups = append(f.groups, g)
	writeData(w, map[string]any{"group": f.groupWithMembers(g)})
}

func (f *FakeDirectory) deleteGroup(w http.ResponseWriter, vars json.RawMessage) {
	var in struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(vars, &in); err != nil {
		writeAPIError(w, http.StatusBadRequest, "validation", "malformed variables")
		return
	}
	for i, g := range f.groups {
		if g.id == in.ID {
			f.groups = append(f.groups[:i], f.groups[i+1:]...)
			writeData(w, map[string]any{"ok": true})
			return
		}
	}
	writeAPIError(w, http.StatusBadRequest, "validation", fmt.Sprintf("group %q not found", in.ID))
}

func (f *FakeDirectory) deleteUser(w http.ResponseWriter, vars json.RawMessage) {
	var in struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(vars, &in); err != nil {
		writeAPIError(w, http.StatusBadRequest, "validation", "malformed variables")
		return
	}
	for i, u := range f.users {
		if u.ID == in.ID {
			f.users = append(f.users[:i], f.users[i+1:]...)
			for _, g := range f.groups {
				members := g.members[:0]
				for _, id := range g.members {
					if id != in.ID {
						members = append(members, id)
					}
				}
				g.members = members
			}
			writeData(w, map[string]any{"ok": true})
			return
		}
	}
	writeAPIError(w, http.StatusBadRequest, "validation", fmt.Sprintf("user %q not found", in.ID))
}

// matches evaluates the filter tree against one user. Values compare
// case-insensitively; memberOf accepts a group name or id.
func (f *FakeDirectory) matches(filter *directory.Filter, u directory.User) bool {
	if filter == nil {
		return true
	}
	switch {
	case len(filter.Any) > 0:
		for _, sub := range filter.Any {
			if f.matches(sub, u) {
				return true
			}
		}
		return false
	case len(filter.All) > 0:
		for _, sub := range filter.All {
			if !f.matches(sub, u) {
				return false
			}
		}
		return true
	case filter.Not != nil:
		return !f.matches(filter.Not, u)
	case filter.Eq != nil:
		return strings.EqualFold(userField(u, filter.Eq.Field), filter.Eq.Value)
	case filter.MemberOf != "":
		for _, g := range f.groups {
			if strings.EqualFold(g.name, filter.MemberOf) || g.id == filter.MemberOf {
				return g.hasMember(u.ID)
			}
		}
		return false
	}
	return true
}

func userField(u directory.User, field string) string {
	switch field {
	case "id":
		return u.ID
	case "email":
		return u.Email
	case "displayName":
		return u.DisplayName
	case "firstName":
		return u.FirstName
	case "lastName":
		return u.LastName
	}
	return ""
}

func (f *FakeDirectory) findUser(id string) (directory.User, bool) {
	for _, u := range f.users {
		if u.ID == id {
			return u, true
		}
	}
	return directory.User{}, false
}

func (f *FakeDirectory) findGroup(id string) *fakeGroup {
	for _, g := range f.groups {
		if g.id == id {
			return g
		}
	}
	return nil
}

func (f *FakeDirectory) groupWithMembers(g *fakeGroup) directory.Group {
	out := directory.Group{ID: g.id, DisplayName: g.name, CreationDate: g.created, Members: []directory.User{}}
	for _, id := range g.members {
		if u, ok := f.findUser(id); ok {
			out.Members = append(out.Members, u)
		}
	}
	return out
}

func (g *fakeGroup) hasMember(userID string) bool {
	for _, id := range g.members {
		if id == userID {
			return true
		}
	}
	return false
}

func writeData(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": payload})
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]string{{"message": message, "code": code}},
	})
}
