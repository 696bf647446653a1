package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ostrem/steward/internal/audit"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// decodeEnvelope reads the posted operation envelope.
func decodeEnvelope(t *testing.T, r *http.Request) (op string, vars json.RawMessage) {
	t.Helper()
	var req struct {
		Operation string          `json:"operation"`
		Variables json.RawMessage `json:"variables"`
	}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req.Operation, req.Variables
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL, Logger: discardLogger()})
}

func newAuditRecorder(t *testing.T) *audit.Recorder {
	t.Helper()
	r, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestListUsers_SendsFilterAndDecodes(t *testing.T) {
	var gotOp, gotReqID string
	var gotVars json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/query", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotReqID = r.Header.Get("X-Request-Id")
		gotOp, gotVars = decodeEnvelope(t, r)
		fmt.Fprint(w, `{"data":{"users":[{"id":"bob","email":"bob@example.com","displayName":"Bob Stone","creationDate":"2026-01-02T15:04:05Z"}]}}`)
	})

	users, err := c.ListUsers(context.Background(), EqField("email", "bob@example.com"))
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].ID)
	assert.Equal(t, "Bob Stone", users[0].DisplayName)

	assert.Equal(t, "list_users", gotOp)
	assert.JSONEq(t, `{"filter":{"eq":{"field":"email","value":"bob@example.com"}}}`, string(gotVars))
	_, err = uuid.Parse(gotReqID)
	assert.NoError(t, err, "X-Request-Id should be a UUID")
}

func TestListUsers_NilFilterSendsNone(t *testing.T) {
	var gotVars json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, gotVars = decodeEnvelope(t, r)
		fmt.Fprint(w, `{"data":{"users":[]}}`)
	})

	users, err := c.ListUsers(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.JSONEq(t, `{}`, string(gotVars))
}

func TestListGroups_Decodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		op, _ := decodeEnvelope(t, r)
		assert.Equal(t, "list_groups", op)
		fmt.Fprint(w, `{"data":{"groups":[{"id":"g-1","displayName":"Admins"},{"id":"g-2","displayName":"Engineers"}]}}`)
	})

	groups, err := c.ListGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Admins", groups[0].DisplayName)
	assert.Equal(t, "g-2", groups[1].ID)
}

func TestGetUser_IncludesMemberships(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		op, vars := decodeEnvelope(t, r)
		assert.Equal(t, "get_user", op)
		assert.JSONEq(t, `{"id":"bob"}`, string(vars))
		fmt.Fprint(w, `{"data":{"user":{"id":"bob","email":"bob@example.com","groups":[{"id":"g-1","displayName":"Admins"}]}}}`)
	})

	u, err := c.GetUser(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", u.Email)
	require.Len(t, u.Groups, 1)
	assert.Equal(t, "Admins", u.Groups[0].DisplayName)
}

func TestGetGroup_IncludesMembers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		op, vars := decodeEnvelope(t, r)
		assert.Equal(t, "get_group", op)
		assert.JSONEq(t, `{"id":"g-1"}`, string(vars))
		fmt.Fprint(w, `{"data":{"group":{"id":"g-1","displayName":"Admins","members":[{"id":"bob"},{"id":"carol"}]}}}`)
	})

	g, err := c.GetGroup(context.Background(), "g-1")
	require.NoError(t, err)
	assert.Equal(t, "Admins", g.DisplayName)
	require.Len(t, g.Members, 2)
	assert.Equal(t, "carol", g.Members[1].ID)
}

func TestAddMember_RecordsCommittedAudit(t *testing.T) {
	rec := newAuditRecorder(t)
	var gotReqID string
	var gotVars json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get("X-Request-Id")
		_, gotVars = decodeEnvelope(t, r)
		fmt.Fprint(w, `{"data":{"ok":true}}`)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(ClientConfig{BaseURL: srv.URL, Audit: rec, Logger: discardLogger()})

	require.NoError(t, c.AddMember(context.Background(), "bob", "g-admins"))
	assert.JSONEq(t, `{"userId":"bob","groupId":"g-admins"}`, string(gotVars))

	entries, err := rec.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "add_group_member", e.Op)
	assert.Equal(t, "bob", e.EntityID)
	assert.Equal(t, "g-admins", e.TargetID)
	assert.Equal(t, gotReqID, e.RequestID)
	assert.Equal(t, audit.OutcomeCommitted, e.Outcome)
}

func TestAddMember_FailureRecordsFailedAudit(t *testing.T) {
	rec := newAuditRecorder(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"member already exists","code":"validation"}]}`)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(ClientConfig{BaseURL: srv.URL, Audit: rec, Logger: discardLogger()})

	err := c.AddMember(context.Background(), "bob", "g-admins")
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	entries, auditErr := rec.Recent(context.Background(), 10)
	require.NoError(t, auditErr)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.OutcomeFailed, entries[0].Outcome)
	assert.Contains(t, entries[0].Detail, "member already exists")
}

func TestRemoveMember_SendsBothIDs(t *testing.T) {
	var gotOp string
	var gotVars json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotOp, gotVars = decodeEnvelope(t, r)
		fmt.Fprint(w, `{"data":{"ok":true}}`)
	})

	require.NoError(t, c.RemoveMember(context.Background(), "bob", "g-1"))
	assert.Equal(t, "remove_group_member", gotOp)
	assert.JSONEq(t, `{"userId":"bob","groupId":"g-1"}`, string(gotVars))
}

func TestCreateGroup_ReturnsCreatedGroup(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		op, vars := decodeEnvelope(t, r)
		assert.Equal(t, "create_group", op)
		assert.JSONEq(t, `{"displayName":"Engineers"}`, string(vars))
		fmt.Fprint(w, `{"data":{"group":{"id":"g-9","displayName":"Engineers"}}}`)
	})

	g, err := c.CreateGroup(context.Background(), "Engineers")
	require.NoError(t, err)
	assert.Equal(t, "g-9", g.ID)
}

func TestDeleteUser_SendsID(t *testing.T) {
	var gotOp string
	var gotVars json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotOp, gotVars = decodeEnvelope(t, r)
		fmt.Fprint(w, `{"data":{"ok":true}}`)
	})

	require.NoError(t, c.DeleteUser(context.Background(), "bob"))
	assert.Equal(t, "delete_user", gotOp)
	assert.JSONEq(t, `{"id":"bob"}`, string(gotVars))
}

func TestErrorKindMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"envelope validation code", 200, `{"errors":[{"message":"bad id","code":"validation"}]}`, KindValidation},
		{"envelope server error", 200, `{"errors":[{"message":"backend down","code":"internal"}]}`, KindNetwork},
		{"http 500 plain body", 500, "boom", KindNetwork},
		{"http 400 envelope without code", 400, `{"errors":[{"message":"no such field"}]}`, KindValidation},
		{"http 404 plain body", 404, "not here", KindNetwork},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			})

			_, err := c.ListGroups(context.Background())
			require.Error(t, err)
			assert.Equal(t, tc.want, KindOf(err))
		})
	}
}

func TestConnectionRefusedIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(ClientConfig{BaseURL: url, Timeout: time.Second, Logger: discardLogger()})
	_, err := c.ListGroups(context.Background())

	require.Error(t, err)
	assert.True(t, IsNetwork(err))
}

func TestTimeoutIsNetworkError(t *testing.T) {
	c := NewClient(ClientConfig{
		BaseURL: "", // set below
		Timeout: 50 * time.Millisecond,
		Logger:  discardLogger(),
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	c.base = srv.URL

	_, err := c.ListGroups(context.Background())

	require.Error(t, err)
	assert.True(t, IsNetwork(err))
}

func TestUnixSocketTransport(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "dir.sock")
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"groups":[{"id":"g-1","displayName":"Admins"}]}}`)
	})}
	go srv.Serve(ln)
	t.Cleanup(func() { _ = srv.Close() })

	c := NewClient(ClientConfig{Socket: sock, Logger: discardLogger()})
	groups, err := c.ListGroups(context.Background())

	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Admins", groups[0].DisplayName)
}

func TestUserLabel_FallsBackToID(t *testing.T) {
	assert.Equal(t, "Bob Stone", User{ID: "bob", DisplayName: "Bob Stone"}.Label())
	assert.Equal(t, "bob", User{ID: "bob"}.Label())
}
