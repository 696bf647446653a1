package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ostrem/steward/internal/audit"
)

// queryPath is the single endpoint the directory exposes.
const queryPath = "/api/query"

// maxResponseBytes caps how much of a reply we read.
const maxResponseBytes = 8 << 20

// defaultTimeout bounds requests when the config does not.
const defaultTimeout = 5 * time.Second

// ClientConfig configures a directory Client.
type ClientConfig struct {
	// BaseURL is the http(s) root of the directory service, e.g.
	// "http://localhost:17170".
	BaseURL string

	// Socket, when set, dials this Unix socket instead of TCP. The
	// BaseURL host is then ignored.
	Socket string

	// Timeout bounds each request end to end.
	Timeout time.Duration

	// Audit, when non-nil, records the outcome of mutating operations.
	Audit *audit.Recorder

	// Logger for request-level debug logging. slog.Default() when nil.
	Logger *slog.Logger
}

// Client talks to the directory's query API. Methods are safe for
// concurrent use.
type Client struct {
	base  string
	http  *http.Client
	audit *audit.Recorder
	log   *slog.Logger
}

// NewClient builds a client from the given config.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	hc := &http.Client{Timeout: timeout}
	if cfg.Socket != "" {
		socket := cfg.Socket
		hc.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		}
		if base == "" {
			base = "http://directory" // host is ignored when dialing a socket
		}
	}

	return &Client{
		base:  base,
		http:  hc,
		audit: cfg.Audit,
		log:   logger,
	}
}

// ListUsers returns the users matching filter. A nil filter returns all
// users.
func (c *Client) ListUsers(ctx context.Context, filter *Filter) ([]User, error) {
	var out struct {
		Users []User `json:"users"`
	}
	vars := struct {
		Filter *Filter `json:"filter,omitempty"`
	}{Filter: filter}
	if _, err := c.query(ctx, "list_users", vars, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// ListGroups returns all groups without their member lists.
func (c *Client) ListGroups(ctx context.Context) ([]GroupSummary, error) {
	var out struct {
		Groups []GroupSummary `json:"groups"`
	}
	if _, err := c.query(ctx, "list_groups", nil, &out); err != nil {
		return nil, err
	}
	return out.Groups, nil
}

// GetUser returns one user together with their group memberships.
func (c *Client) GetUser(ctx context.Context, id string) (*UserDetail, error) {
	var out struct {
		User *UserDetail `json:"user"`
	}
	vars := struct {
		ID string `json:"id"`
	}{ID: id}
	if _, err := c.query(ctx, "get_user", vars, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, &Error{Kind: KindNetwork, Op: "get_user", Message: fmt.Sprintf("user %q missing from response", id)}
	}
	return out.User, nil
}

// GetGroup returns one group with its full member list.
func (c *Client) GetGroup(ctx context.Context, id string) (*Group, error) {
	var out struct {
		Group *Group `json:"group"`
	}
	vars := struct {
		ID string `json:"id"`
	}{ID: id}
	if _, err := c.query(ctx, "get_group", vars, &out); err != nil {
		return nil, err
	}
	if out.Group == nil {
		return nil, &Error{Kind: KindNetwork, Op: "get_group", Message: fmt.Sprintf("group %q missing from response", id)}
	}
	return out.Group, nil
}

// AddMember adds the user to the group. The directory may reject
// re-adding an existing member, so callers must not assume idempotence.
func (c *Client) AddMember(ctx context.Context, userID, groupID string) error {
	vars := struct {
		UserID  string `json:"userId"`
		GroupID string `json:"groupId"`
	}{UserID: userID, GroupID: groupID}
	reqID, err := c.query(ctx, "add_group_member", vars, nil)
	c.recordMutation("add_group_member", userID, groupID, reqID, err)
	return err
}

// RemoveMember removes the user from the group.
func (c *Client) RemoveMember(ctx context.Context, userID, groupID string) error {
	vars := struct {
		UserID  string `json:"userId"`
		GroupID string `json:"groupId"`
	}{UserID: userID, GroupID: groupID}
	reqID, err := c.query(ctx, "remove_group_member", vars, nil)
	c.recordMutation("remove_group_member", userID, groupID, reqID, err)
	return err
}

// CreateGroup creates a group with the given display name and returns it.
func (c *Client) CreateGroup(ctx context.Context, displayName string) (*Group, error) {
	var out struct {
		Group *Group `json:"group"`
	}
	vars := struct {
		DisplayName string `json:"displayName"`
	}{DisplayName: displayName}
	reqID, err := c.query(ctx, "create_group", vars, &out)
	c.recordMutation("create_group", displayName, "", reqID, err)
	if err != nil {
		return nil, err
	}
	if out.Group == nil {
		return nil, &Error{Kind: KindNetwork, Op: "create_group", Message: "created group missing from response", RequestID: reqID}
	}
	return out.Group, nil
}

// DeleteGroup deletes the group.
func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	vars := struct {
		ID string `json:"id"`
	}{ID: id}
	reqID, err := c.query(ctx, "delete_group", vars, nil)
	c.recordMutation("delete_group", id, "", reqID, err)
	return err
}

// DeleteUser deletes the user.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	vars := struct {
		ID string `json:"id"`
	}{ID: id}
	reqID, err := c.query(ctx, "delete_user", vars, nil)
	c.recordMutation("delete_user", id, "", reqID, err)
	return err
}

// queryRequest is the envelope every operation is posted in.
type queryRequest struct {
	Operation string `json:"operation"`
	Variables any    `json:"variables,omitempty"`
}

// apiError is one server-reported failure from the errors array.
type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type queryResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []apiError      `json:"errors"`
}

// query posts one operation and decodes the data envelope into out. The
// generated X-Request-Id is returned so mutations can correlate audit
// entries with server logs.
func (c *Client) query(ctx context.Context, op string, vars, out any) (string, error) {
	requestID := uuid.NewString()

	body, err := json.Marshal(queryRequest{Operation: op, Variables: vars})
	if err != nil {
		return requestID, &Error{Kind: KindValidation, Op: op, RequestID: requestID, Message: "failed to encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+queryPath, bytes.NewReader(body))
	if err != nil {
		return requestID, &Error{Kind: KindNetwork, Op: op, RequestID: requestID, Message: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	c.log.Debug("directory query", "operation", op, "request_id", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return requestID, &Error{Kind: KindNetwork, Op: op, RequestID: requestID, Message: "directory unreachable", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return requestID, &Error{Kind: KindNetwork, Op: op, RequestID: requestID, Message: "failed to read response", Err: err}
	}

	var env queryResponse
	if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil {
		if resp.StatusCode >= 400 {
			return requestID, &Error{Kind: kindForStatus(resp.StatusCode), Op: op, RequestID: requestID, Message: fmt.Sprintf("directory returned HTTP %d", resp.StatusCode)}
		}
		return requestID, &Error{Kind: KindNetwork, Op: op, RequestID: requestID, Message: "malformed response", Err: jsonErr}
	}

	if len(env.Errors) > 0 {
		first := env.Errors[0]
		return requestID, &Error{Kind: kindForAPIError(resp.StatusCode, first.Code), Op: op, RequestID: requestID, Message: first.Message}
	}
	if resp.StatusCode >= 400 {
		return requestID, &Error{Kind: kindForStatus(resp.StatusCode), Op: op, RequestID: requestID, Message: fmt.Sprintf("directory returned HTTP %d", resp.StatusCode)}
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return requestID, &Error{Kind: KindNetwork, Op: op, RequestID: requestID, Message: "malformed response data", Err: err}
		}
	}
	return requestID, nil
}

// kindForStatus maps an HTTP status to a failure kind: 400-class input
// rejections are validation, everything else counts as the service
// failing.
func kindForStatus(status int) Kind {
	if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
		return KindValidation
	}
	return KindNetwork
}

func kindForAPIError(status int, code string) Kind {
	if code == "validation" {
		return KindValidation
	}
	return kindForStatus(status)
}

// recordMutation appends an audit entry for a mutating call. The call's
// context may already be cancelled, so the write uses its own; audit
// failures are logged, never propagated.
func (c *Client) recordMutation(op, entityID, targetID, requestID string, opErr error) {
	outcome := audit.OutcomeCommitted
	detail := ""
	if opErr != nil {
		outcome = audit.OutcomeFailed
		detail = opErr.Error()
	}

	err := c.audit.Record(context.Background(), audit.Entry{
		Op:        op,
		EntityID:  entityID,
		TargetID:  targetID,
		RequestID: requestID,
		Outcome:   outcome,
		Detail:    detail,
	})
	if err != nil {
		c.log.Warn("audit record failed", "operation", op, "error", err)
	}
}
