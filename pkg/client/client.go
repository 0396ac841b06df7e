// Package client provides a typed Go client for the orchestrator API.
// Zero external dependencies beyond the task wire types.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is returned when the API responds with a non-2xx status or
// the request never reaches it.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
	cause     error
}

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.cause)
	}
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.cause }

// Client is a typed client for the orchestrator API.
type Client struct {
	BaseURL    string
	Token      string
	ActorID    string
	ActorRole  string
	HTTPClient *http.Client
}

// New creates a new Client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Option configures the client.
type Option func(*Client)

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.Token = token }
}

// WithActor sets the compat assertion headers. Only useful against
// servers that allow header authentication.
func WithActor(id, role string) Option {
	return func(c *Client) {
		c.ActorID = id
		c.ActorRole = role
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

func (c *Client) do(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.ActorID != "" {
		req.Header.Set("X-Actor-ID", c.ActorID)
	}
	if c.ActorRole != "" {
		req.Header.Set("X-Actor-Role", c.ActorRole)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &APIError{Code: "NETWORK_ERROR", Message: err.Error(), cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		var env errorEnvelope
		if err := json.Unmarshal(data, &env); err == nil && env.Error.Code != "" {
			return &APIError{
				Status:    resp.StatusCode,
				Code:      env.Error.Code,
				Message:   env.Error.Message,
				RequestID: env.Error.RequestID,
			}
		}
		return &APIError{
			Status:  resp.StatusCode,
			Code:    "HTTP_ERROR",
			Message: strings.TrimSpace(string(data)),
		}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// Health calls GET /health.
func (c *Client) Health() (map[string]string, error) {
	var out map[string]string
	err := c.do("GET", "/health", nil, &out)
	return out, err
}

// CreateTask calls POST /api/v1/task/create.
func (c *Client) CreateTask(req CreateTaskRequest) (*CreateTaskResponse, error) {
	var out CreateTaskResponse
	if err := c.do("POST", "/api/v1/task/create", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunTask calls POST /api/v1/task/run.
func (c *Client) RunTask(req RunTaskRequest) (*RunTaskResponse, error) {
	var out RunTaskResponse
	if err := c.do("POST", "/api/v1/task/run", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TaskStatus calls GET /api/v1/task/status/{id}.
func (c *Client) TaskStatus(taskID string) (*StatusView, error) {
	var out StatusView
	if err := c.do("GET", "/api/v1/task/status/"+url.PathEscape(taskID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TaskEvents calls GET /api/v1/task/events/{id}.
func (c *Client) TaskEvents(taskID string) (*TaskEventsResponse, error) {
	var out TaskEventsResponse
	if err := c.do("GET", "/api/v1/task/events/"+url.PathEscape(taskID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListApprovals calls GET /api/v1/approvals. Empty filter values are
// omitted from the query.
func (c *Client) ListApprovals(status, approverGroup string) (*ApprovalListResponse, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if approverGroup != "" {
		q.Set("approver_group", approverGroup)
	}
	path := "/api/v1/approvals"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out ApprovalListResponse
	if err := c.do("GET", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Approve calls POST /api/v1/approvals/{id}/approve.
func (c *Client) Approve(queueID string, req DecisionRequest) (*DecisionResponse, error) {
	var out DecisionResponse
	if err := c.do("POST", "/api/v1/approvals/"+url.PathEscape(queueID)+"/approve", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reject calls POST /api/v1/approvals/{id}/reject.
func (c *Client) Reject(queueID string, req DecisionRequest) (*DecisionResponse, error) {
	var out DecisionResponse
	if err := c.do("POST", "/api/v1/approvals/"+url.PathEscape(queueID)+"/reject", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditSummary calls GET /api/v1/audit/summary.
func (c *Client) AuditSummary() (*AuditSummary, error) {
	var out AuditSummary
	if err := c.do("GET", "/api/v1/audit/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
