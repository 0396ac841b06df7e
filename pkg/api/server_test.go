package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redsunjin/NestClaw/pkg/api"
	"github.com/redsunjin/NestClaw/pkg/auth"
	"github.com/redsunjin/NestClaw/pkg/engine"
	"github.com/redsunjin/NestClaw/pkg/ratelimit"
	"github.com/redsunjin/NestClaw/pkg/store"
)

const testSecret = "test-signing-secret"

type testServer struct {
	*httptest.Server
	engine  *engine.Engine
	reports string
}

func newTestServer(t *testing.T, opts ...api.Option) *testServer {
	t.Helper()
	reports := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng, err := engine.New(context.Background(), store.NewMemory(),
		engine.WithReportsRoot(reports),
		engine.WithLogger(logger),
	)
	require.NoError(t, err)

	resolver := auth.NewResolver(auth.Config{
		Mode:            auth.ModeLocal,
		Secret:          testSecret,
		AllowSSOHeaders: true,
		AllowHeaderAuth: true,
	})

	srv, err := api.NewServer(eng, resolver, append([]api.Option{api.WithLogger(logger)}, opts...)...)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, engine: eng, reports: reports}
}

func asActor(id, role string) map[string]string {
	return map[string]string{"X-Actor-ID": id, "X-Actor-Role": role}
}

func (ts *testServer) do(t *testing.T, method, path string, headers map[string]string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &decoded), "undecodable body: %s", data)
	}
	return resp, decoded
}

func createBody(notes string) map[string]any {
	return map[string]any{
		"title":         "weekly ops sync",
		"template_type": "meeting_summary",
		"requested_by":  "user-a",
		"input": map[string]any{
			"meeting_title": "주간 운영 회의",
			"meeting_date":  "2026-03-02",
			"participants":  []any{"kim", "lee"},
			"notes":         notes,
		},
	}
}

func (ts *testServer) createTask(t *testing.T, notes string) string {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/v1/task/create", asActor("user-a", "requester"), createBody(notes))
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create failed: %v", body)
	return body["task_id"].(string)
}

func (ts *testServer) runTask(t *testing.T, taskID, key string) map[string]any {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/v1/task/run", asActor("user-a", "requester"), map[string]any{
		"task_id":         taskID,
		"idempotency_key": key,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, "run failed: %v", body)
	return body
}

func (ts *testServer) waitStatus(t *testing.T, taskID, want string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, body := ts.do(t, http.MethodGet, "/api/v1/task/status/"+taskID, asActor("user-a", "requester"), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		if body["status"] == want {
			return body
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached %s", taskID, want)
	return nil
}

// envelope digs the error object out of a failure response.
func envelope(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	enc, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error envelope: %v", body)
	return enc
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, body = ts.do(t, http.MethodPost, "/health", nil, nil)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "METHOD_NOT_ALLOWED", envelope(t, body)["code"])
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/task/create", asActor("user-a", "requester"),
		createBody("안건 정리\n다음 주 일정 공유"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	taskID := body["task_id"].(string)
	assert.True(t, strings.HasPrefix(taskID, "task_"), "unexpected id %q", taskID)
	assert.Equal(t, "READY", body["status"])
	assert.NotEmpty(t, body["created_at"])

	run := ts.runTask(t, taskID, "idem-lifecycle-1")
	assert.Equal(t, taskID, run["task_id"])
	assert.Equal(t, "RUNNING", run["status"])
	assert.NotEmpty(t, run["started_at"])

	view := ts.waitStatus(t, taskID, "DONE")
	result, ok := view["result"].(map[string]any)
	require.True(t, ok, "done view missing result: %v", view)
	reportPath := result["report_path"].(string)
	assert.True(t, strings.HasPrefix(reportPath, ts.reports))

	content, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "# 회의 결과 요약"))
	assert.Contains(t, string(content), "주간 운영 회의")

	resp, body = ts.do(t, http.MethodGet, "/api/v1/task/events/"+taskID, asActor("rev-1", "reviewer"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, taskID, body["task_id"])
	items := body["items"].([]any)
	assert.Equal(t, float64(len(items)), body["count"])

	first := items[0].(map[string]any)
	assert.Equal(t, "TASK_CREATED", first["event_type"])
	last := items[len(items)-1].(map[string]any)
	assert.Equal(t, "STATUS_CHANGED", last["event_type"])
	assert.Equal(t, "DONE", last["to_status"])
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/task/create", nil, createBody("메모"))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	env := envelope(t, body)
	assert.Equal(t, "UNAUTHORIZED", env["code"])
	assert.Equal(t, "missing authentication context", env["message"])
	assert.NotEmpty(t, env["request_id"])

	// A caller-supplied request id is echoed in both the header and
	// the envelope.
	resp, body = ts.do(t, http.MethodPost, "/api/v1/task/create",
		map[string]string{"X-Request-ID": "req_fixed01ab"}, createBody("메모"))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "req_fixed01ab", resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "req_fixed01ab", envelope(t, body)["request_id"])
}

func TestBearerTokenAuth(t *testing.T) {
	ts := newTestServer(t)

	token, err := auth.IssueDevToken(testSecret, "user-a", "requester", time.Hour)
	require.NoError(t, err)

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/task/create",
		map[string]string{"Authorization": "Bearer " + token}, createBody("메모 내용"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/task/create",
		map[string]string{"Authorization": "Bearer " + token + "x"}, createBody("메모 내용"))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", envelope(t, body)["code"])
}

func TestRequestValidation(t *testing.T) {
	ts := newTestServer(t)
	headers := asActor("user-a", "requester")

	missingTitle := createBody("메모")
	delete(missingTitle, "title")
	resp, body := ts.do(t, http.MethodPost, "/api/v1/task/create", headers, missingTitle)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", envelope(t, body)["code"])

	badInput := createBody("메모")
	badInput["input"] = "not an object"
	resp, body = ts.do(t, http.MethodPost, "/api/v1/task/create", headers, badInput)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", envelope(t, body)["code"])

	unknownTemplate := createBody("메모")
	unknownTemplate["template_type"] = "mystery_template"
	resp, body = ts.do(t, http.MethodPost, "/api/v1/task/create", headers, unknownTemplate)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unsupported template_type: mystery_template", envelope(t, body)["message"])

	emptyNotes := createBody("")
	resp, body = ts.do(t, http.MethodPost, "/api/v1/task/create", headers, emptyNotes)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, envelope(t, body)["message"], "missing required input fields")

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/task/create", strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set("X-Actor-ID", "user-a")
	req.Header.Set("X-Actor-Role", "requester")
	raw, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	require.Equal(t, http.StatusBadRequest, raw.StatusCode)

	resp, body = ts.do(t, http.MethodPost, "/api/v1/task/run", headers, map[string]any{"idempotency_key": "k"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", envelope(t, body)["code"])
}

func TestRBAC(t *testing.T) {
	ts := newTestServer(t)
	taskID := ts.createTask(t, "안건 정리")

	// Reviewers cannot create tasks.
	resp, body := ts.do(t, http.MethodPost, "/api/v1/task/create", asActor("rev-1", "reviewer"), createBody("메모"))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "role 'reviewer' is not allowed for action: create_task", envelope(t, body)["message"])

	// A requester cannot file work under someone else's name.
	resp, body = ts.do(t, http.MethodPost, "/api/v1/task/create", asActor("user-b", "requester"), createBody("메모"))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "requester must match requested_by", envelope(t, body)["message"])

	// Admins may create on behalf of anyone.
	resp, _ = ts.do(t, http.MethodPost, "/api/v1/task/create", asActor("root-1", "admin"), createBody("관리자 생성"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// A foreign requester cannot run or read the task.
	resp, body = ts.do(t, http.MethodPost, "/api/v1/task/run", asActor("user-b", "requester"),
		map[string]any{"task_id": taskID})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "requester can only access their own task", envelope(t, body)["message"])

	resp, body = ts.do(t, http.MethodGet, "/api/v1/task/status/"+taskID, asActor("user-b", "requester"), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", envelope(t, body)["code"])

	// Reviewers and approvers may read any task.
	resp, _ = ts.do(t, http.MethodGet, "/api/v1/task/status/"+taskID, asActor("rev-1", "reviewer"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/api/v1/task/events/"+taskID, asActor("app-1", "approver"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Reviewers cannot run tasks at all.
	resp, body = ts.do(t, http.MethodPost, "/api/v1/task/run", asActor("rev-1", "reviewer"),
		map[string]any{"task_id": taskID})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "role 'reviewer' is not allowed for action: run_task", envelope(t, body)["message"])

	// Approval queue and audit are role gated.
	resp, body = ts.do(t, http.MethodGet, "/api/v1/approvals", asActor("user-a", "requester"), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "role 'requester' is not allowed for action: list_approvals", envelope(t, body)["message"])

	resp, body = ts.do(t, http.MethodGet, "/api/v1/audit/summary", asActor("user-a", "requester"), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "role 'requester' is not allowed for action: audit_summary", envelope(t, body)["message"])

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/audit/summary", asActor("rev-1", "reviewer"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Unknown roles are rejected at authentication.
	resp, body = ts.do(t, http.MethodGet, "/api/v1/audit/summary", asActor("x-1", "superuser"), nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", envelope(t, body)["code"])
}

func TestPolicyApprovalFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	taskID := ts.createTask(t, "회의 결과를 외부 전송 해주세요")
	ts.runTask(t, taskID, "idem-policy-1")

	view := ts.waitStatus(t, taskID, "NEEDS_HUMAN_APPROVAL")
	queueID := view["approval_queue_id"].(string)
	assert.True(t, strings.HasPrefix(queueID, "aq_"))
	assert.Equal(t, "external_send_requested", view["approval_reason"])
	assert.Equal(t, "approve_or_reject", view["next_action"])

	// The queue is only visible to approvers and admins.
	resp, body := ts.do(t, http.MethodGet, "/api/v1/approvals", asActor("app-1", "approver"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["count"])
	item := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, queueID, item["queue_id"])
	assert.Equal(t, taskID, item["task_id"])
	assert.Equal(t, "PENDING", item["status"])
	assert.Equal(t, "external_send_requested", item["reason_code"])
	assert.Equal(t, "ops_team", item["approver_group"])

	// Filters narrow by status and group.
	resp, body = ts.do(t, http.MethodGet, "/api/v1/approvals?status=APPROVED", asActor("app-1", "approver"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["count"])
	resp, body = ts.do(t, http.MethodGet, "/api/v1/approvals?approver_group=ops_team&status=PENDING", asActor("app-1", "approver"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	// Requesters cannot decide.
	resp, body = ts.do(t, http.MethodPost, "/api/v1/approvals/"+queueID+"/approve", asActor("user-a", "requester"),
		map[string]any{"acted_by": "user-a"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "role 'requester' is not allowed for action: approve_queue_item", envelope(t, body)["message"])

	resp, body = ts.do(t, http.MethodPost, "/api/v1/approvals/"+queueID+"/approve", asActor("manager-kim", "approver"),
		map[string]any{"acted_by": "manager-kim", "comment": "승인합니다"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, queueID, body["queue_id"])
	assert.Equal(t, "APPROVED", body["status"])
	assert.Equal(t, "RUNNING", body["task_status"])

	done := ts.waitStatus(t, taskID, "DONE")
	assert.NotNil(t, done["result"])
	assert.Empty(t, done["final_reason"])

	// Deciding twice is a conflict.
	resp, body = ts.do(t, http.MethodPost, "/api/v1/approvals/"+queueID+"/reject", asActor("manager-kim", "approver"),
		map[string]any{"acted_by": "manager-kim"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	env := envelope(t, body)
	assert.Equal(t, "INVALID_APPROVAL_STATE", env["code"])
	assert.Equal(t, "approval item is not PENDING: APPROVED", env["message"])

	// Unknown queue items are a 404.
	resp, body = ts.do(t, http.MethodPost, "/api/v1/approvals/aq_missing/approve", asActor("manager-kim", "approver"),
		map[string]any{"acted_by": "manager-kim"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	env = envelope(t, body)
	assert.Equal(t, "APPROVAL_NOT_FOUND", env["code"])
	assert.Equal(t, "approval queue item not found: aq_missing", env["message"])

	resp, body = ts.do(t, http.MethodGet, "/api/v1/audit/summary", asActor("rev-1", "reviewer"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["blocked_policy_events"])
	assert.Equal(t, float64(0), body["policy_bypass_events"])
	assert.Equal(t, float64(0), body["approvals_pending"])
	assert.Equal(t, float64(1), body["approvals_resolved"])
	assert.Greater(t, body["total_events"], float64(0))
}

func TestRejectFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	taskID := ts.createTask(t, "명단을 외부 전송 부탁드립니다")
	ts.runTask(t, taskID, "idem-reject-1")
	view := ts.waitStatus(t, taskID, "NEEDS_HUMAN_APPROVAL")
	queueID := view["approval_queue_id"].(string)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/approvals/"+queueID+"/reject", asActor("manager-kim", "approver"),
		map[string]any{"acted_by": "manager-kim", "comment": "보안 범위 밖"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "REJECTED", body["status"])
	assert.Equal(t, "DONE", body["task_status"])

	done := ts.waitStatus(t, taskID, "DONE")
	assert.Equal(t, "rejected_by_human", done["final_reason"])
	assert.Nil(t, done["result"])

	resp, body = ts.do(t, http.MethodGet, "/api/v1/task/events/"+taskID, asActor("user-a", "requester"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sawRejected bool
	for _, raw := range body["items"].([]any) {
		if raw.(map[string]any)["event_type"] == "HUMAN_REJECTED" {
			sawRejected = true
		}
	}
	assert.True(t, sawRejected, "expected a HUMAN_REJECTED event")
}

func TestIdempotentRunOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	taskID := ts.createTask(t, "안건 정리")

	first := ts.runTask(t, taskID, "idem-dup-1")
	assert.Equal(t, "RUNNING", first["status"])

	ts.waitStatus(t, taskID, "DONE")

	// Replaying the same key acknowledges the current state instead of
	// failing on the READY check.
	replay := ts.runTask(t, taskID, "idem-dup-1")
	assert.Equal(t, "DONE", replay["status"])

	resp, body := ts.do(t, http.MethodGet, "/api/v1/task/events/"+taskID, asActor("user-a", "requester"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var runRequested int
	for _, raw := range body["items"].([]any) {
		if raw.(map[string]any)["event_type"] == "RUN_REQUESTED" {
			runRequested++
		}
	}
	assert.Equal(t, 1, runRequested)

	// A fresh key on a finished task hits the state conflict.
	resp, body = ts.do(t, http.MethodPost, "/api/v1/task/run", asActor("user-a", "requester"),
		map[string]any{"task_id": taskID, "idempotency_key": "idem-dup-2"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	env := envelope(t, body)
	assert.Equal(t, "INVALID_TASK_STATE", env["code"])
	assert.Equal(t, "task is not READY: DONE", env["message"])

	resp, body = ts.do(t, http.MethodPost, "/api/v1/task/run", asActor("user-a", "requester"),
		map[string]any{"task_id": "task_missing"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	env = envelope(t, body)
	assert.Equal(t, "TASK_NOT_FOUND", env["code"])
	assert.Equal(t, "task not found: task_missing", env["message"])
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, api.WithRateLimit(ratelimit.NewLocalStore(), ratelimit.Policy{RPS: 1, Burst: 2}))
	headers := asActor("user-a", "requester")

	var limited *http.Response
	var limitedBody map[string]any
	for i := 0; i < 3; i++ {
		resp, body := ts.do(t, http.MethodGet, "/api/v1/task/status/task_unknown", headers, nil)
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = resp
			limitedBody = body
			break
		}
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
	require.NotNil(t, limited, "burst never exhausted")
	assert.Equal(t, "RATE_LIMITED", envelope(t, limitedBody)["code"])
	assert.Equal(t, "1", limited.Header.Get("Retry-After"))

	// The health probe is never throttled.
	for i := 0; i < 5; i++ {
		resp, _ := ts.do(t, http.MethodGet, "/health", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/approvals", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://app.example")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Expose-Headers"), "X-Request-ID")

	restricted := newTestServer(t, api.WithCORSOrigins([]string{"https://ok.example"}))
	req, err = http.NewRequest(http.MethodOptions, restricted.URL+"/api/v1/approvals", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://bad.example")
	resp, err = restricted.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouting(t *testing.T) {
	ts := newTestServer(t)
	headers := asActor("user-a", "requester")

	resp, body := ts.do(t, http.MethodGet, "/api/v1/task/create", headers, nil)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "METHOD_NOT_ALLOWED", envelope(t, body)["code"])

	resp, body = ts.do(t, http.MethodGet, "/api/v1/nope", headers, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", envelope(t, body)["code"])

	resp, body = ts.do(t, http.MethodPost, "/api/v1/approvals/aq_1/escalate", asActor("app-1", "approver"), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", envelope(t, body)["code"])

	resp, body = ts.do(t, http.MethodGet, "/api/v1/task/status/", headers, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", envelope(t, body)["code"])
}
