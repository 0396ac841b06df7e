package task

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusReady, StatusRunning},
		{StatusRunning, StatusFailedRetryable},
		{StatusRunning, StatusNeedsHumanApproval},
		{StatusRunning, StatusDone},
		{StatusFailedRetryable, StatusRunning},
		{StatusNeedsHumanApproval, StatusRunning},
		{StatusNeedsHumanApproval, StatusDone},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusReady, StatusDone},
		{StatusReady, StatusNeedsHumanApproval},
		{StatusDone, StatusRunning},
		{StatusDone, StatusDone},
		{StatusFailedRetryable, StatusDone},
		{StatusRunning, StatusRunning},
		{StatusRunning, StatusReady},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestValidPath(t *testing.T) {
	assert.True(t, ValidPath(nil))
	assert.True(t, ValidPath([]Status{StatusRunning, StatusDone}))
	assert.True(t, ValidPath([]Status{
		StatusRunning, StatusFailedRetryable, StatusRunning,
		StatusNeedsHumanApproval, StatusRunning, StatusDone,
	}))
	assert.False(t, ValidPath([]Status{StatusDone}))
	assert.False(t, ValidPath([]Status{StatusRunning, StatusDone, StatusRunning}))
}

func TestFormatTimestamp(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	ts := FormatTimestamp(time.Date(2026, 3, 1, 9, 30, 15, 987654321, loc))
	assert.Equal(t, "2026-03-01T00:30:15Z", ts)

	parsed, err := ParseTimestamp(ts)
	require.NoError(t, err)
	assert.Equal(t, ts, FormatTimestamp(parsed))
}

func TestTaskClone_Isolation(t *testing.T) {
	orig := &Task{
		ID:              "task_x",
		Input:           map[string]any{"notes": "a", "participants": []any{"Kim"}},
		ApprovedReasons: []string{"external_send_requested"},
		Result:          &Result{ReportPath: "reports/task_x/report.md"},
	}
	cp := orig.Clone()
	cp.Input["notes"] = "changed"
	cp.ApprovedReasons[0] = "other"
	cp.Result.ReportPath = "elsewhere"

	assert.Equal(t, "a", orig.Input["notes"])
	assert.Equal(t, "external_send_requested", orig.ApprovedReasons[0])
	assert.Equal(t, "reports/task_x/report.md", orig.Result.ReportPath)
}

func TestTaskView_Conditionals(t *testing.T) {
	tk := &Task{
		ID:        "task_1",
		Status:    StatusNeedsHumanApproval,
		UpdatedAt: "2026-01-01T00:00:00Z",

		CurrentStage:    StageExecutor,
		NextAction:      ActionApproveOrReject,
		ApprovalQueueID: "aq_1",
		ApprovalReason:  ReasonExternalSend,
		RetryCount:      1,
		LastError:       "boom",
	}
	v := tk.View()
	assert.Equal(t, "aq_1", v.ApprovalQueueID)
	assert.Equal(t, ReasonExternalSend, v.ApprovalReason)
	assert.Equal(t, 1, v.RetryCount)
	assert.Equal(t, "boom", v.LastError)
	assert.Nil(t, v.Result)

	tk.Status = StatusDone
	tk.Result = &Result{ReportPath: "reports/task_1/report.md"}
	tk.CompletedAt = "2026-01-01T00:00:05Z"
	tk.ApprovalQueueID = ""
	v = tk.View()
	require.NotNil(t, v.Result)
	assert.Equal(t, "reports/task_1/report.md", v.Result.ReportPath)
	assert.Equal(t, "2026-01-01T00:00:05Z", v.CompletedAt)
	assert.Empty(t, v.ApprovalQueueID)
}

func TestEventJSON_FlattensFields(t *testing.T) {
	ev := Event{
		ID:        "evt_abc",
		TaskID:    "task_1",
		Type:      EventStatusChanged,
		CreatedAt: "2026-01-01T00:00:00Z",
		Fields: map[string]any{
			"from_status": "READY",
			"to_status":   "RUNNING",
			"reason_code": "run_requested",
		},
	}
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "fields"), "fields must be flattened")

	var back Event
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, ev.ID, back.ID)
	assert.Equal(t, ev.Type, back.Type)
	assert.Equal(t, "READY", back.Fields["from_status"])
	assert.Equal(t, "RUNNING", back.Fields["to_status"])
}

func TestIDPrefixes(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewTaskID(), "task_"))
	assert.Len(t, NewEventID(), len("evt_")+12)
	assert.Len(t, NewQueueID(), len("aq_")+32)
	assert.Len(t, NewActionID(), len("aa_")+32)
	assert.Len(t, NewRequestID(), len("req_")+10)
	assert.NotEqual(t, NewTaskID(), NewTaskID())
}

func TestInputHash(t *testing.T) {
	a := map[string]any{"meeting_title": "주간 회의", "participants": []any{"Kim", "Lee"}}
	b := map[string]any{"participants": []any{"Kim", "Lee"}, "meeting_title": "주간 회의"}

	ha, err := InputHash(a)
	require.NoError(t, err)
	hb, err := InputHash(b)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ha, "sha256:"))
	assert.Equal(t, ha, hb, "hash must be independent of key order")

	c := map[string]any{"meeting_title": "주간 회의", "participants": []any{"Lee", "Kim"}}
	hc, err := InputHash(c)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}
