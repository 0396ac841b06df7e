package task

import "encoding/json"

// Recognized event types.
const (
	EventTaskCreated       = "TASK_CREATED"
	EventStatusChanged     = "STATUS_CHANGED"
	EventStageChanged      = "STAGE_CHANGED"
	EventRunRequested      = "RUN_REQUESTED"
	EventBlockedPolicy     = "BLOCKED_POLICY"
	EventApprovalRequested = "APPROVAL_REQUESTED"
	EventHumanApproved     = "HUMAN_APPROVED"
	EventHumanRejected     = "HUMAN_REJECTED"
	EventRetryStarted      = "RETRY_STARTED"
	EventApprovalExpired   = "APPROVAL_EXPIRED"
)

// Event is one immutable audit record. Type-specific fields live in
// Fields and are flattened into the top-level JSON object, so the wire
// form matches the stored payload form.
type Event struct {
	ID        string
	TaskID    string
	Type      string
	CreatedAt string
	Fields    map[string]any
	// Seq is the engine-assigned insertion sequence. Timestamps are
	// second-precision, so Seq is what keeps same-second events in
	// creation order across a restart. Storage detail, not wire form.
	Seq uint64
}

func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Fields)+4)
	for k, v := range e.Fields {
		m[k] = v
	}
	m["event_id"] = e.ID
	m["task_id"] = e.TaskID
	m["event_type"] = e.Type
	m["created_at"] = e.CreatedAt
	return json.Marshal(m)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	e.ID, _ = m["event_id"].(string)
	e.TaskID, _ = m["task_id"].(string)
	e.Type, _ = m["event_type"].(string)
	e.CreatedAt, _ = m["created_at"].(string)
	delete(m, "event_id")
	delete(m, "task_id")
	delete(m, "event_type")
	delete(m, "created_at")
	if len(m) > 0 {
		e.Fields = m
	} else {
		e.Fields = nil
	}
	return nil
}
