package task

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewTaskID returns a fresh task identifier, e.g.
// "task_8f14e45f-ceea-4672-9b3a-9d9d2f9e0a11".
func NewTaskID() string {
	return "task_" + uuid.NewString()
}

// NewEventID returns a fresh event identifier, e.g. "evt_3f2a9c0d1b4e".
func NewEventID() string {
	return hexID("evt_", 12)
}

// NewQueueID returns a fresh approval queue identifier.
func NewQueueID() string {
	return hexID("aq_", 32)
}

// NewActionID returns a fresh approval action identifier.
func NewActionID() string {
	return hexID("aa_", 32)
}

// NewRequestID returns a fresh request correlation identifier, e.g.
// "req_5d41402abc".
func NewRequestID() string {
	return hexID("req_", 10)
}

func hexID(prefix string, n int) string {
	u := uuid.New()
	return prefix + hex.EncodeToString(u[:])[:n]
}
