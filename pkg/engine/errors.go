package engine

import "errors"

// Sentinel errors returned by engine operations. The HTTP layer maps
// them to response codes with errors.Is; the wrapped message already
// carries the offending identifier or state.
var (
	ErrTaskNotFound         = errors.New("task not found")
	ErrApprovalNotFound     = errors.New("approval queue item not found")
	ErrInvalidTaskState     = errors.New("task is not READY")
	ErrInvalidApprovalState = errors.New("approval item is not PENDING")
	ErrOwnership            = errors.New("requester can only access their own task")
)
