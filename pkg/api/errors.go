package api

import (
	"errors"
	"net/http"

	"github.com/redsunjin/NestClaw/pkg/engine"
)

// Error codes carried in the response envelope.
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeTaskNotFound         = "TASK_NOT_FOUND"
	CodeInvalidTaskState     = "INVALID_TASK_STATE"
	CodeApprovalNotFound     = "APPROVAL_NOT_FOUND"
	CodeInvalidApprovalState = "INVALID_APPROVAL_STATE"
	CodeRateLimited          = "RATE_LIMITED"
	CodeNotFound             = "NOT_FOUND"
	CodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	CodeInternal             = "INTERNAL"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// writeError emits the error envelope, tagging it with the request id
// from the middleware chain.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:      code,
		Message:   message,
		RequestID: RequestIDFrom(r.Context()),
	}})
}

// forbiddenError carries an authorization denial raised inside an
// engine authorize callback.
type forbiddenError struct {
	msg string
}

func (e *forbiddenError) Error() string { return e.msg }

// writeEngineError maps engine sentinel errors onto envelope codes.
// Anything unrecognized is a 500.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var denied *forbiddenError
	switch {
	case errors.As(err, &denied):
		writeError(w, r, http.StatusForbidden, CodeForbidden, denied.Error())
	case errors.Is(err, engine.ErrOwnership):
		writeError(w, r, http.StatusForbidden, CodeForbidden, err.Error())
	case errors.Is(err, engine.ErrTaskNotFound):
		writeError(w, r, http.StatusNotFound, CodeTaskNotFound, err.Error())
	case errors.Is(err, engine.ErrApprovalNotFound):
		writeError(w, r, http.StatusNotFound, CodeApprovalNotFound, err.Error())
	case errors.Is(err, engine.ErrInvalidTaskState):
		writeError(w, r, http.StatusConflict, CodeInvalidTaskState, err.Error())
	case errors.Is(err, engine.ErrInvalidApprovalState):
		writeError(w, r, http.StatusConflict, CodeInvalidApprovalState, err.Error())
	default:
		s.logger.Error("internal error", "error", err, "request_id", RequestIDFrom(r.Context()))
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
