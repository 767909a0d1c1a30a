package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies execution failures for the run history.
type ErrorCode string

const (
	ErrCodeNone              ErrorCode = ""
	ErrCodeExecutionFailure  ErrorCode = "EXECUTION_FAILURE"
	ErrCodeInvalidParameters ErrorCode = "INVALID_PARAMETERS"
	ErrCodeElementNotFound   ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeTimeout           ErrorCode = "TIMEOUT"
	ErrCodeNavigationError   ErrorCode = "NAVIGATION_ERROR"
	ErrCodeSessionLost       ErrorCode = "SESSION_LOST"
)

// ErrDecisionRetry signals a recoverable decision parse failure. The loop
// records it and continues; it never reaches the caller.
var ErrDecisionRetry = errors.New("decision unparseable, retry")

// DecisionParseError is the fatal form: the decider produced a third
// consecutive response that failed strict validation.
type DecisionParseError struct {
	Consecutive int
	Raw         string
	Err         error
}

func (e *DecisionParseError) Error() string {
	return fmt.Sprintf("decision parse failed %d consecutive times: %v", e.Consecutive, e.Err)
}

func (e *DecisionParseError) Unwrap() error { return e.Err }

// SessionError marks browser or tab failures that make further iterations
// pointless.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string { return fmt.Sprintf("session failure: %v", e.Err) }
func (e *SessionError) Unwrap() error { return e.Err }

// classifyExecError maps a raw browser error onto an ErrorCode by message
// heuristics. chromedp does not expose a structured taxonomy, so string
// matching is the only handle available.
func classifyExecError(err error) ErrorCode {
	if err == nil {
		return ErrCodeNone
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "session") && strings.Contains(msg, "closed"),
		strings.Contains(msg, "target closed"),
		strings.Contains(msg, "websocket"),
		strings.Contains(msg, "browser failed"):
		return ErrCodeSessionLost
	case errors.Is(err, context.DeadlineExceeded),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"):
		return ErrCodeTimeout
	case strings.Contains(msg, "could not find node"),
		strings.Contains(msg, "no nodes"),
		strings.Contains(msg, "not found"),
		strings.Contains(msg, "waiting for selector"):
		return ErrCodeElementNotFound
	case strings.Contains(msg, "navigat"),
		strings.Contains(msg, "net::"):
		return ErrCodeNavigationError
	default:
		return ErrCodeExecutionFailure
	}
}
