package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for routing decisions: what to retry, what to
// surface inline, and what clears a local selection.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindTimeout
	KindUpstream
	KindInvalidPayload
	KindInvalidFrameKey
	KindTrackNotInFrame
	KindTargetMismatch
	KindInternal
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport_failure"
	case KindTimeout:
		return "timed_out"
	case KindUpstream:
		return "upstream_http_error"
	case KindInvalidPayload:
		return "invalid_payload"
	case KindInvalidFrameKey:
		return "invalid_frame_key"
	case KindTrackNotInFrame:
		return "track_not_in_frame"
	case KindTargetMismatch:
		return "target_mismatch"
	case KindInternal:
		return "internal_error"
	case KindConfig:
		return "config_error"
	default:
		return "unknown"
	}
}

// Error is the single error shape the orchestrator consumes. Analyzer failures
// of every flavor are normalized into it before they cross the client boundary.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	RequestID  string
	HTTPStatus int
	AllowForce bool // only meaningful for KindTargetMismatch
	Err        error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage returns the backend-supplied message when present, otherwise a
// generic message keyed by kind.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Kind {
	case KindTransport:
		return "Could not reach the analysis service"
	case KindTimeout:
		return "The analysis service took too long to respond"
	case KindInvalidPayload:
		return "The selection could not be understood"
	case KindInvalidFrameKey:
		return "The selected frame is no longer available"
	case KindTrackNotInFrame:
		return "The chosen player is not visible in that frame"
	case KindTargetMismatch:
		return "The drawn box does not match the selected player"
	case KindInternal:
		return "The analysis service reported an internal error"
	case KindConfig:
		return "The analysis service is not configured"
	default:
		return "Something went wrong"
	}
}

// Status returns the HTTP status to answer with when relaying this error.
func (e *Error) Status() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	switch e.Kind {
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindTransport:
		return http.StatusBadGateway
	case KindInvalidPayload, KindInvalidFrameKey, KindTrackNotInFrame:
		return http.StatusBadRequest
	case KindTargetMismatch:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// As extracts an *Error from an error chain, returning nil when absent.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// KindOf reports the kind of err, KindUnknown for foreign errors.
func KindOf(err error) Kind {
	if e := As(err); e != nil {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether the failure is worth re-triggering as-is. Input
// errors are not: the payload itself is wrong.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindTimeout:
		return true
	default:
		return false
	}
}

// ClearsSelection reports whether the failure invalidates the local selection
// that produced it.
func ClearsSelection(err error) bool {
	switch KindOf(err) {
	case KindInvalidPayload, KindInvalidFrameKey, KindTrackNotInFrame:
		return true
	default:
		return false
	}
}
