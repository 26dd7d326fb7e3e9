package shared

import (
	"errors"
	"fmt"
)

// RequestError is used when we want a specific error message and StatusCode.
// Handlers return it (or wrap one of the typed errors below) and the router
// writes the status code and message back to the client.
//
// Anything that is not a RequestError or one of the typed errors is treated as
// an internal error; the chain is still logged in full.
type RequestError struct {
	StatusCode int
	Err        error
}

func (r *RequestError) Error() string {
	return fmt.Sprintf("status %d: err %v", r.StatusCode, r.Err)
}

func (r *RequestError) Unwrap() error {
	return r.Err
}

var (
	ErrInvalidRequest      = &RequestError{Err: errors.New("failed to read request body"), StatusCode: 400}
	ErrInternalServerError = &RequestError{Err: errors.New("internal server error"), StatusCode: 500}
)

// ValidationError is a missing or malformed required field. Always a 400 and
// always raised before any backend call.
type ValidationError struct {
	Msg string
}

func (v *ValidationError) Error() string {
	return v.Msg
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// BackendError is a fault reported by a model runtime. Message is the
// runtime's own message and is returned to the client verbatim.
type BackendError struct {
	Backend string
	Message string
	Cause   error
}

func (b *BackendError) Error() string {
	return b.Message
}

func (b *BackendError) Unwrap() error {
	return b.Cause
}

// SubprocessError is an external generation process that failed to spawn or
// exited non-zero. Stderr holds everything the process wrote to stderr.
type SubprocessError struct {
	ExitCode int
	Stderr   string
	Cause    error
}

func (s *SubprocessError) Error() string {
	return "video generation failed"
}

func (s *SubprocessError) Unwrap() error {
	return s.Cause
}

// IOError is an artifact that is missing or unreadable after the producing
// process reported success.
type IOError struct {
	Path  string
	Cause error
}

func (i *IOError) Error() string {
	return "failed to read output video file"
}

func (i *IOError) Unwrap() error {
	return i.Cause
}

// StreamFault is a failure after response headers were committed. It can only
// be logged; no status code or error body can follow.
type StreamFault struct {
	Frames int
	Cause  error
}

func (s *StreamFault) Error() string {
	return fmt.Sprintf("stream fault after %d frames: %v", s.Frames, s.Cause)
}

func (s *StreamFault) Unwrap() error {
	return s.Cause
}

// StatusFor maps an error chain to the HTTP status the router should send.
func StatusFor(err error) int {
	var verr *ValidationError
	var rerr *RequestError
	switch {
	case err == nil:
		return 200
	case errors.As(err, &verr):
		return 400
	case errors.As(err, &rerr):
		return rerr.StatusCode
	default:
		return 500
	}
}

// ErrorBody builds the JSON error shape for err. Typed errors keep their own
// message; unknown errors collapse to a generic internal error.
func ErrorBody(err error) ErrorResponse {
	var (
		verr *ValidationError
		berr *BackendError
		serr *SubprocessError
		ierr *IOError
		rerr *RequestError
	)
	switch {
	case errors.As(err, &verr):
		return ErrorResponse{Error: verr.Msg}
	case errors.As(err, &serr):
		return ErrorResponse{Error: serr.Error(), Stderr: &serr.Stderr}
	case errors.As(err, &ierr):
		return ErrorResponse{Error: ierr.Error()}
	case errors.As(err, &berr):
		return ErrorResponse{Error: berr.Message}
	case errors.As(err, &rerr):
		return ErrorResponse{Error: rerr.Err.Error()}
	default:
		return ErrorResponse{Error: ErrInternalServerError.Err.Error()}
	}
}

// ErrorCode is a short label for metrics.
func ErrorCode(err error) string {
	var (
		verr *ValidationError
		berr *BackendError
		serr *SubprocessError
		ierr *IOError
		ferr *StreamFault
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &verr):
		return "validation"
	case errors.As(err, &serr):
		return "subprocess"
	case errors.As(err, &ierr):
		return "io"
	case errors.As(err, &ferr):
		return "stream_fault"
	case errors.As(err, &berr):
		return "backend"
	default:
		return "internal"
	}
}
