package response

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// Machine-readable error codes.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"
)

var statusCodes = map[int]string{
	http.StatusBadRequest:            ErrCodeBadRequest,
	http.StatusNotFound:              ErrCodeNotFound,
	http.StatusMethodNotAllowed:      ErrCodeMethodNotAllowed,
	http.StatusRequestEntityTooLarge: ErrCodePayloadTooLarge,
	http.StatusTooManyRequests:       ErrCodeRateLimited,
	http.StatusServiceUnavailable:    ErrCodeServiceUnavailable,
	http.StatusGatewayTimeout:        ErrCodeGatewayTimeout,
}

// CodeFor returns the default code for an HTTP status.
func CodeFor(status int) string {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	return ErrCodeInternalServer
}

// Problem is an error carrying its HTTP rendering. Handlers build one and
// pass it to WriteProblem.
type Problem struct {
	Status  int
	Code    string
	Message string
	Details map[string]any

	// Cause is logged but never sent to the client.
	Cause error
}

// NewProblem returns a Problem with the default code for status.
func NewProblem(status int, format string, args ...any) *Problem {
	return &Problem{Status: status, Code: CodeFor(status), Message: fmt.Sprintf(format, args...)}
}

// Internal hides cause behind a generic 500.
func Internal(cause error) *Problem {
	p := NewProblem(http.StatusInternalServerError, "Internal server error")
	p.Cause = cause
	return p
}

func (p *Problem) Error() string {
	if p.Cause != nil {
		return fmt.Sprintf("%s: %v", p.Message, p.Cause)
	}
	return p.Message
}

func (p *Problem) Unwrap() error { return p.Cause }

// WithCode overrides the code derived from the status.
func (p *Problem) WithCode(code string) *Problem {
	p.Code = code
	return p
}

// WithDetail adds one entry to the details object.
func (p *Problem) WithDetail(key string, value any) *Problem {
	if p.Details == nil {
		p.Details = make(map[string]any)
	}
	p.Details[key] = value
	return p
}

// AsProblem finds a Problem in err's chain, or wraps err with Internal.
func AsProblem(err error) *Problem {
	var p *Problem
	if errors.As(err, &p) {
		return p
	}
	return Internal(err)
}
