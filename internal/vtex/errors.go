package vtex

import (
	"fmt"
	"strconv"
)

// rawBodyLimit caps how much response body is kept on errors
const rawBodyLimit = 500

// PlatformError is returned when a platform endpoint answers with a status or
// payload the caller cannot use. RawBody is truncated; Context carries the
// request coordinates for logging.
type PlatformError struct {
	Status  int
	RawBody string
	Context map[string]string
}

func (e *PlatformError) Error() string {
	msg := fmt.Sprintf("platform request failed (HTTP %d)", e.Status)
	if op, ok := e.Context["operation"]; ok {
		msg += " during " + op
	}
	if e.RawBody != "" {
		msg += ": " + Truncate(e.RawBody, 120)
	}
	return msg
}

// ErrorTag formats the error the way probe rows record it: "<status>:<body>".
func (e *PlatformError) ErrorTag() string {
	return strconv.Itoa(e.Status) + ":" + Truncate(e.RawBody, rawBodyLimit)
}

// NewPlatformError builds a PlatformError with a truncated body
func NewPlatformError(status int, body []byte, context map[string]string) *PlatformError {
	return &PlatformError{
		Status:  status,
		RawBody: Truncate(string(body), rawBodyLimit),
		Context: context,
	}
}

// RetryError is returned when the transport could not obtain any HTTP
// response after exhausting the retry budget.
type RetryError struct {
	URL        string
	Attempts   int
	LastStatus int
	LastError  error
}

func (e *RetryError) Error() string {
	msg := "failed to fetch " + e.URL + " after " + strconv.Itoa(e.Attempts) + " attempts"
	if e.LastStatus != 0 {
		msg += " (HTTP " + strconv.Itoa(e.LastStatus) + ")"
	}
	if e.LastError != nil {
		msg += ": " + e.LastError.Error()
	}
	return msg
}

func (e *RetryError) Unwrap() error {
	return e.LastError
}

// IsRetryableStatus checks if an HTTP status code is retryable.
// Retryable: 429, 500-599.
func IsRetryableStatus(status int) bool {
	return status == 429 || (status >= 500 && status < 600)
}

// Truncate clips a string to at most n bytes
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
