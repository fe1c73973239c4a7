package homeassistant

import "fmt"

// ErrorKind classifies a failed hub interaction so callers can decide
// whether to retry, re-authenticate, or report bad input.
type ErrorKind int

const (
	// KindUnreachable means the hub could not be reached at all: DNS,
	// connection, timeout, or an open circuit breaker.
	KindUnreachable ErrorKind = iota
	// KindUnauthorized means the hub rejected our token (401/403).
	KindUnauthorized
	// KindBadRequest means the hub rejected the request itself, such as
	// an unknown entity or malformed service data (other 4xx).
	KindBadRequest
	// KindServerError means the hub failed internally (5xx).
	KindServerError
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	case KindServerError:
		return "server_error"
	}
	return "unknown"
}

// Error is a classified hub failure. Status is zero when the request
// never produced an HTTP response.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("hub %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("hub %s: %s", e.Kind, e.Message)
}

// classifyStatus maps a non-OK HTTP status to an Error.
func classifyStatus(status int, body string) *Error {
	kind := KindBadRequest
	switch {
	case status == 401 || status == 403:
		kind = KindUnauthorized
	case status >= 500:
		kind = KindServerError
	}
	return &Error{Kind: kind, Status: status, Message: body}
}
