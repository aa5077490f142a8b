package gateway

import (
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-storefront-gateway/credentials"
	apperrors "github.com/jrsteele09/go-storefront-gateway/internal/errors"
)

// Sentinels matched by errors.Is against any *Error of the corresponding kind
var (
	ErrAuthRequired       = apperrors.ErrAuthRequired
	ErrSessionExpired     = apperrors.ErrSessionExpired
	ErrRequestFailed      = apperrors.ErrRequestFailed
	ErrNetworkUnavailable = apperrors.ErrNetworkUnavailable
)

// Kind classifies a gateway failure.
type Kind int

const (
	// KindAuthRequired: the call needs a token and none is stored. No request was sent.
	KindAuthRequired Kind = iota + 1
	// KindSessionExpired: the token was rejected and could not be refreshed.
	KindSessionExpired
	// KindRequestFailed: the backend answered with a non-OK status.
	KindRequestFailed
	// KindNetworkUnavailable: no status was produced; the backend was never reached.
	KindNetworkUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindAuthRequired:
		return "auth_required"
	case KindSessionExpired:
		return "session_expired"
	case KindRequestFailed:
		return "request_failed"
	case KindNetworkUnavailable:
		return "network_unavailable"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindAuthRequired:
		return ErrAuthRequired
	case KindSessionExpired:
		return ErrSessionExpired
	case KindRequestFailed:
		return ErrRequestFailed
	case KindNetworkUnavailable:
		return ErrNetworkUnavailable
	default:
		return nil
	}
}

// Error is a classified gateway failure.
type Error struct {
	Kind   Kind
	Realm  credentials.Realm
	Method string
	Path   string
	// Status is the HTTP status that produced the error, 0 when none was received
	Status int
	// Message is the backend's error text, or a generic description
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[gateway] %s %s: %s", e.Method, e.Path, e.Kind.sentinel())
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func newError(kind Kind, req Request, status int, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Realm:   req.Realm(),
		Method:  req.Method,
		Path:    req.Path,
		Status:  status,
		Message: message,
		Err:     cause,
	}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var gwErr *Error
	if apperrors.As(err, &gwErr) {
		return gwErr.Status
	}
	return 0
}

// KindOf returns the classification of err, or 0 for unclassified errors.
func KindOf(err error) Kind {
	var gwErr *Error
	if apperrors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return 0
}

// IsAuthFailure reports whether err means the credentials were rejected:
// a 401/403 status or a session expiry.
func IsAuthFailure(err error) bool {
	return isAuthStatus(StatusOf(err)) || apperrors.Is(err, ErrSessionExpired)
}

func isAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
