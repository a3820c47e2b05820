package account

import (
	"errors"

	"huddle/internal/constants"
)

// Kind categorizes account errors for conversion at the HTTP boundary.
type Kind int

const (
	// KindValidation is malformed or unacceptable input.
	KindValidation Kind = iota
	// KindAuthentication is bad credentials or a missing/revoked session.
	KindAuthentication
	// KindConflict is a duplicate email, username or display name.
	KindConflict
	// KindNotFound is a referenced user that is missing or inactive.
	KindNotFound
	// KindInternal is a persistence or hashing fault.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error carries a client-safe message plus the underlying cause, which is
// only ever logged.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + ": " + e.Message
	}
	return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Sentinel errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionRevoked     = errors.New("session revoked")
)

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func validationError(field, code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message, Field: field}
}

func conflictError(field, message string) *Error {
	return &Error{Kind: KindConflict, Code: constants.ErrCodeConflict, Message: message, Field: field}
}

func notFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Code: constants.ErrCodeNotFound, Message: message}
}

func internalError(op string, err error) *Error {
	return &Error{Kind: KindInternal, Code: constants.ErrCodeInternal, Message: op + " failed", Err: err}
}

// invalidCredentials is the single outcome for every failed sign-in.
func invalidCredentials() *Error {
	return &Error{
		Kind:    KindAuthentication,
		Code:    constants.ErrCodeInvalidCredentials,
		Message: "Invalid email or password",
		Err:     ErrInvalidCredentials,
	}
}

func unauthenticated(code, message string, err error) *Error {
	return &Error{Kind: KindAuthentication, Code: code, Message: message, Err: err}
}
