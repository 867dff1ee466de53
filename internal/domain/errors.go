package domain

import "errors"

// Error kinds. Every user-facing error unwraps to exactly one of them, which
// decides the HTTP status it is reported with.
var (
	// ErrValidation marks malformed, missing or out-of-policy input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a uniqueness violation on username or email.
	ErrConflict = errors.New("conflict")
	// ErrAuthentication marks bad credentials or an invalid, expired or tampered token.
	ErrAuthentication = errors.New("authentication failed")
	// ErrNotFound marks a lookup of an entity that does not exist.
	ErrNotFound = errors.New("not found")
)

// Error is a user-facing error. Message is safe to show to the client as is.
type Error struct {
	Kind    error
	Message string
}

// NewError creates a new Error of the given kind.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// AsError returns the first user-facing error in err's tree.
func AsError(err error) (*Error, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr, true
	}

	return nil, false
}
