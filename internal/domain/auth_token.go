package domain

import "time"

var (
	// ErrNoAuthToken is returned when an authentication token is required but not provided.
	ErrNoAuthToken = NewError(ErrAuthentication, "Authentication required")
	// ErrInvalidAuthToken is returned for every token verification failure:
	// bad signature, wrong algorithm, malformed input, expiry or an unknown user.
	ErrInvalidAuthToken = NewError(ErrAuthentication, "Authentication required")
)

// AuthToken is the verified content of a session token.
type AuthToken struct {
	UserID    int64     // Identifier of the authenticated user
	Username  string    // Username of the authenticated user
	IssuedAt  time.Time // When the token was created
	ExpiresAt time.Time // When the token stops being accepted
}
