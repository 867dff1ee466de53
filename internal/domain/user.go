package domain

import "time"

var (
	// ErrUsernameTaken is returned when trying to create a user with an existing username.
	ErrUsernameTaken = NewError(ErrConflict, "Username already exists.")
	// ErrEmailTaken is returned when trying to create a user with an existing email.
	ErrEmailTaken = NewError(ErrConflict, "Email already exists.")
	// ErrUserNotFound is returned when signing in with an unknown username.
	ErrUserNotFound = NewError(ErrNotFound, "Username doesn't exist, do SignUp.")
	// ErrInvalidCredentials is returned when the username/password combination is incorrect.
	ErrInvalidCredentials = NewError(ErrAuthentication, "Authentication failed.")
	// ErrCredentialsRequired is returned when signing in without username or password.
	ErrCredentialsRequired = NewError(ErrValidation, "Username and password are required.")
)

// User represents a registered account.
type User struct {
	ID             int64     // Unique identifier
	Username       string    // Login username, unique
	FirstName      string    // Given name
	LastName       string    // Family name
	Email          string    // Contact email, unique
	PasswordHash   string    // Salted one-way hash in PHC format
	ProfilePicture BlobID    // Blob reference, empty if none
	IsActive       bool      // Inactive users cannot sign in
	CreatedAt      time.Time // Account creation time
}

// UserResponse is the public representation of a user.
type UserResponse struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	ProfilePicture bool   `json:"profile_picture"`
	DateJoined     string `json:"date_joined"`
}

// Response returns the public representation of the user.
func (u *User) Response() UserResponse {
	return UserResponse{
		ID:             u.ID,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture != "",
		DateJoined:     u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// SignupResponse is returned after a successful registration.
type SignupResponse struct {
	Message   string `json:"message"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// SigninResponse is returned after a successful sign in.
type SigninResponse struct {
	Username string `json:"username,omitempty"`
	Message  string `json:"message"`
}

// MessageResponse carries a plain status message.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse carries a user-facing error message.
type ErrorResponse struct {
	Error string `json:"error"`
}
