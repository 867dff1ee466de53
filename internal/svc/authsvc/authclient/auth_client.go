package authclient

import (
	"context"
	"fmt"

	"github.com/mkrupp/homecase-accounts/internal/domain"
)

// SignupParams holds the registration fields sent to POST /signup.
type SignupParams struct {
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// AuthClient defines the client side of the account service.
// Implementations keep the session cookie between calls.
type AuthClient interface {
	Signup(ctx context.Context, params SignupParams) (domain.SignupResponse, error)
	Signin(ctx context.Context, username, password string) (domain.SigninResponse, error)
	Logout(ctx context.Context) (domain.MessageResponse, error)
	Home(ctx context.Context) (domain.MessageResponse, error)
	Me(ctx context.Context) (domain.UserResponse, error)
	ProfilePicture(ctx context.Context) ([]byte, string, error)
}

// StatusError is returned for non-2xx responses and carries the server's error message.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}
