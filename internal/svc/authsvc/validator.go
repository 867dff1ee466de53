package authsvc

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/mkrupp/homecase-accounts/internal/domain"
)

const (
	passwordMinLength = 8
	usernameMinLength = 3
	usernameMaxLength = 20
	nameMaxLength     = 30
)

// Signup validation errors, reported in the order they are checked.
var (
	ErrAllFieldsRequired = domain.NewError(domain.ErrValidation, "All fields are required.")
	ErrPasswordMismatch  = domain.NewError(domain.ErrValidation, "Passwords do not match.")
	ErrPasswordTooShort  = domain.NewError(domain.ErrValidation, "Password must be at least 8 characters long.")
	ErrUsernameLength    = domain.NewError(domain.ErrValidation, "Username must be between 3 and 20 characters.")
	ErrUsernameChars     = domain.NewError(domain.ErrValidation,
		"Username can only contain letters, numbers, and underscores.")
	ErrInvalidEmail     = domain.NewError(domain.ErrValidation, "Invalid email format.")
	ErrFirstNameTooLong = domain.NewError(domain.ErrValidation, "First name should not exceed 30 characters.")
	ErrLastNameTooLong  = domain.NewError(domain.ErrValidation, "Last name should not exceed 30 characters.")
)

//nolint:gochecknoglobals
var (
	usernamePattern = regexp.MustCompile(`^\w+$`)
	validate        = validator.New(validator.WithRequiredStructEnabled())
)

// SignupRequest carries the registration form.
type SignupRequest struct {
	Username        string
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
	ProfilePicture  *domain.Upload // Optional
}

// ValidateSignup runs the signup checks in order and returns the first failure.
// The existence checks consult store; the unique constraints remain authoritative.
// Returns the detected profile picture MIME type, if any.
func ValidateSignup(
	ctx context.Context,
	store CredentialStore,
	req SignupRequest,
	maxPictureSize int64,
) (pictureType string, err error) {
	if req.Username == "" || req.FirstName == "" || req.LastName == "" ||
		req.Email == "" || req.Password == "" || req.ConfirmPassword == "" {
		return "", ErrAllFieldsRequired
	}

	if req.Password != req.ConfirmPassword {
		return "", ErrPasswordMismatch
	} else if utf8.RuneCountInString(req.Password) < passwordMinLength {
		return "", ErrPasswordTooShort
	}

	if _, exists, err := store.FindByUsername(ctx, req.Username); err != nil {
		return "", fmt.Errorf("find user by username: %w", err)
	} else if exists {
		return "", domain.ErrUsernameTaken
	}

	if n := utf8.RuneCountInString(req.Username); n < usernameMinLength || n > usernameMaxLength {
		return "", ErrUsernameLength
	} else if !usernamePattern.MatchString(req.Username) {
		return "", ErrUsernameChars
	}

	if _, exists, err := store.FindByEmail(ctx, req.Email); err != nil {
		return "", fmt.Errorf("find user by email: %w", err)
	} else if exists {
		return "", domain.ErrEmailTaken
	}

	if err := validate.Var(req.Email, "email"); err != nil {
		return "", ErrInvalidEmail
	}

	if req.ProfilePicture != nil {
		if pictureType, err = checkProfilePicture(req.ProfilePicture, maxPictureSize); err != nil {
			return "", err
		}
	}

	if utf8.RuneCountInString(req.FirstName) > nameMaxLength {
		return "", ErrFirstNameTooLong
	} else if utf8.RuneCountInString(req.LastName) > nameMaxLength {
		return "", ErrLastNameTooLong
	}

	return pictureType, nil
}
