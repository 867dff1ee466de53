package authsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/mkrupp/homecase-accounts/internal/domain"
	"github.com/mkrupp/homecase-accounts/internal/infra/logging"
	"github.com/mkrupp/homecase-accounts/internal/repo/user"
)

// NewUser holds the fields of an account to be created. Password is the plaintext
// password and is only ever passed to the hasher.
type NewUser struct {
	Username       string
	FirstName      string
	LastName       string
	Email          string
	Password       string
	ProfilePicture domain.BlobID
	CreatedAt      time.Time // Defaults to the time of insertion
}

// CredentialStore persists accounts and verifies passwords.
type CredentialStore interface {
	// CreateUser hashes the password and inserts the user.
	// Returns ErrUsernameTaken or ErrEmailTaken on duplicates.
	CreateUser(ctx context.Context, newUser NewUser) (*domain.User, error)

	// VerifyCredentials returns the user and true if the password matches an active account.
	// Unknown users, wrong passwords and inactive accounts all yield false without an error.
	VerifyCredentials(ctx context.Context, username, password string) (*domain.User, bool, error)

	FindByUsername(ctx context.Context, username string) (*domain.User, bool, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, bool, error)
	FindByID(ctx context.Context, id int64) (*domain.User, bool, error)
}

// RepoCredentialStore implements CredentialStore on top of a user repository.
type RepoCredentialStore struct {
	repo   user.Repository
	hasher PasswordHasher
	log    logging.Logger
}

var _ CredentialStore = (*RepoCredentialStore)(nil)

// NewRepoCredentialStore creates a credential store backed by repo.
func NewRepoCredentialStore(repo user.Repository, hasher PasswordHasher) *RepoCredentialStore {
	return &RepoCredentialStore{
		repo:   repo,
		hasher: hasher,
		log:    logging.GetLogger("svc.authsvc.credential_store"),
	}
}

// CreateUser implements CredentialStore.CreateUser.
func (s *RepoCredentialStore) CreateUser(ctx context.Context, newUser NewUser) (_ *domain.User, err error) {
	log := s.log.With(logging.Group("user", "username", newUser.Username))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "create user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user created")
		}
	}()

	passwordHash, err := s.hasher.Hash(newUser.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	//nolint:exhaustruct
	u := &domain.User{
		Username:       newUser.Username,
		FirstName:      newUser.FirstName,
		LastName:       newUser.LastName,
		Email:          newUser.Email,
		PasswordHash:   passwordHash,
		ProfilePicture: newUser.ProfilePicture,
		IsActive:       true,
		CreatedAt:      newUser.CreatedAt,
	}

	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return u, nil
}

// VerifyCredentials implements CredentialStore.VerifyCredentials.
func (s *RepoCredentialStore) VerifyCredentials(ctx context.Context, username, password string) (*domain.User, bool, error) {
	u, ok, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, false, fmt.Errorf("get user: %w", err)
	} else if !ok {
		return nil, false, nil
	}

	match, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		return nil, false, fmt.Errorf("verify password: %w", err)
	} else if !match || !u.IsActive {
		return nil, false, nil
	}

	return u, true, nil
}

// FindByUsername implements CredentialStore.FindByUsername.
func (s *RepoCredentialStore) FindByUsername(ctx context.Context, username string) (*domain.User, bool, error) {
	u, ok, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, false, fmt.Errorf("get user by username: %w", err)
	}

	return u, ok, nil
}

// FindByEmail implements CredentialStore.FindByEmail.
func (s *RepoCredentialStore) FindByEmail(ctx context.Context, email string) (*domain.User, bool, error) {
	u, ok, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("get user by email: %w", err)
	}

	return u, ok, nil
}

// FindByID implements CredentialStore.FindByID.
func (s *RepoCredentialStore) FindByID(ctx context.Context, id int64) (*domain.User, bool, error) {
	u, ok, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("get user by id: %w", err)
	}

	return u, ok, nil
}
