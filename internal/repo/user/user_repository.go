package user

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/mkrupp/homecase-accounts/internal/domain"
)

//go:embed migrations
var migrations embed.FS

// Repository defines the interface for user data persistence.
type Repository interface {
	// CreateUser adds a new user to the repository and fills in its ID and CreatedAt.
	// Returns ErrUsernameTaken or ErrEmailTaken if a unique column is already taken.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUserByUsername retrieves a user by their username.
	// Returns the user object and true if found, or nil and false if not found.
	// Returns an error if the operation fails.
	GetUserByUsername(ctx context.Context, username string) (*domain.User, bool, error)

	// GetUserByEmail retrieves a user by their email address.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, bool, error)

	// GetUserByID retrieves a user by their identifier.
	GetUserByID(ctx context.Context, id int64) (*domain.User, bool, error)

	// Migrate applies pending schema migrations and returns how many ran.
	Migrate(ctx context.Context) (int, error)

	// Close releases any resources held by the repository.
	// Returns an error if cleanup fails.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func(ctx context.Context) (Repository, error)

func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string) (int, error) {
	fsys, err := fs.Sub(migrations, "migrations/"+dir)
	if err != nil {
		return 0, fmt.Errorf("open migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return 0, fmt.Errorf("new migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	return len(results), nil
}
