package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/homecase-accounts/internal/domain"
	"github.com/mkrupp/homecase-accounts/internal/infra/logging"
)

const sqliteUserColumns = "id, username, first_name, last_name, email, password_hash, profile_picture, is_active, created_at"

// SQLiteUserRepositoryConfig holds configuration for the SQLite user repository.
type SQLiteUserRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/accountsvc.db"`
	// BusyTimeout is how long a connection waits on a locked database
	BusyTimeout time.Duration `env:"BUSY_TIMEOUT" default:"5s"`
	// AutoMigrate applies pending migrations when the repository is opened
	AutoMigrate bool `env:"AUTO_MIGRATE" default:"true"`
}

// SQLiteUserRepository implements Repository using SQLite as the storage backend.
type SQLiteUserRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteUserRepository)(nil)

// SQLiteUserRepositoryFactory creates a factory function that returns a new SQLiteUserRepository.
// The factory function implements the RepositoryFactory type.
func SQLiteUserRepositoryFactory(cfg SQLiteUserRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		return NewSQLiteUserRepository(ctx, cfg)
	}
}

// NewSQLiteUserRepository creates a new SQLiteUserRepository with the given configuration.
// It opens the database and, if enabled, applies the schema migrations.
// Returns an error if database connection or initialization fails.
func NewSQLiteUserRepository(ctx context.Context, cfg SQLiteUserRepositoryConfig) (*SQLiteUserRepository, error) {
	log := logging.GetLogger("repo.user.sqlite_user_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	repo := &SQLiteUserRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}

	if cfg.AutoMigrate {
		if _, err := repo.Migrate(ctx); err != nil {
			_ = db.Close()

			return nil, err
		}
	}

	return repo, nil
}

// sqliteDSN builds a file: URI so that '?' or '#' in the path are escaped
// instead of being read as connection options.
func sqliteDSN(cfg SQLiteUserRepositoryConfig) string {
	query := url.Values{"_pragma": {
		fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()),
		"foreign_keys(1)",
	}}

	//nolint:exhaustruct
	dsn := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(cfg.DatabasePath),
		RawQuery: query.Encode(),
		OmitHost: true,
	}

	return dsn.String()
}

// Migrate implements Repository.Migrate using the embedded SQLite migrations.
func (r *SQLiteUserRepository) Migrate(ctx context.Context) (int, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	applied, err := migrate(ctx, r.db, goose.DialectSQLite3, "sqlite")
	if err != nil {
		return 0, fmt.Errorf("migrate db: %w", err)
	}

	r.log.DebugContext(ctx, "migrations applied", "count", applied)

	return applied, nil
}

// CreateUser implements Repository.CreateUser using SQLite.
func (r *SQLiteUserRepository) CreateUser(ctx context.Context, user *domain.User) (err error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (username, first_name, last_name, email, password_hash, profile_picture, is_active, created_at)"+
			" VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		user.Username,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		user.ProfilePicture.String(),
		user.IsActive,
		user.CreatedAt.Unix(),
	)
	if err != nil {
		var liteErr *sqlite.Error
		if errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			err = r.uniqueViolation(ctx, user.Username, liteErr.Error(), err)
		}

		return fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	user.ID = id

	return nil
}

// uniqueViolation maps a UNIQUE failure to the user-facing conflict. SQLite
// names only one column, and not necessarily the username when both collide,
// so a taken username is reported first.
func (r *SQLiteUserRepository) uniqueViolation(ctx context.Context, username, msg string, err error) error {
	if strings.Contains(msg, "users.username") {
		return errors.Join(domain.ErrUsernameTaken, err)
	}

	var taken bool
	if qErr := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE username = ?)", username,
	).Scan(&taken); qErr != nil {
		return errors.Join(err, fmt.Errorf("check username: %w", qErr))
	}

	switch {
	case taken:
		return errors.Join(domain.ErrUsernameTaken, err)
	case strings.Contains(msg, "users.email"):
		return errors.Join(domain.ErrEmailTaken, err)
	default:
		return err
	}
}

// GetUserByUsername implements Repository.GetUserByUsername using SQLite.
func (r *SQLiteUserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, bool, error) {
	return r.getUser(ctx, "username = ?", username)
}

// GetUserByEmail implements Repository.GetUserByEmail using SQLite.
func (r *SQLiteUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, bool, error) {
	return r.getUser(ctx, "email = ?", email)
}

// GetUserByID implements Repository.GetUserByID using SQLite.
func (r *SQLiteUserRepository) GetUserByID(ctx context.Context, id int64) (*domain.User, bool, error) {
	return r.getUser(ctx, "id = ?", id)
}

func (r *SQLiteUserRepository) getUser(ctx context.Context, where string, arg any) (*domain.User, bool, error) {
	var (
		user           domain.User
		profilePicture string
		createdAt      int64
	)

	//nolint:gosec
	err := r.db.QueryRowContext(ctx,
		"SELECT "+sqliteUserColumns+" FROM users WHERE "+where,
		arg,
	).Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&profilePicture,
		&user.IsActive,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("query user: %w", err)
	}

	user.ProfilePicture = domain.BlobID(profilePicture)
	user.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &user, true, nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteUserRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
