package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkrupp/homecase-accounts/internal/infra/config"
	"github.com/mkrupp/homecase-accounts/internal/infra/logging"
	"github.com/mkrupp/homecase-accounts/internal/repo/blob"
	"github.com/mkrupp/homecase-accounts/internal/repo/user"
	"github.com/mkrupp/homecase-accounts/internal/svc/authsvc"
)

var (
	ErrUnknownStoreDriver = errors.New("unknown store driver")
	ErrUnknownBlobDriver  = errors.New("unknown blob driver")
)

// StoreConfig selects and configures the user repository.
type StoreConfig struct {
	Driver   string                            `env:"DRIVER" default:"sqlite"` // "sqlite" or "postgres"
	SQLite   user.SQLiteUserRepositoryConfig   `envPrefix:"SQLITE_"`
	Postgres user.PostgresUserRepositoryConfig `envPrefix:"POSTGRES_"`
}

// BlobConfig selects and configures the profile picture storage.
type BlobConfig struct {
	Driver string                              `env:"DRIVER" default:"filesystem"` // "filesystem" or "s3"
	FS     blob.FileSystemBlobRepositoryConfig `envPrefix:"FS_"`
	S3     blob.S3BlobRepositoryConfig         `envPrefix:"S3_"`
}

// ServeConfig is the configuration of the serve command.
type ServeConfig struct {
	config.EnvConfig

	Log   logging.LoggerConfig        `envPrefix:"LOG_"`
	Auth  authsvc.AuthConfig          `envPrefix:"AUTH_"`
	HTTP  authsvc.HTTPTransportConfig `envPrefix:"HTTP_"`
	Store StoreConfig                 `envPrefix:"STORE_"`
	Blob  BlobConfig                  `envPrefix:"BLOB_"`
}

// MigrateConfig is the configuration of the migrate command.
type MigrateConfig struct {
	config.EnvConfig

	Log   logging.LoggerConfig `envPrefix:"LOG_"`
	Store StoreConfig          `envPrefix:"STORE_"`
}

// UserConfig is the configuration of the user commands. It needs no signing secret.
type UserConfig struct {
	config.EnvConfig

	Log    logging.LoggerConfig `envPrefix:"LOG_"`
	Argon2 authsvc.Argon2Params `envPrefix:"AUTH_ARGON2_"`
	Store  StoreConfig          `envPrefix:"STORE_"`
}

// loadConfig parses cfg from the environment and configures logging from logCfg.
func loadConfig(ctx context.Context, cfg any, logCfg *logging.LoggerConfig) error {
	if err := config.Parse(ctx, cfg, configPrefix); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	logging.Configure(ctx, *logCfg, loggerName)

	return nil
}

func (cfg StoreConfig) factory() (user.RepositoryFactory, error) {
	switch cfg.Driver {
	case "sqlite":
		return user.SQLiteUserRepositoryFactory(cfg.SQLite), nil
	case "postgres":
		return user.PostgresUserRepositoryFactory(cfg.Postgres), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStoreDriver, cfg.Driver)
	}
}

func (cfg BlobConfig) factory() (blob.RepositoryFactory, error) {
	switch cfg.Driver {
	case "filesystem":
		return blob.FileSystemBlobRepositoryFactory(cfg.FS), nil
	case "s3":
		return blob.S3BlobRepositoryFactory(cfg.S3), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlobDriver, cfg.Driver)
	}
}
