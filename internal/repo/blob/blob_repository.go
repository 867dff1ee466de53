package blob

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/mkrupp/homecase-accounts/internal/domain"
)

// ErrInvalidBlobID is returned for IDs that are empty, absolute or escape the store.
var ErrInvalidBlobID = errors.New("invalid blob id")

// Repository defines the interface for blob storage operations.
type Repository interface {
	// Exists checks if a blob with the given ID exists.
	Exists(ctx context.Context, id domain.BlobID) (bool, error)

	// Store persists a blob in the repository, replacing any previous content.
	// Returns an error if the operation fails.
	Store(ctx context.Context, blob *domain.Blob) error

	// Fetch retrieves a blob by its ID.
	// Returns ErrBlobNotFound if the blob does not exist.
	Fetch(ctx context.Context, id domain.BlobID) (*domain.Blob, error)

	// Delete removes a blob with the given ID.
	// Returns ErrBlobNotFound if the blob doesn't exist.
	Delete(ctx context.Context, id domain.BlobID) error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func(ctx context.Context) (Repository, error)

func validateID(id domain.BlobID) error {
	key := id.String()
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key || strings.HasPrefix(key, "..") {
		return ErrInvalidBlobID
	}

	return nil
}
