package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mkrupp/homecase-accounts/internal/domain"
	"github.com/mkrupp/homecase-accounts/internal/infra/logging"
)

var ErrBytesWrittenMismatch = errors.New("bytes written mismatch")

const (
	dirPrefixLength = 2 // 16^2 = 256 directories
	dirPrefixDepth  = 2 // 256^2 = 65,536 directories
	idMinLength     = dirPrefixDepth * dirPrefixLength
)

// FileSystemBlobRepositoryConfig holds configuration for the filesystem-based blob repository.
type FileSystemBlobRepositoryConfig struct {
	// Basedir is the root directory for blob storage
	Basedir string `env:"BASEDIR" default:"var/storage/blob"`
}

// FileSystemBlobRepositoryFactory creates a factory function that returns a new FileSystemRepository.
// The factory function implements the RepositoryFactory type.
func FileSystemBlobRepositoryFactory(cfg FileSystemBlobRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		return NewFileSystemBlobRepository(ctx, cfg)
	}
}

// NewFileSystemBlobRepository creates a new FileSystemRepository rooted at cfg.Basedir.
// Returns an error if the base directory cannot be created.
func NewFileSystemBlobRepository(ctx context.Context, cfg FileSystemBlobRepositoryConfig) (*FileSystemRepository, error) {
	log := logging.GetLogger("repo.blob.filesystem_repository").With(
		logging.Group("repo", "basedir", cfg.Basedir),
	)

	repo := &FileSystemRepository{
		cfg: cfg,
		log: log,
	}

	if err := os.MkdirAll(cfg.Basedir, 0o750); err != nil {
		log.ErrorContext(ctx, "init storage", "error", err)

		return nil, fmt.Errorf("mkdir all: %w", err)
	}

	return repo, nil
}

// FileSystemRepository implements Repository using the local filesystem.
// It organizes blobs in a directory hierarchy to improve performance with large numbers of files.
type FileSystemRepository struct {
	cfg FileSystemBlobRepositoryConfig
	log logging.Logger
}

var _ Repository = (*FileSystemRepository)(nil)

// GetFilename returns the full filesystem path for a blob with the given ID.
//
// The directory part of the ID is kept and the base name is sharded by its
// leading characters, e.g. profile_pictures/01/93/0193a4...png.
func (fsRepo *FileSystemRepository) GetFilename(id domain.BlobID) string {
	dir, base := path.Split(id.String())

	// Pad short names so every blob gets the full shard depth
	shardKey := strings.ReplaceAll(fmt.Sprintf("%*s", idMinLength, base), " ", "0")

	parts := []string{fsRepo.cfg.Basedir, filepath.FromSlash(dir)}
	for i := 0; i < idMinLength; i += dirPrefixLength {
		parts = append(parts, shardKey[i:i+dirPrefixLength])
	}

	return filepath.Join(append(parts, base)...)
}

// Exists implements Repository.Exists.
func (fsRepo *FileSystemRepository) Exists(_ context.Context, id domain.BlobID) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}

	_, err := os.Stat(fsRepo.GetFilename(id))

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat: %w", err)
	}
}

// Store implements Repository.Store. The content is written to a temporary
// file and renamed into place so readers never see a partial blob.
func (fsRepo *FileSystemRepository) Store(ctx context.Context, blob *domain.Blob) (err error) {
	if err := validateID(blob.ID); err != nil {
		return err
	}

	filename := fsRepo.GetFilename(blob.ID)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", blob.ID, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "blob store failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob stored", "size", blob.Size())
		}
	}()

	if err := os.MkdirAll(filepath.Dir(filename), 0o750); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	file, err := os.CreateTemp(filepath.Dir(filename), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	defer func() {
		if err != nil {
			_ = os.Remove(file.Name())
		}
	}()

	bytes, err := blob.WriteTo(file)
	if err == nil && bytes != blob.Size() {
		err = fmt.Errorf("%w: expected %d, got %d", ErrBytesWrittenMismatch, blob.Size(), bytes)
	}

	if err == nil {
		err = file.Sync()
	}

	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	if err := os.Rename(file.Name(), filename); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

// Fetch implements Repository.Fetch. The content type is detected from the stored bytes.
func (fsRepo *FileSystemRepository) Fetch(ctx context.Context, id domain.BlobID) (blob *domain.Blob, err error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	filename := fsRepo.GetFilename(id)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", id, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "blob fetch failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob fetched")
		}
	}()

	body, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = errors.Join(domain.ErrBlobNotFound, err)
		}

		return nil, fmt.Errorf("read: %w", err)
	}

	return domain.NewBlob(id, mimetype.Detect(body).String(), body), nil
}

// Delete implements Repository.Delete.
func (fsRepo *FileSystemRepository) Delete(ctx context.Context, id domain.BlobID) (err error) {
	if err := validateID(id); err != nil {
		return err
	}

	filename := fsRepo.GetFilename(id)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", id, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "blob delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob deleted")
		}
	}()

	if err := os.Remove(filename); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = errors.Join(domain.ErrBlobNotFound, err)
		}

		return fmt.Errorf("remove: %w", err)
	}

	return nil
}
