package blob

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mkrupp/homecase-accounts/internal/domain"
	"github.com/mkrupp/homecase-accounts/internal/infra/logging"
)

// S3BlobRepositoryConfig holds configuration for the S3-compatible blob repository.
type S3BlobRepositoryConfig struct {
	Bucket string `env:"BUCKET" default:"accounts"`
	Region string `env:"REGION" default:"us-east-1"`
	// Prefix is prepended to every object key
	Prefix string `env:"PREFIX" default:""`
	// Endpoint overrides the AWS endpoint, e.g. for MinIO
	Endpoint     string `env:"ENDPOINT" default:""`
	UsePathStyle bool   `env:"USE_PATH_STYLE" default:"false"`
	// AccessKeyID and SecretAccessKey are optional; the default credential chain is used otherwise
	AccessKeyID     string `env:"ACCESS_KEY_ID" default:""`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY" default:""`
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(
		ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options),
	) (*s3.DeleteObjectOutput, error)
}

// S3Repository implements Repository on top of an S3 bucket.
type S3Repository struct {
	client s3API
	cfg    S3BlobRepositoryConfig
	log    logging.Logger
}

var _ Repository = (*S3Repository)(nil)

// S3BlobRepositoryFactory creates a factory function that returns a new S3Repository.
func S3BlobRepositoryFactory(cfg S3BlobRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		return NewS3BlobRepository(ctx, cfg)
	}
}

// NewS3BlobRepository creates an S3 client from cfg and the default AWS configuration chain.
func NewS3BlobRepository(ctx context.Context, cfg S3BlobRepositoryConfig) (*S3Repository, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}

	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}

		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3BlobRepository(client, cfg), nil
}

func newS3BlobRepository(client s3API, cfg S3BlobRepositoryConfig) *S3Repository {
	return &S3Repository{
		client: client,
		cfg:    cfg,
		log: logging.GetLogger("repo.blob.s3_repository").With(
			logging.Group("repo", "bucket", cfg.Bucket, "prefix", cfg.Prefix),
		),
	}
}

func (r *S3Repository) key(id domain.BlobID) string {
	return path.Join(r.cfg.Prefix, id.String())
}

// Exists implements Repository.Exists.
func (r *S3Repository) Exists(ctx context.Context, id domain.BlobID) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}

	_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{ //nolint:exhaustruct
		Bucket: aws.String(r.cfg.Bucket),
		Key:    aws.String(r.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}

		return false, fmt.Errorf("head object: %w", err)
	}

	return true, nil
}

// Store implements Repository.Store.
func (r *S3Repository) Store(ctx context.Context, blob *domain.Blob) (err error) {
	if err := validateID(blob.ID); err != nil {
		return err
	}

	defer func() {
		log := r.log.With(logging.Group("blob", "id", blob.ID))
		if err != nil {
			log.ErrorContext(ctx, "blob store failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob stored", "size", blob.Size())
		}
	}()

	input := &s3.PutObjectInput{ //nolint:exhaustruct
		Bucket:        aws.String(r.cfg.Bucket),
		Key:           aws.String(r.key(blob.ID)),
		Body:          blob.Read(),
		ContentLength: aws.Int64(blob.Size()),
	}
	if blob.ContentType != "" {
		input.ContentType = aws.String(blob.ContentType)
	}

	if _, err := r.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	return nil
}

// Fetch implements Repository.Fetch.
func (r *S3Repository) Fetch(ctx context.Context, id domain.BlobID) (blob *domain.Blob, err error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	defer func() {
		log := r.log.With(logging.Group("blob", "id", id))
		if err != nil {
			log.ErrorContext(ctx, "blob fetch failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob fetched")
		}
	}()

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{ //nolint:exhaustruct
		Bucket: aws.String(r.cfg.Bucket),
		Key:    aws.String(r.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			err = errors.Join(domain.ErrBlobNotFound, err)
		}

		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()

	blob = domain.NewBlob(id, aws.ToString(out.ContentType), nil)
	if _, err := blob.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}

	return blob, nil
}

// Delete implements Repository.Delete. S3 deletes are idempotent, so the
// object is checked first to report missing blobs.
func (r *S3Repository) Delete(ctx context.Context, id domain.BlobID) (err error) {
	defer func() {
		log := r.log.With(logging.Group("blob", "id", id))
		if err != nil {
			log.ErrorContext(ctx, "blob delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob deleted")
		}
	}()

	exists, err := r.Exists(ctx, id)
	if err != nil {
		return err
	} else if !exists {
		return domain.ErrBlobNotFound
	}

	if _, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{ //nolint:exhaustruct
		Bucket: aws.String(r.cfg.Bucket),
		Key:    aws.String(r.key(id)),
	}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	return nil
}

func isNotFound(err error) bool {
	var (
		noSuchKey *types.NoSuchKey
		notFound  *types.NotFound
	)

	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
