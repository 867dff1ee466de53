package authsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkrupp/homecase-accounts/internal/domain"
	"github.com/mkrupp/homecase-accounts/internal/infra/logging"
	"github.com/mkrupp/homecase-accounts/internal/repo/blob"
	"github.com/mkrupp/homecase-accounts/internal/repo/user"
)

const profilePictureDir = "profile_pictures"

// SigninResult is the outcome of a successful signin.
type SigninResult struct {
	User                 *domain.User // Nil when AlreadyAuthenticated
	Token                string
	ExpiresAt            time.Time
	AlreadyAuthenticated bool
}

// AuthService provides account registration and session authentication.
// It handles signup, signin, signout and token verification.
type AuthService struct {
	Config      AuthConfig
	Credentials CredentialStore
	Tokens      *TokenService
	Blobs       blob.Repository
	Metrics     *AuthMetrics
	Log         logging.Logger
	Now         func() time.Time

	closers []func() error
}

// NewAuthService creates a new AuthService from the given repository factories and configuration.
// Returns an error if the token service cannot be configured or a repository cannot be created.
func NewAuthService(
	ctx context.Context,
	userRepoFactory user.RepositoryFactory,
	blobRepoFactory blob.RepositoryFactory,
	metrics *AuthMetrics,
	cfg AuthConfig,
) (*AuthService, error) {
	userRepo, err := userRepoFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("new user repo: %w", err)
	}

	blobRepo, err := blobRepoFactory(ctx)
	if err != nil {
		_ = userRepo.Close()

		return nil, fmt.Errorf("new blob repo: %w", err)
	}

	svc, err := newAuthService(NewRepoCredentialStore(userRepo, NewArgon2idHasher(cfg.Argon2)), blobRepo, metrics, cfg)
	if err != nil {
		_ = userRepo.Close()

		return nil, err
	}

	svc.closers = append(svc.closers, userRepo.Close)

	return svc, nil
}

func newAuthService(
	credentials CredentialStore,
	blobs blob.Repository,
	metrics *AuthMetrics,
	cfg AuthConfig,
) (*AuthService, error) {
	tokens, err := NewTokenService(cfg.SecretKey, cfg.Algorithm, credentials)
	if err != nil {
		return nil, fmt.Errorf("new token service: %w", err)
	}

	return &AuthService{
		Config:      cfg,
		Credentials: credentials,
		Tokens:      tokens,
		Blobs:       blobs,
		Metrics:     metrics,
		Log:         logging.GetLogger("svc.authsvc.auth_service"),
		Now:         time.Now,
	}, nil
}

// Signup validates the registration form and creates the account. An attached
// profile picture is stored first and removed again if the account cannot be created.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (_ *domain.User, err error) {
	log := s.Log.With(logging.Group("user", "username", req.Username))

	defer func() {
		switch {
		case err == nil:
			s.Metrics.signup(outcomeSuccess)
			log.InfoContext(ctx, "user signed up")
		case isUserError(err):
			s.Metrics.signup(outcomeRejected)
			log.InfoContext(ctx, "signup rejected", "reason", err.Error())
		default:
			s.Metrics.signup(outcomeError)
			log.ErrorContext(ctx, "signup failed", "error", err)
		}
	}()

	pictureType, err := ValidateSignup(ctx, s.Credentials, req, s.Config.ProfilePictureMaxSize)
	if err != nil {
		return nil, err
	}

	var pictureID domain.BlobID

	if req.ProfilePicture != nil {
		if pictureID, err = s.storeProfilePicture(ctx, req.ProfilePicture.Body, pictureType); err != nil {
			return nil, err
		}
	}

	u, err := s.Credentials.CreateUser(ctx, NewUser{
		Username:       req.Username,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Password:       req.Password,
		ProfilePicture: pictureID,
		CreatedAt:      s.Now().UTC().Truncate(time.Second),
	})
	if err != nil {
		if pictureID != "" {
			if delErr := s.Blobs.Delete(ctx, pictureID); delErr != nil {
				log.WarnContext(ctx, "remove orphaned profile picture", "error", delErr)
			}
		}

		return nil, fmt.Errorf("create user: %w", err)
	}

	return u, nil
}

func (s *AuthService) storeProfilePicture(ctx context.Context, body []byte, mimeType string) (domain.BlobID, error) {
	prepared, ext, err := prepareProfilePicture(body, mimeType, s.Config.ProfilePictureMaxWidth)
	if err != nil {
		return "", fmt.Errorf("prepare profile picture: %w", err)
	}

	uid, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("new blob id: %w", err)
	}

	id := domain.BlobID(profilePictureDir + "/" + strings.ReplaceAll(uid.String(), "-", "") + ext)

	if err := s.Blobs.Store(ctx, domain.NewBlob(id, mimeType, prepared)); err != nil {
		return "", fmt.Errorf("store profile picture: %w", err)
	}

	return id, nil
}

// Signin verifies the credentials and issues a new session token, unless
// cookieToken already carries a valid one. The expiry of an existing token is not refreshed.
// Surrounding whitespace is trimmed from username and password.
func (s *AuthService) Signin(ctx context.Context, username, password, cookieToken string) (_ SigninResult, err error) {
	username, password = strings.TrimSpace(username), strings.TrimSpace(password)

	log := s.Log.With(logging.Group("user", "username", username))

	var result SigninResult

	defer func() {
		switch {
		case err == nil && result.AlreadyAuthenticated:
			s.Metrics.signin(outcomeAlreadyActive)
			log.DebugContext(ctx, "user already authenticated")
		case err == nil:
			s.Metrics.signin(outcomeSuccess)
			log.InfoContext(ctx, "user signed in", "exp", result.ExpiresAt.UTC().Format(time.RFC3339))
		case isUserError(err):
			s.Metrics.signin(outcomeRejected)
			log.InfoContext(ctx, "signin rejected", "reason", err.Error())
		default:
			s.Metrics.signin(outcomeError)
			log.ErrorContext(ctx, "signin failed", "error", err)
		}
	}()

	if username == "" || password == "" {
		return result, domain.ErrCredentialsRequired
	}

	if _, exists, err := s.Credentials.FindByUsername(ctx, username); err != nil {
		return result, fmt.Errorf("find user: %w", err)
	} else if !exists {
		return result, domain.ErrUserNotFound
	}

	u, ok, err := s.Credentials.VerifyCredentials(ctx, username, password)
	if err != nil {
		return result, fmt.Errorf("verify credentials: %w", err)
	} else if !ok {
		return result, domain.ErrInvalidCredentials
	}

	now := s.Now()

	if cookieToken != "" {
		if _, err := s.Tokens.Verify(ctx, cookieToken, now); err == nil {
			result.AlreadyAuthenticated = true

			return result, nil
		} else if !errors.Is(err, domain.ErrInvalidAuthToken) {
			return result, fmt.Errorf("verify cookie token: %w", err)
		}
	}

	token, expiresAt, err := s.Tokens.Issue(u, now, s.Config.TokenTTL)
	if err != nil {
		return result, fmt.Errorf("issue token: %w", err)
	}

	result.User = u
	result.Token = token
	result.ExpiresAt = expiresAt

	return result, nil
}

// Signout ends a session on the client side only; there is no server-side
// state to tear down. The identity is logged if the token still verifies.
func (s *AuthService) Signout(ctx context.Context, token string) {
	if token == "" {
		s.Log.DebugContext(ctx, "signout without session")

		return
	}

	identity, err := s.Tokens.Verify(ctx, token, s.Now())
	if err != nil {
		s.Log.DebugContext(ctx, "signout with invalid session")

		return
	}

	s.Log.InfoContext(ctx, "user signed out", logging.Group("user",
		"id", identity.UserID,
		"username", identity.Username,
	))
}

// Authenticate verifies a session token at the current time.
// Returns domain.ErrInvalidAuthToken if the token is not accepted.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.AuthToken, error) {
	if token == "" {
		return domain.AuthToken{}, domain.ErrNoAuthToken
	}

	return s.Tokens.Verify(ctx, token, s.Now())
}

// Profile returns the account of an authenticated user.
func (s *AuthService) Profile(ctx context.Context, id int64) (*domain.User, error) {
	u, ok, err := s.Credentials.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	} else if !ok {
		return nil, domain.ErrInvalidAuthToken
	}

	return u, nil
}

// ProfilePicture returns the stored profile picture of the user.
// Returns domain.ErrBlobNotFound if the user has none.
func (s *AuthService) ProfilePicture(ctx context.Context, id int64) (*domain.Blob, error) {
	u, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.ProfilePicture == "" {
		return nil, domain.ErrBlobNotFound
	}

	picture, err := s.Blobs.Fetch(ctx, u.ProfilePicture)
	if err != nil {
		return nil, fmt.Errorf("fetch profile picture: %w", err)
	}

	return picture, nil
}

// Close releases resources held by the service, such as database connections.
// Returns an error if cleanup fails.
func (s *AuthService) Close() error {
	var errs []error

	for _, closer := range s.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}

func isUserError(err error) bool {
	_, ok := domain.AsError(err)

	return ok
}
