package authsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mkrupp/homecase-accounts/internal/domain"
	"github.com/mkrupp/homecase-accounts/internal/infra/logging"
)

var (
	// ErrUnsupportedAlgorithm is returned for signing algorithms other than HS256, HS384 and HS512.
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	// ErrEmptySecret is returned when no signing secret is configured.
	ErrEmptySecret = errors.New("empty signing secret")
)

// UserFinder resolves the subject of a token.
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*domain.User, bool, error)
}

type sessionClaims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HMAC-signed session tokens.
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
	users  UserFinder
	log    logging.Logger
}

// NewTokenService creates a token service signing with secret and the named algorithm.
func NewTokenService(secret, algorithm string, users UserFinder) (*TokenService, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}

	return &TokenService{
		secret: []byte(secret),
		method: method,
		users:  users,
		log:    logging.GetLogger("svc.authsvc.token_service"),
	}, nil
}

// Issue creates a token for user valid from now until now+ttl.
// Instants are truncated to whole seconds.
func (s *TokenService) Issue(user *domain.User, now time.Time, ttl time.Duration) (string, time.Time, error) {
	issuedAt := now.Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)

	//nolint:exhaustruct
	claims := sessionClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return token, expiresAt, nil
}

// Verify checks the token's signature, algorithm and validity window at now
// and that its user still exists and is active. A token is accepted iff now < exp.
// Every rejection is reported as domain.ErrInvalidAuthToken.
func (s *TokenService) Verify(ctx context.Context, token string, now time.Time) (domain.AuthToken, error) {
	var claims sessionClaims

	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		s.log.DebugContext(ctx, "token rejected", "reason", err)

		return domain.AuthToken{}, domain.ErrInvalidAuthToken
	}

	if s.users != nil {
		u, ok, err := s.users.FindByID(ctx, claims.UserID)
		if err != nil {
			return domain.AuthToken{}, fmt.Errorf("find token user: %w", err)
		} else if !ok || !u.IsActive || u.Username != claims.Username {
			s.log.DebugContext(ctx, "token rejected", "reason", "unknown or inactive user",
				logging.Group("user", "id", claims.UserID))

			return domain.AuthToken{}, domain.ErrInvalidAuthToken
		}
	}

	identity := domain.AuthToken{
		UserID:    claims.UserID,
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt.UTC(),
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.UTC()
	}

	return identity, nil
}
