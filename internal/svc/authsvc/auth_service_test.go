package authsvc_test

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/homecase-accounts/internal/domain"
	"github.com/mkrupp/homecase-accounts/internal/svc/authsvc"
)

var errCreateFailed = errors.New("create failed")

func TestAuthService_Signup(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.svc.Signup(ctx, aliceSignup())
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.True(t, u.IsActive)
	assert.Empty(t, u.ProfilePicture)
	assert.NotContains(t, u.PasswordHash, "password1")

	stored, ok, err := env.svc.Credentials.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, u.ID, stored.ID)
	assert.Equal(t, "alice@x.com", stored.Email)
}

func TestAuthService_SignupValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signupAlice(t)

	tests := []struct {
		name    string
		mutate  func(req *authsvc.SignupRequest)
		wantMsg string
	}{
		{"missing username", func(r *authsvc.SignupRequest) { r.Username = "" }, "All fields are required."},
		{"missing first name", func(r *authsvc.SignupRequest) { r.FirstName = "" }, "All fields are required."},
		{"missing confirm", func(r *authsvc.SignupRequest) { r.ConfirmPassword = "" }, "All fields are required."},
		{"password mismatch", func(r *authsvc.SignupRequest) { r.ConfirmPassword = "password2" }, "Passwords do not match."},
		{
			"short password",
			func(r *authsvc.SignupRequest) { r.Password, r.ConfirmPassword = "pass123", "pass123" },
			"Password must be at least 8 characters long.",
		},
		{
			"mismatch wins over short password",
			func(r *authsvc.SignupRequest) { r.Password, r.ConfirmPassword = "a", "b" },
			"Passwords do not match.",
		},
		{"duplicate username", func(r *authsvc.SignupRequest) { r.Email = "other@x.com" }, "Username already exists."},
		{
			"duplicate username wins over duplicate email",
			func(*authsvc.SignupRequest) {},
			"Username already exists.",
		},
		{
			"username too short",
			func(r *authsvc.SignupRequest) { r.Username, r.Email = "ab", "ab@x.com" },
			"Username must be between 3 and 20 characters.",
		},
		{
			"username too long",
			func(r *authsvc.SignupRequest) { r.Username, r.Email = strings.Repeat("a", 21), "long@x.com" },
			"Username must be between 3 and 20 characters.",
		},
		{
			"username with dash",
			func(r *authsvc.SignupRequest) { r.Username, r.Email = "bad-name", "bad@x.com" },
			"Username can only contain letters, numbers, and underscores.",
		},
		{
			"username with non-ascii letters",
			func(r *authsvc.SignupRequest) { r.Username, r.Email = "jürgen", "j@x.com" },
			"Username can only contain letters, numbers, and underscores.",
		},
		{"duplicate email", func(r *authsvc.SignupRequest) { r.Username = "bob" }, "Email already exists."},
		{
			"invalid email",
			func(r *authsvc.SignupRequest) { r.Username, r.Email = "bob", "not-an-email" },
			"Invalid email format.",
		},
		{
			"first name too long",
			func(r *authsvc.SignupRequest) {
				r.Username, r.Email, r.FirstName = "bob", "bob@x.com", strings.Repeat("x", 31)
			},
			"First name should not exceed 30 characters.",
		},
		{
			"last name too long",
			func(r *authsvc.SignupRequest) {
				r.Username, r.Email, r.LastName = "bob", "bob@x.com", strings.Repeat("x", 31)
			},
			"Last name should not exceed 30 characters.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := aliceSignup()
			tt.mutate(&req)

			_, err := env.svc.Signup(context.Background(), req)
			require.Error(t, err)

			domainErr, ok := domain.AsError(err)
			require.True(t, ok, "user-facing error expected, got %v", err)
			assert.Equal(t, tt.wantMsg, domainErr.Message)
		})
	}
}

func TestAuthService_SignupLengthsCountRunes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	req := aliceSignup()
	req.FirstName = strings.Repeat("é", 30)
	req.Password = strings.Repeat("ü", 8)
	req.ConfirmPassword = req.Password

	_, err := env.svc.Signup(context.Background(), req)
	require.NoError(t, err)
}

func TestAuthService_SignupProfilePicture(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	req := aliceSignup()
	req.ProfilePicture = &domain.Upload{
		Filename:    "me.png",
		ContentType: "image/png",
		Body:        testPNG(t, 800, 400),
	}
	req.ProfilePicture.Size = int64(len(req.ProfilePicture.Body))

	u, err := env.svc.Signup(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, u.ProfilePicture)
	assert.True(t, strings.HasPrefix(u.ProfilePicture.String(), "profile_pictures/"))
	assert.True(t, strings.HasSuffix(u.ProfilePicture.String(), ".png"))

	picture, err := env.svc.ProfilePicture(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/png", picture.ContentType)

	cfg, err := png.DecodeConfig(bytes.NewReader(picture.Body))
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Width, "downscaled to the configured width")
	assert.Equal(t, 256, cfg.Height, "aspect ratio kept")
}

func TestAuthService_SignupProfilePictureRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pngBody := testPNG(t, 16, 16)

	tests := []struct {
		name    string
		upload  *domain.Upload
		wantErr error
	}{
		{
			name:    "declared gif",
			upload:  &domain.Upload{ContentType: "image/gif", Body: pngBody},
			wantErr: domain.ErrProfilePictureType,
		},
		{
			name:    "declared jpeg but png content",
			upload:  &domain.Upload{ContentType: "image/jpeg", Body: pngBody},
			wantErr: domain.ErrProfilePictureType,
		},
		{
			name:    "not an image",
			upload:  &domain.Upload{ContentType: "image/png", Body: []byte("hello world")},
			wantErr: domain.ErrProfilePictureType,
		},
		{
			name:    "truncated png",
			upload:  &domain.Upload{ContentType: "image/png", Body: pngBody[:40]},
			wantErr: domain.ErrProfilePictureType,
		},
		{
			name: "too large",
			upload: &domain.Upload{
				ContentType: "image/png",
				Body:        append(append([]byte{}, pngBody...), make([]byte, 5<<20)...),
			},
			wantErr: domain.ErrProfilePictureSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := aliceSignup()
			req.Username = strings.ReplaceAll(tt.name, " ", "_")[:min(20, len(tt.name))]
			req.Email = req.Username + "@x.com"
			req.ProfilePicture = tt.upload

			_, err := env.svc.Signup(context.Background(), req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

type failingCredentials struct {
	authsvc.CredentialStore
}

func (failingCredentials) CreateUser(context.Context, authsvc.NewUser) (*domain.User, error) {
	return nil, errCreateFailed
}

func TestAuthService_SignupRemovesPictureOnFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	svc := *env.svc
	svc.Credentials = failingCredentials{CredentialStore: env.svc.Credentials}

	req := aliceSignup()
	req.ProfilePicture = &domain.Upload{ContentType: "image/png", Body: testPNG(t, 16, 16)}

	_, err := svc.Signup(ctx, req)
	require.ErrorIs(t, err, errCreateFailed)

	var files []string

	err = filepath.WalkDir(filepath.Join(env.dir, "blob"), func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files = append(files, path)
		}

		return err
	})
	require.NoError(t, err)
	assert.Empty(t, files, "orphaned profile picture removed")
}

func TestAuthService_Signin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signupAlice(t)
	ctx := context.Background()

	t.Run("missing fields", func(t *testing.T) {
		t.Parallel()

		_, err := env.svc.Signin(ctx, "", "password1", "")
		require.ErrorIs(t, err, domain.ErrCredentialsRequired)

		_, err = env.svc.Signin(ctx, "alice", "", "")
		require.ErrorIs(t, err, domain.ErrCredentialsRequired)
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()

		_, err := env.svc.Signin(ctx, "bob", "password1", "")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()

		_, err := env.svc.Signin(ctx, "alice", "password2", "")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		result, err := env.svc.Signin(ctx, "alice", "password1", "")
		require.NoError(t, err)
		assert.False(t, result.AlreadyAuthenticated)
		assert.Equal(t, "alice", result.User.Username)
		assert.Equal(t, testStart.Add(time.Hour), result.ExpiresAt)

		identity, err := env.svc.Authenticate(ctx, result.Token)
		require.NoError(t, err)
		assert.Equal(t, result.User.ID, identity.UserID)
	})
}

func TestAuthService_SigninTrimsWhitespace(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signupAlice(t)
	ctx := context.Background()

	result, err := env.svc.Signin(ctx, " alice\t", "  password1\n", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", result.User.Username)

	_, err = env.svc.Signin(ctx, "alice", "   ", "")
	require.ErrorIs(t, err, domain.ErrCredentialsRequired)
}

func TestAuthService_SigninAlreadyAuthenticated(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signupAlice(t)
	ctx := context.Background()

	first, err := env.svc.Signin(ctx, "alice", "password1", "")
	require.NoError(t, err)

	env.clock.Advance(10 * time.Minute)

	second, err := env.svc.Signin(ctx, "alice", "password1", first.Token)
	require.NoError(t, err)
	assert.True(t, second.AlreadyAuthenticated)
	assert.Empty(t, second.Token, "no new token issued")

	// Credentials are checked before the cookie.
	_, err = env.svc.Signin(ctx, "alice", "wrong-password", first.Token)
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	// An expired cookie gets a fresh token.
	env.clock.Advance(time.Hour)

	third, err := env.svc.Signin(ctx, "alice", "password1", first.Token)
	require.NoError(t, err)
	assert.False(t, third.AlreadyAuthenticated)
	assert.NotEqual(t, first.Token, third.Token)

	// A garbage cookie is ignored.
	fourth, err := env.svc.Signin(ctx, "alice", "password1", "garbage")
	require.NoError(t, err)
	assert.False(t, fourth.AlreadyAuthenticated)
}

func TestAuthService_SignoutDoesNotRevokeToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signupAlice(t)
	ctx := context.Background()

	result, err := env.svc.Signin(ctx, "alice", "password1", "")
	require.NoError(t, err)

	env.svc.Signout(ctx, result.Token)
	env.svc.Signout(ctx, "")
	env.svc.Signout(ctx, "garbage")

	// Tokens are stateless: a replayed token stays valid until it expires.
	_, err = env.svc.Authenticate(ctx, result.Token)
	require.NoError(t, err)

	env.clock.Advance(time.Hour)

	_, err = env.svc.Authenticate(ctx, result.Token)
	require.ErrorIs(t, err, domain.ErrInvalidAuthToken)
}

func TestAuthService_Authenticate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	_, err := env.svc.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrNoAuthToken)

	_, err = env.svc.Authenticate(context.Background(), "garbage")
	require.ErrorIs(t, err, domain.ErrInvalidAuthToken)
}

func TestAuthService_ProfilePictureMissing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signupAlice(t)
	ctx := context.Background()

	u, ok, err := env.svc.Credentials.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.svc.ProfilePicture(ctx, u.ID)
	require.ErrorIs(t, err, domain.ErrBlobNotFound)
}
