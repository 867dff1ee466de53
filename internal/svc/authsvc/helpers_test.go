package authsvc_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkrupp/homecase-accounts/internal/repo/blob"
	"github.com/mkrupp/homecase-accounts/internal/repo/user"
	"github.com/mkrupp/homecase-accounts/internal/svc/authsvc"
)

const testSecret = "test-secret-key-with-enough-entropy"

//nolint:gochecknoglobals
var testStart = time.Unix(1700000000, 0).UTC()

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func testConfig() authsvc.AuthConfig {
	return authsvc.AuthConfig{
		SecretKey:  testSecret,
		Algorithm:  "HS256",
		TokenTTL:   time.Hour,
		CookieName: "access_token",
		Argon2: authsvc.Argon2Params{
			Time:    1,
			Memory:  64,
			Threads: 1,
		},
		ProfilePictureMaxSize:  5 << 20,
		ProfilePictureMaxWidth: 512,
	}
}

type testEnv struct {
	svc   *authsvc.AuthService
	clock *testClock
	dir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()
	dir := t.TempDir()

	blobs, err := blob.NewFileSystemBlobRepository(ctx, blob.FileSystemBlobRepositoryConfig{
		Basedir: filepath.Join(dir, "blob"),
	})
	require.NoError(t, err)

	svc, err := authsvc.NewAuthService(ctx,
		user.SQLiteUserRepositoryFactory(user.SQLiteUserRepositoryConfig{
			DatabasePath: filepath.Join(dir, "users.db"),
			BusyTimeout:  5 * time.Second,
			AutoMigrate:  true,
		}),
		func(context.Context) (blob.Repository, error) { return blobs, nil },
		nil,
		testConfig(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	clock := &testClock{now: testStart}
	svc.Now = clock.Now

	return &testEnv{svc: svc, clock: clock, dir: dir}
}

func aliceSignup() authsvc.SignupRequest {
	return authsvc.SignupRequest{
		Username:        "alice",
		FirstName:       "A",
		LastName:        "B",
		Email:           "alice@x.com",
		Password:        "password1",
		ConfirmPassword: "password1",
	}
}

func (env *testEnv) signupAlice(t *testing.T) {
	t.Helper()

	_, err := env.svc.Signup(context.Background(), aliceSignup())
	require.NoError(t, err)
}

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255}) //nolint:gosec
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return buf.Bytes()
}
