package authsvc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/homecase-accounts/internal/domain"
	"github.com/mkrupp/homecase-accounts/internal/infra/logging"
	http_ "github.com/mkrupp/homecase-accounts/internal/infra/transport/http"
	"github.com/mkrupp/homecase-accounts/internal/svc/authsvc"
	"github.com/mkrupp/homecase-accounts/internal/svc/authsvc/authclient"
)

func newTestServer(t *testing.T) (*testEnv, *httptest.Server) {
	t.Helper()

	env := newTestEnv(t)
	// Cookie jars drop cookies that expire in the past, so run on the wall clock.
	env.clock.now = time.Now().UTC().Truncate(time.Second)

	//nolint:exhaustruct
	transport := authsvc.NewHTTPTransport(env.svc, authsvc.HTTPTransportConfig{MaxBodySize: 10 << 20})
	server := httptest.NewServer(http_.NewHandler(transport, http_.NewRegistry(), logging.NewNopLogger()))
	t.Cleanup(server.Close)

	return env, server
}

func newTestClient(t *testing.T, server *httptest.Server) *authclient.HTTPClient {
	t.Helper()

	//nolint:exhaustruct
	httpClient := &http.Client{Transport: server.Client().Transport}

	client, err := authclient.NewHTTPClient(authclient.HTTPClientConfig{BaseURL: server.URL}, httpClient)
	require.NoError(t, err)

	return client
}

func statusOf(t *testing.T, err error) (int, string) {
	t.Helper()

	var statusErr *authclient.StatusError
	require.ErrorAs(t, err, &statusErr)

	return statusErr.StatusCode, statusErr.Message
}

func TestHTTPTransport_EndToEnd(t *testing.T) {
	t.Parallel()

	env, server := newTestServer(t)
	client := newTestClient(t, server)
	ctx := context.Background()
	start := env.clock.Now()

	signup, err := client.Signup(ctx, authclient.SignupParams{
		Username:        "alice",
		FirstName:       "A",
		LastName:        "B",
		Email:           "alice@x.com",
		Password:        "password1",
		ConfirmPassword: "password1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SignupResponse{
		Message:   "User registered successfully. Please log in to continue.",
		Username:  "alice",
		FirstName: "A",
		LastName:  "B",
		Email:     "alice@x.com",
	}, signup)

	_, err = client.Home(ctx)
	status, msg := statusOf(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Authentication required", msg)

	signin, err := client.Signin(ctx, "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, domain.SigninResponse{Username: "alice", Message: "User authenticated successfully."}, signin)

	home, err := client.Home(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Welcome, authenticated user!", home.Message)

	me, err := client.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "alice@x.com", me.Email)
	assert.False(t, me.ProfilePicture)
	assert.Equal(t, start.Format(time.RFC3339), me.DateJoined)

	again, err := client.Signin(ctx, "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, domain.SigninResponse{Message: "User is already authenticated."}, again)

	logout, err := client.Logout(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Logged out successfully", logout.Message)

	_, err = client.Home(ctx)
	status, _ = statusOf(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Logout always succeeds, even without a session.
	_, err = client.Logout(ctx)
	require.NoError(t, err)
}

func TestHTTPTransport_SigninErrors(t *testing.T) {
	t.Parallel()

	env, server := newTestServer(t)
	env.signupAlice(t)
	client := newTestClient(t, server)
	ctx := context.Background()

	tests := []struct {
		name       string
		username   string
		password   string
		wantStatus int
		wantMsg    string
	}{
		{"unknown user", "bob", "password1", http.StatusBadRequest, "Username doesn't exist, do SignUp."},
		{"wrong password", "alice", "password2", http.StatusUnauthorized, "Authentication failed."},
		{"missing password", "alice", "", http.StatusBadRequest, "Username and password are required."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := client.Signin(ctx, tt.username, tt.password)
			status, msg := statusOf(t, err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestHTTPTransport_SignupErrors(t *testing.T) {
	t.Parallel()

	env, server := newTestServer(t)
	env.signupAlice(t)
	client := newTestClient(t, server)

	_, err := client.Signup(context.Background(), authclient.SignupParams{
		Username:        "alice",
		FirstName:       "A",
		LastName:        "B",
		Email:           "other@x.com",
		Password:        "password1",
		ConfirmPassword: "password1",
	})
	status, msg := statusOf(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Username already exists.", msg)

	_, err = client.Signup(context.Background(), authclient.SignupParams{Username: "bob"})
	status, msg = statusOf(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "All fields are required.", msg)
}

func TestHTTPTransport_SigninCookie(t *testing.T) {
	t.Parallel()

	env, server := newTestServer(t)
	env.signupAlice(t)

	form := url.Values{"username": {"alice"}, "password": {"password1"}}
	resp, err := server.Client().PostForm(server.URL+"/signin", form)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get(http_.TraceIDHeader))

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)

	cookie := cookies[0]
	assert.Equal(t, "access_token", cookie.Name)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.False(t, cookie.Secure)
	assert.True(t, env.clock.Now().Add(time.Hour).Equal(cookie.Expires), "cookie expires with the token")

	raw := resp.Header.Get("Set-Cookie")
	assert.NotContains(t, raw, "password1")

	identity, err := env.svc.Authenticate(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Username)
}

func TestHTTPTransport_LogoutExpiresCookie(t *testing.T) {
	t.Parallel()

	_, server := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/logout", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "whatever"}) //nolint:exhaustruct

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "access_token", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
}

func TestHTTPTransport_ProtectedRejectsBadCookie(t *testing.T) {
	t.Parallel()

	_, server := newTestServer(t)

	for _, path := range []string{"/", "/me", "/me/profile_picture"} {
		req, err := http.NewRequest(http.MethodGet, server.URL+path, nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: "tampered.token.value"}) //nolint:exhaustruct

		resp, err := server.Client().Do(req)
		require.NoError(t, err)

		var body domain.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.NoError(t, resp.Body.Close())

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.Equal(t, "Authentication required", body.Error, path)
	}
}

func TestHTTPTransport_MultipartSignupWithPicture(t *testing.T) {
	t.Parallel()

	_, server := newTestServer(t)
	client := newTestClient(t, server)
	ctx := context.Background()
	picture := testPNG(t, 64, 32)

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)
	for key, value := range map[string]string{
		"username":         "carol",
		"first_name":       "Carol",
		"last_name":        "C",
		"email":            "carol@x.com",
		"password":         "password1",
		"confirm_password": "password1",
	} {
		require.NoError(t, mw.WriteField(key, value))
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="profile_picture"; filename="carol.png"`)
	header.Set("Content-Type", "image/png")

	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(picture)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := server.Client().Post(server.URL+"/signup", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, err = client.Signin(ctx, "carol", "password1")
	require.NoError(t, err)

	me, err := client.Me(ctx)
	require.NoError(t, err)
	assert.True(t, me.ProfilePicture)

	body, contentType, err := client.ProfilePicture(ctx)
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, picture, body, "narrow pictures are stored unchanged")

	_, err = client.Logout(ctx)
	require.NoError(t, err)

	_, _, err = client.ProfilePicture(ctx)
	status, _ := statusOf(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHTTPTransport_ProfilePictureNotFound(t *testing.T) {
	t.Parallel()

	env, server := newTestServer(t)
	env.signupAlice(t)
	client := newTestClient(t, server)
	ctx := context.Background()

	_, err := client.Signin(ctx, "alice", "password1")
	require.NoError(t, err)

	_, _, err = client.ProfilePicture(ctx)
	status, msg := statusOf(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Profile picture not found.", msg)
}

func TestHTTPTransport_InvalidBody(t *testing.T) {
	t.Parallel()

	_, server := newTestServer(t)

	resp, err := server.Client().Post(server.URL+"/signin", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body domain.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid request body.", body.Error)
}

func TestHTTPTransport_Metrics(t *testing.T) {
	t.Parallel()

	_, server := newTestServer(t)

	resp, err := server.Client().Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
