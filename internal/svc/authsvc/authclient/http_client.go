package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"

	"github.com/mkrupp/homecase-accounts/internal/domain"
	context_ "github.com/mkrupp/homecase-accounts/internal/infra/context"
	"github.com/mkrupp/homecase-accounts/internal/infra/logging"
)

const TraceIDHeader = "X-Request-ID"

// HTTPClientConfig holds configuration for the HTTP account client.
type HTTPClientConfig struct {
	// BaseURL is the root of the account service
	BaseURL string `env:"BASE_URL" default:"http://localhost:8080"`
}

// HTTPClient implements AuthClient over HTTP with a cookie jar holding the session.
type HTTPClient struct {
	httpClient *http.Client
	log        logging.Logger
	cfg        HTTPClientConfig
}

var _ AuthClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTPClient with the given configuration.
// If httpClient is nil, a client with a fresh cookie jar is used. A client
// without a jar gets one, since the session lives in a cookie.
func NewHTTPClient(cfg HTTPClientConfig, httpClient *http.Client) (*HTTPClient, error) {
	if httpClient == nil {
		httpClient = &http.Client{} //nolint:exhaustruct
	}

	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("new cookie jar: %w", err)
		}

		httpClient.Jar = jar
	}

	return &HTTPClient{
		httpClient: httpClient,
		log:        logging.GetLogger("svc.authsvc.authclient.http_client"),
		cfg:        cfg,
	}, nil
}

// Signup implements AuthClient.Signup.
func (c *HTTPClient) Signup(ctx context.Context, params SignupParams) (resp domain.SignupResponse, err error) {
	err = c.do(ctx, http.MethodPost, "/signup", params, &resp)

	return resp, err
}

// Signin implements AuthClient.Signin. The session cookie is kept in the jar.
func (c *HTTPClient) Signin(ctx context.Context, username, password string) (resp domain.SigninResponse, err error) {
	body := map[string]string{"username": username, "password": password}
	err = c.do(ctx, http.MethodPost, "/signin", body, &resp)

	return resp, err
}

// Logout implements AuthClient.Logout.
func (c *HTTPClient) Logout(ctx context.Context) (resp domain.MessageResponse, err error) {
	err = c.do(ctx, http.MethodPost, "/logout", nil, &resp)

	return resp, err
}

// Home implements AuthClient.Home.
func (c *HTTPClient) Home(ctx context.Context) (resp domain.MessageResponse, err error) {
	err = c.do(ctx, http.MethodGet, "/", nil, &resp)

	return resp, err
}

// Me implements AuthClient.Me.
func (c *HTTPClient) Me(ctx context.Context) (resp domain.UserResponse, err error) {
	err = c.do(ctx, http.MethodGet, "/me", nil, &resp)

	return resp, err
}

// ProfilePicture implements AuthClient.ProfilePicture. Returns the image bytes and content type.
func (c *HTTPClient) ProfilePicture(ctx context.Context) ([]byte, string, error) {
	var (
		body        []byte
		contentType string
	)

	err := c.roundTrip(ctx, http.MethodGet, "/me/profile_picture", nil, func(resp *http.Response) error {
		var err error

		contentType = resp.Header.Get("Content-Type")
		if body, err = io.ReadAll(resp.Body); err != nil {
			return fmt.Errorf("read body: %w", err)
		}

		return nil
	})

	return body, contentType, err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	return c.roundTrip(ctx, method, path, body, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}

		return nil
	})
}

func (c *HTTPClient) roundTrip(
	ctx context.Context,
	method, path string,
	body any,
	handle func(*http.Response) error,
) (err error) {
	log := c.log.With(logging.Group("http", "method", method, "path", path))

	defer func() {
		if err != nil {
			log.DebugContext(ctx, "request failed", "error", err)
		} else {
			log.DebugContext(ctx, "request done")
		}
	}()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(TraceIDHeader, traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var errResp domain.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)

		return &StatusError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	return handle(resp)
}
