package authsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/mkrupp/homecase-accounts/internal/domain"
	context_ "github.com/mkrupp/homecase-accounts/internal/infra/context"
	"github.com/mkrupp/homecase-accounts/internal/infra/logging"
	http_ "github.com/mkrupp/homecase-accounts/internal/infra/transport/http"
)

const (
	messageSignedUp       = "User registered successfully. Please log in to continue."
	messageSignedIn       = "User authenticated successfully."
	messageAlreadySigned  = "User is already authenticated."
	messageLoggedOut      = "Logged out successfully"
	messageWelcome        = "Welcome, authenticated user!"
	multipartMemoryBuffer = 1 << 20
)

var (
	// ErrInvalidBody is returned when the request body cannot be decoded.
	ErrInvalidBody = domain.NewError(domain.ErrValidation, "Invalid request body.")
	// ErrBodyTooLarge is returned when the request body exceeds the configured limit.
	ErrBodyTooLarge = domain.NewError(domain.ErrValidation, "Request body too large.")
	// ErrNoProfilePicture is returned when the user has no stored profile picture.
	ErrNoProfilePicture = domain.NewError(domain.ErrNotFound, "Profile picture not found.")
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig

	// MaxBodySize caps request bodies in bytes
	MaxBodySize int64 `env:"MAX_BODY_SIZE" default:"10485760"` // 10 MiB
}

// HTTPTransport handles HTTP requests for the account service.
// It provides endpoints for signup, signin, logout and the protected resources.
type HTTPTransport struct {
	authSvc *AuthService
	log     logging.Logger
	cfg     HTTPTransportConfig
	mux     *http.ServeMux
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// It requires an AuthService for handling authentication operations.
func NewHTTPTransport(authSvc *AuthService, cfg HTTPTransportConfig) *HTTPTransport {
	ht := &HTTPTransport{
		authSvc: authSvc,
		log:     logging.GetLogger("svc.authsvc.http_transport"),
		cfg:     cfg,
		mux:     http.NewServeMux(),
	}

	protected := func(h http.HandlerFunc) http.Handler {
		return http_.AuthorizingMiddleware(h, authSvc, authSvc.Config.CookieName, ht.log)
	}

	ht.mux.HandleFunc("POST /signup", ht.HandleSignup)
	ht.mux.HandleFunc("POST /signin", ht.HandleSignin)
	ht.mux.HandleFunc("POST /logout", ht.HandleLogout)
	ht.mux.Handle("GET /{$}", protected(ht.HandleHome))
	ht.mux.Handle("GET /me", protected(ht.HandleProfile))
	ht.mux.Handle("GET /me/profile_picture", protected(ht.HandleProfilePicture))

	return ht
}

// ServeHTTP implements http.Handler and dispatches to the account service routes:
// - POST /signup: Register a new user
// - POST /signin: Verify credentials and set the session cookie
// - POST /logout: Expire the session cookie
// - GET /: Protected welcome message
// - GET /me, GET /me/profile_picture: Protected profile of the session user.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

// HandleSignup processes registration requests.
// Expects fields: username, first_name, last_name, email, password, confirm_password
// and optionally a multipart profile_picture file.
func (ht *HTTPTransport) HandleSignup(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleSignup(w, r)
}

func (ht *HTTPTransport) handleSignup(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer ht.logResult(r.Context(), log, "signup", &err)

	form, err := ht.parseForm(w, r)
	if err != nil {
		return ht.fail(w, err)
	}

	req := SignupRequest{
		Username:        form.value("username"),
		FirstName:       form.value("first_name"),
		LastName:        form.value("last_name"),
		Email:           form.value("email"),
		Password:        form.value("password"),
		ConfirmPassword: form.value("confirm_password"),
		ProfilePicture:  form.upload,
	}

	u, err := ht.authSvc.Signup(r.Context(), req)
	if err != nil {
		return ht.fail(w, err)
	}

	return http_.WriteJSON(w, http.StatusCreated, domain.SignupResponse{
		Message:   messageSignedUp,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	})
}

// HandleSignin processes signin requests.
// Expects fields: username, password.
// Sets the session cookie on success.
func (ht *HTTPTransport) HandleSignin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleSignin(w, r)
}

func (ht *HTTPTransport) handleSignin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer ht.logResult(r.Context(), log, "signin", &err)

	form, err := ht.parseForm(w, r)
	if err != nil {
		return ht.fail(w, err)
	}

	var cookieToken string
	if cookie, err := r.Cookie(ht.authSvc.Config.CookieName); err == nil {
		cookieToken = cookie.Value
	}

	result, err := ht.authSvc.Signin(r.Context(), form.value("username"), form.value("password"), cookieToken)
	if err != nil {
		return ht.fail(w, err)
	}

	if result.AlreadyAuthenticated {
		return http_.WriteJSON(w, http.StatusOK, domain.SigninResponse{Message: messageAlreadySigned})
	}

	//nolint:exhaustruct
	http.SetCookie(w, &http.Cookie{
		Name:     ht.authSvc.Config.CookieName,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.ExpiresAt,
		HttpOnly: true,
		Secure:   ht.authSvc.Config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	return http_.WriteJSON(w, http.StatusOK, domain.SigninResponse{
		Username: result.User.Username,
		Message:  messageSignedIn,
	})
}

// HandleLogout expires the session cookie. It always succeeds.
func (ht *HTTPTransport) HandleLogout(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogout(w, r)
}

func (ht *HTTPTransport) handleLogout(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer ht.logResult(r.Context(), log, "logout", &err)

	var token string
	if cookie, err := r.Cookie(ht.authSvc.Config.CookieName); err == nil {
		token = cookie.Value
	}

	ht.authSvc.Signout(r.Context(), token)

	//nolint:exhaustruct
	http.SetCookie(w, &http.Cookie{
		Name:     ht.authSvc.Config.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   ht.authSvc.Config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	return http_.WriteJSON(w, http.StatusOK, domain.MessageResponse{Message: messageLoggedOut})
}

// HandleHome is the protected example endpoint.
func (ht *HTTPTransport) HandleHome(w http.ResponseWriter, _ *http.Request) {
	_ = http_.WriteJSON(w, http.StatusOK, domain.MessageResponse{Message: messageWelcome})
}

// HandleProfile returns the public profile of the authenticated user.
func (ht *HTTPTransport) HandleProfile(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleProfile(w, r)
}

func (ht *HTTPTransport) handleProfile(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer ht.logResult(r.Context(), log, "profile", &err)

	identity, _ := context_.IdentityFromContext(r.Context())

	u, err := ht.authSvc.Profile(r.Context(), identity.UserID)
	if err != nil {
		return ht.fail(w, err)
	}

	return http_.WriteJSON(w, http.StatusOK, u.Response())
}

// HandleProfilePicture streams the stored profile picture of the authenticated user.
func (ht *HTTPTransport) HandleProfilePicture(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleProfilePicture(w, r)
}

func (ht *HTTPTransport) handleProfilePicture(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer ht.logResult(r.Context(), log, "profile picture", &err)

	identity, _ := context_.IdentityFromContext(r.Context())

	picture, err := ht.authSvc.ProfilePicture(r.Context(), identity.UserID)
	if errors.Is(err, domain.ErrBlobNotFound) {
		_ = http_.WriteJSON(w, http.StatusNotFound, domain.ErrorResponse{Error: ErrNoProfilePicture.Message})

		return nil
	} else if err != nil {
		return ht.fail(w, err)
	}

	w.Header().Set("Content-Type", picture.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(picture.Size(), 10))
	w.Header().Set("Cache-Control", "private, max-age=3600")

	if _, err := picture.WriteTo(w); err != nil {
		return fmt.Errorf("write picture: %w", err)
	}

	return nil
}

func (ht *HTTPTransport) fail(w http.ResponseWriter, err error) error {
	http_.WriteError(w, err)

	return err
}

func (ht *HTTPTransport) logResult(ctx context.Context, log logging.Logger, op string, errp *error) {
	switch err := *errp; {
	case err == nil:
		log.DebugContext(ctx, op+" handled")
	case http_.StatusForError(err) == http.StatusInternalServerError:
		log.ErrorContext(ctx, op+" failed", "error", err)
	default:
		log.DebugContext(ctx, op+" rejected", "error", err)
	}
}

type requestForm struct {
	values map[string]string
	upload *domain.Upload
}

func (f requestForm) value(key string) string {
	return f.values[key]
}

// parseForm reads the request fields from a JSON, urlencoded or multipart body.
func (ht *HTTPTransport) parseForm(w http.ResponseWriter, r *http.Request) (requestForm, error) {
	form := requestForm{values: make(map[string]string)}

	if ht.cfg.MaxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, ht.cfg.MaxBodySize)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return form, bodyError(err)
		}

		for key, value := range raw {
			if s, ok := value.(string); ok {
				form.values[key] = s
			}
		}

		return form, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemoryBuffer); err != nil {
			return form, bodyError(err)
		}

		upload, err := readUpload(r, "profile_picture")
		if err != nil {
			return form, err
		}

		form.upload = upload
	default:
		if err := r.ParseForm(); err != nil {
			return form, bodyError(err)
		}
	}

	for key := range r.PostForm {
		form.values[key] = r.PostForm.Get(key)
	}

	return form, nil
}

func readUpload(r *http.Request, field string) (*domain.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil //nolint:nilnil
	} else if err != nil {
		return nil, bodyError(err)
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	return &domain.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        body,
	}, nil
}

func bodyError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return errors.Join(ErrBodyTooLarge, err)
	}

	return errors.Join(ErrInvalidBody, err)
}
