package authsvc

import "time"

// AuthConfig contains configuration parameters for the authentication service.
type AuthConfig struct {
	// SecretKey is the HMAC secret used to sign session tokens
	SecretKey string `env:"SECRET_KEY"`
	// Algorithm is the JWT signing algorithm (HS256, HS384 or HS512)
	Algorithm string `env:"ALGORITHM" default:"HS256"`
	// TokenTTL is the validity duration of session tokens
	TokenTTL time.Duration `env:"TOKEN_TTL" default:"1h"`

	// CookieName is the name of the cookie carrying the session token
	CookieName string `env:"COOKIE_NAME" default:"access_token"`
	// CookieSecure marks the session cookie as HTTPS-only
	CookieSecure bool `env:"COOKIE_SECURE" default:"false"`

	Argon2 Argon2Params `envPrefix:"ARGON2_"`

	// ProfilePictureMaxSize is the largest accepted upload in bytes
	ProfilePictureMaxSize int64 `env:"PROFILE_PICTURE_MAX_SIZE" default:"5242880"` // 5 MiB
	// ProfilePictureMaxWidth downscales wider pictures, 0 keeps the original
	ProfilePictureMaxWidth int `env:"PROFILE_PICTURE_MAX_WIDTH" default:"512"`
}
