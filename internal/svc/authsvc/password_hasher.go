package authsvc

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidHash is returned for stored hashes that are not valid argon2id PHC strings.
var ErrInvalidHash = errors.New("invalid password hash")

const (
	argon2SaltLength = 16
	argon2KeyLength  = 32
)

// PasswordHasher creates and checks salted one-way password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Time    uint32 `env:"TIME" default:"1"`
	Memory  uint32 `env:"MEMORY" default:"65536"` // KiB
	Threads uint8  `env:"THREADS" default:"4"`
}

// Argon2idHasher implements PasswordHasher with argon2id and PHC-formatted hashes:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>.
type Argon2idHasher struct {
	params Argon2Params
}

var _ PasswordHasher = (*Argon2idHasher)(nil)

// NewArgon2idHasher creates a hasher with the given cost parameters.
func NewArgon2idHasher(params Argon2Params) *Argon2idHasher {
	return &Argon2idHasher{params: params}
}

// Hash implements PasswordHasher.Hash with a random salt.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	salt := make([]byte, argon2SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, argon2KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify implements PasswordHasher.Verify using the parameters stored in the hash,
// so hashes created with older cost settings keep verifying.
func (h *Argon2idHasher) Verify(password, encoded string) (bool, error) {
	params, salt, key, err := decodeArgon2Hash(encoded)
	if err != nil {
		return false, err
	}

	//nolint:gosec
	other := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, uint32(len(key)))

	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

func decodeArgon2Hash(encoded string) (params Argon2Params, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return params, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params, nil, nil, fmt.Errorf("%w: version", ErrInvalidHash)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &params.Threads); err != nil {
		return params, nil, nil, fmt.Errorf("%w: params", ErrInvalidHash)
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return params, nil, nil, fmt.Errorf("%w: salt", ErrInvalidHash)
	}

	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(key) == 0 {
		return params, nil, nil, fmt.Errorf("%w: key", ErrInvalidHash)
	}

	if params.Time == 0 || params.Threads == 0 {
		return params, nil, nil, fmt.Errorf("%w: params", ErrInvalidHash)
	}

	return params, salt, key, nil
}
