package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// argon2id parameters for new hashes.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2SaltLen = 16
	argon2KeyLen  = 32

	// Upper bounds accepted when reading stored hashes.
	maxArgon2Memory = 1024 * 1024
	maxArgon2Time   = 16
)

// dummyPasswordHash is verified against when the account does not exist so
// that unknown emails cost the same as wrong passwords.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify returns (true, nil) on match, (false, nil) on mismatch and an
	// error when the stored hash cannot be parsed.
	Verify(password, hash string) (bool, error)
	// NeedsUpgrade reports whether hash should be replaced on next login.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher produces argon2id PHC strings and still accepts bcrypt
// hashes imported from older deployments.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

type argon2Params struct {
	version int
	memory  uint32
	time    uint32
	threads uint32
	salt    []byte
	key     []byte
}

// Hash produces $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks password against an argon2id or bcrypt hash.
func (h *Argon2idHasher) Verify(password, encoded string) (bool, error) {
	if isBcrypt(encoded) {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
		}
	}

	params, err := parseArgon2(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), params.salt, params.time, params.memory, uint8(params.threads), uint32(len(params.key)))
	return subtle.ConstantTimeCompare(computed, params.key) == 1, nil
}

// NeedsUpgrade is true for bcrypt hashes and for argon2id hashes made with
// parameters other than the current ones.
func (h *Argon2idHasher) NeedsUpgrade(encoded string) bool {
	params, err := parseArgon2(encoded)
	if err != nil {
		return true
	}
	return params.version != argon2.Version ||
		params.memory != argon2Memory ||
		params.time != argon2Time ||
		params.threads != argon2Threads ||
		len(params.key) != argon2KeyLen
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

func parseArgon2(encoded string) (argon2Params, error) {
	var p argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return p, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return p, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}
	if _, err := fmt.Sscanf(parts[2], "v=%d", &p.version); err != nil {
		return p, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if p.time == 0 || p.time > maxArgon2Time {
		return p, oops.Code("AUTH_INVALID_HASH").Errorf("time value %d out of range", p.time)
	}
	if p.memory == 0 || p.memory > maxArgon2Memory {
		return p, oops.Code("AUTH_INVALID_HASH").Errorf("memory value %d out of range", p.memory)
	}
	if p.threads == 0 || p.threads > 255 {
		return p, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", p.threads)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return p, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(p.key) == 0 || len(p.key) > 1<<10 {
		return p, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(p.key))
	}
	return p, nil
}
