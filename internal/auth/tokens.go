package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

const (
	resetTokenBytes = 32
	codeMin         = 100000
	codeSpan        = 900000
)

// TokenGenerator mints client-held secrets.
type TokenGenerator interface {
	// SessionToken returns a random UUID v4.
	SessionToken() (string, error)
	// ResetToken returns 256 random bits, base64url without padding.
	ResetToken() (string, error)
	// VerificationCode returns a six digit code drawn uniformly from 100000..999999.
	VerificationCode() (string, error)
}

// RandomTokens draws every token from crypto/rand.
type RandomTokens struct{}

// NewRandomTokens constructs a RandomTokens generator.
func NewRandomTokens() RandomTokens {
	return RandomTokens{}
}

// SessionToken implements TokenGenerator.
func (RandomTokens) SessionToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").With("token", "session").Wrap(err)
	}
	return id.String(), nil
}

// ResetToken implements TokenGenerator.
func (RandomTokens) ResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").With("token", "reset").Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// VerificationCode implements TokenGenerator.
func (RandomTokens) VerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").With("token", "verification_code").Wrap(err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// DigestToken returns the hex SHA-256 of a token. Only digests are stored.
func DigestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
