package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/scrypt"
)

// ErrInvalidTokenHash is returned for a malformed configured hash.
var ErrInvalidTokenHash = errors.New("invalid token hash")

// KDFConfig defines the scrypt parameters used to hash API tokens
type KDFConfig struct {
	N      int // CPU/memory cost parameter
	R      int // Block size parameter
	P      int // Parallelization parameter
	KeyLen int // Derived key length in bytes
}

// DefaultKDFConfig returns OWASP recommended scrypt parameters
func DefaultKDFConfig() KDFConfig {
	return KDFConfig{
		N:      32768,
		R:      8,
		P:      1,
		KeyLen: 32,
	}
}

// HashToken derives the hex encoded scrypt hash of token.
func HashToken(token, salt string, cfg KDFConfig) (string, error) {
	if token == "" {
		return "", errors.New("token cannot be empty")
	}
	if len(salt) < 8 {
		return "", errors.New("salt must be at least 8 bytes")
	}
	key, err := scrypt.Key([]byte(token), []byte(salt), cfg.N, cfg.R, cfg.P, cfg.KeyLen)
	if err != nil {
		return "", fmt.Errorf("key derivation failed: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// GenerateSecret returns n random bytes, hex encoded. It is used for new
// tokens and salts.
func GenerateSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// maxVerifiedCache bounds the fast path memory
const maxVerifiedCache = 64

// TokenVerifier checks bearer tokens against a configured scrypt hash.
// Accepted tokens are remembered by their SHA-256 digest so the expensive
// derivation runs once per distinct token.
type TokenVerifier struct {
	hash []byte
	salt string
	cfg  KDFConfig

	mu       sync.Mutex
	verified map[[sha256.Size]byte]struct{}
}

// NewTokenVerifier creates a verifier for the hex encoded hash.
func NewTokenVerifier(hashHex, salt string, cfg KDFConfig) (*TokenVerifier, error) {
	hash, err := hex.DecodeString(hashHex)
	if err != nil || len(hash) != cfg.KeyLen {
		return nil, ErrInvalidTokenHash
	}
	return &TokenVerifier{
		hash:     hash,
		salt:     salt,
		cfg:      cfg,
		verified: make(map[[sha256.Size]byte]struct{}),
	}, nil
}

// Verify reports whether token matches the configured hash.
func (v *TokenVerifier) Verify(token string) bool {
	if token == "" {
		return false
	}

	digest := sha256.Sum256([]byte(token))
	v.mu.Lock()
	_, ok := v.verified[digest]
	v.mu.Unlock()
	if ok {
		return true
	}

	key, err := scrypt.Key([]byte(token), []byte(v.salt), v.cfg.N, v.cfg.R, v.cfg.P, v.cfg.KeyLen)
	if err != nil || !SecureCompare(key, v.hash) {
		return false
	}

	v.mu.Lock()
	if len(v.verified) >= maxVerifiedCache {
		clear(v.verified)
	}
	v.verified[digest] = struct{}{}
	v.mu.Unlock()
	return true
}

// SecureCompare performs constant-time comparison to prevent timing attacks
func SecureCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
