package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	// HKDF constants
	HKDFSalt         = "frequency127:hkdf:v1"
	HKDFInfoSession  = "session-token:v1"
	HKDFOutputLength = 32

	// Passcode salt length in bytes
	SaltLength = 16

	argon2idHashPrefix = "argon2id$"

	// Server-side Argon2id parameters for passcode hashing
	argon2Time    = uint32(2)
	argon2Memory  = uint32(32768) // 32 MiB
	argon2Threads = uint8(2)
	argon2KeyLen  = uint32(32)
)

var (
	ErrEmptySecret = errors.New("secret must not be empty")
)

// HashPasscode derives the stored hash for a passcode using Argon2id keyed by
// the user's salt. The result is prefixed with the scheme name.
func HashPasscode(salt, passcode string) string {
	key := argon2.IDKey([]byte(passcode), []byte(salt), argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return argon2idHashPrefix + base64.RawStdEncoding.EncodeToString(key)
}

// legacyHashPasscode is the hash scheme of accounts imported from
// the previous deployment: hex(SHA-256(salt || passcode)).
func legacyHashPasscode(salt, passcode string) string {
	sum := sha256.Sum256([]byte(salt + passcode))
	return hex.EncodeToString(sum[:])
}

// VerifyPasscode recomputes the hash of passcode with the stored salt and
// compares it with stored in constant time. needsRehash reports a match
// against the legacy scheme.
func VerifyPasscode(salt, passcode, stored string) (ok bool, needsRehash bool) {
	if strings.HasPrefix(stored, argon2idHashPrefix) {
		return constantTimeCompare(HashPasscode(salt, passcode), stored), false
	}
	if constantTimeCompare(legacyHashPasscode(salt, passcode), strings.ToLower(stored)) {
		return true, true
	}
	return false, false
}

// NewSalt returns a random hex salt
func NewSalt() (string, error) {
	b, err := GenerateRandomBytes(SaltLength)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// DeriveSessionKey derives the token signing key from the configured secret
func DeriveSessionKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return deriveHKDF([]byte(secret), HKDFInfoSession)
}

// deriveHKDF derives a key using HKDF-HMAC-SHA256
func deriveHKDF(secret []byte, info string) ([]byte, error) {
	hkdfReader := hkdf.New(sha256.New, secret, []byte(HKDFSalt), []byte(info))

	key := make([]byte, HKDFOutputLength)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, fmt.Errorf("failed to derive HKDF key: %w", err)
	}

	return key, nil
}

func constantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GenerateRandomBytes generates n random bytes
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
