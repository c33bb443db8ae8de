// Package auth provides password hashing, session tokens and access control.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Params are the Argon2id cost parameters.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// DefaultParams follow the OWASP 2024 recommended minimum.
var DefaultParams = Params{
	Time:    3,
	Memory:  64 * 1024, // 64 MB
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

// Upper bounds accepted when decoding a stored hash, so a corrupted record
// cannot make verification allocate unbounded memory.
const (
	maxMemory = 1024 * 1024 // 1 GB
	maxTime   = 16
	maxKeyLen = 128
)

var (
	// ErrInvalidHash indicates the hash format is invalid.
	ErrInvalidHash = errors.New("invalid hash format")
	// ErrIncompatibleVersion indicates the hash version is not supported.
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// Hasher hashes and verifies passwords with Argon2id. Safe for concurrent use.
type Hasher struct {
	params Params

	dummyOnce sync.Once
	dummy     string
}

// NewHasher creates a Hasher with the given parameters.
func NewHasher(params Params) *Hasher {
	return &Hasher{params: params}
}

// Hash creates an Argon2id hash of the password with a fresh random salt.
// Returns the hash in PHC string format.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the encoded hash.
// A malformed hash never matches; it is not reported as an error.
func (h *Hasher) Verify(password, encodedHash string) bool {
	decoded, err := decodeHash(encodedHash)
	if err != nil {
		return false
	}

	computed := argon2.IDKey(
		[]byte(password),
		decoded.salt,
		decoded.params.Time,
		decoded.params.Memory,
		decoded.params.Threads,
		uint32(len(decoded.key)),
	)

	return subtle.ConstantTimeCompare(computed, decoded.key) == 1
}

// VerifyDummy burns the same work as Verify against a throwaway hash.
// Login calls it for unknown accounts so both paths take comparable time.
func (h *Hasher) VerifyDummy(password string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = h.Hash("tasktrack-dummy-password")
	})
	_ = h.Verify(password, h.dummy)
}

type decodedHash struct {
	params Params
	salt   []byte
	key    []byte
}

// decodeHash parses the PHC string format.
func decodeHash(encodedHash string) (*decodedHash, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrInvalidHash
	}

	if parts[1] != "argon2id" {
		return nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return nil, ErrIncompatibleVersion
	}

	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return nil, ErrInvalidHash
	}
	if p.Memory == 0 || p.Memory > maxMemory || p.Time == 0 || p.Time > maxTime || p.Threads == 0 {
		return nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, ErrInvalidHash
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > maxKeyLen {
		return nil, ErrInvalidHash
	}

	return &decodedHash{params: p, salt: salt, key: key}, nil
}

// QuickHash returns a truncated SHA256 of the input for Redis keys, so raw
// client IPs and subjects are never stored. Not for password storage.
func QuickHash(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16]) // Use first 16 bytes (32 hex chars)
}
