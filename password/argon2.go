package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	phcAlgorithm = "argon2id"

	minPasswordBytes = 8
	minSaltBytes     = 8
)

// Params are the Argon2id cost parameters. The zero value selects
// [DefaultParams] in [NewHasher].
type Params struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams is an interactive-login profile: 64 MiB, 3 passes, 2 lanes.
func DefaultParams() Params {
	return Params{
		MemoryKB:    64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher derives and verifies PHC-encoded Argon2id hashes. Safe for
// concurrent use.
type Hasher struct {
	params Params
}

// NewHasher validates params and returns a ready [Hasher].
func NewHasher(params Params) (*Hasher, error) {
	if params == (Params{}) {
		params = DefaultParams()
	}
	if params.MemoryKB < 8*1024 {
		return nil, errors.New("password: memory must be >= 8192 KB")
	}
	if params.Time < 1 || params.Parallelism < 1 {
		return nil, errors.New("password: time and parallelism must be >= 1")
	}
	if params.SaltLength < 16 || params.KeyLength < 16 {
		return nil, errors.New("password: salt and key length must be >= 16")
	}
	return &Hasher{params: params}, nil
}

// Hash derives a fresh salted hash. Raw password bytes are used exactly as
// provided (no Unicode normalization).
func (h *Hasher) Hash(plaintext string) (string, error) {
	if len(plaintext) < minPasswordBytes {
		return "", fmt.Errorf("password: must be at least %d bytes", minPasswordBytes)
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plaintext), salt, h.params.Time, h.params.MemoryKB, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm, argon2.Version,
		h.params.MemoryKB, h.params.Time, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches encoded, using the cost
// parameters embedded in the hash. The comparison is constant-time.
func (h *Hasher) Verify(plaintext, encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(plaintext), parsed.salt, parsed.time, parsed.memoryKB, parsed.parallelism, uint32(len(parsed.key)))
	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

type phcHash struct {
	memoryKB    uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != phcAlgorithm {
		return nil, errors.New("password: malformed hash encoding")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return nil, errors.New("password: unsupported argon2 version")
	}

	var parsed phcHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &parsed.memoryKB, &parsed.time, &parsed.parallelism); err != nil {
		return nil, errors.New("password: malformed cost parameters")
	}
	if parsed.time < 1 || parsed.parallelism < 1 {
		return nil, errors.New("password: invalid cost parameters")
	}

	if parsed.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(parsed.salt) < minSaltBytes {
		return nil, errors.New("password: malformed salt")
	}
	if parsed.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(parsed.key) == 0 {
		return nil, errors.New("password: malformed key")
	}

	return &parsed, nil
}
