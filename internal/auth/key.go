package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// Keys look like ua_{env}_{prefix}_{secret}, e.g.
// ua_live_7a9x3k_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	PrefixLen = 6
	SecretLen = 32
)

// Key environments.
const (
	EnvLive = "live"
	EnvTest = "test"
)

// ErrInvalidKeyFormat indicates a presented key is not a well-formed API key.
var ErrInvalidKeyFormat = errors.New("invalid API key format")

var keyPattern = regexp.MustCompile(`^ua_(live|test)_([a-f0-9]{6})_([a-f0-9]{32})$`)

// GeneratedKey is a new key. Plaintext is shown to the operator once and
// never stored.
type GeneratedKey struct {
	Plaintext string
	Hash      string
	Prefix    string
}

// GenerateKey creates a key for env (unknown values fall back to live)
// and hashes it with p.
func GenerateKey(env string, p Params) (*GeneratedKey, error) {
	if env != EnvTest {
		env = EnvLive
	}

	prefix, err := randomHex(PrefixLen / 2)
	if err != nil {
		return nil, fmt.Errorf("generate prefix: %w", err)
	}
	secret, err := randomHex(SecretLen / 2)
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	plaintext := fmt.Sprintf("ua_%s_%s_%s", env, prefix, secret)

	hash, err := Hash(plaintext, p)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}

	return &GeneratedKey{Plaintext: plaintext, Hash: hash, Prefix: prefix}, nil
}

// ParsedKey holds the components of a presented key.
type ParsedKey struct {
	Env    string
	Prefix string
	Secret string
}

// ParseKey splits a presented key into its components.
func ParseKey(key string) (*ParsedKey, error) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil {
		return nil, ErrInvalidKeyFormat
	}
	return &ParsedKey{Env: m[1], Prefix: m[2], Secret: m[3]}, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
