package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// Keys look like sk_{env}_{prefix}_{secret}, e.g.
// sk_live_7a9x3k_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	KeyPrefixLen = 6
	KeySecretLen = 32
)

// Key environments.
const (
	EnvLive = "live"
	EnvTest = "test"
)

// ErrInvalidKeyFormat indicates the presented key is malformed.
var ErrInvalidKeyFormat = errors.New("invalid API key format")

var keyPattern = regexp.MustCompile(`^sk_(live|test)_([a-f0-9]{6})_([a-f0-9]{32})$`)

// GeneratedKey is a freshly minted API key.
type GeneratedKey struct {
	Plaintext string // shown once
	Hash      string
	Prefix    string
}

// GenerateKey mints a key for env. Unknown environments fall back to live.
func GenerateKey(env string) (*GeneratedKey, error) {
	if env != EnvTest {
		env = EnvLive
	}

	prefix, err := randomHex(KeyPrefixLen / 2)
	if err != nil {
		return nil, fmt.Errorf("generate prefix: %w", err)
	}
	secret, err := randomHex(KeySecretLen / 2)
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	plaintext := fmt.Sprintf("sk_%s_%s_%s", env, prefix, secret)
	hash, err := HashKey(plaintext)
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

// ParseKey splits a plaintext key into its components.
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
