package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/stacklane/stacklane/internal/model"
)

// ErrInvalidKey is returned for any key that does not authenticate.
// Callers must not distinguish between unknown and mismatched keys.
var ErrInvalidKey = errors.New("invalid API key")

var prefixPattern = regexp.MustCompile(`^[a-f0-9]{6}$`)

// KeyEntry is one configured API key.
type KeyEntry struct {
	Prefix string
	Scopes []string
	Hash   string
	Name   string
}

// ParseKeyEntries parses the API_KEYS format:
//
//	prefix:scope|scope:argon2hash[:name];prefix:...
func ParseKeyEntries(raw string) ([]KeyEntry, error) {
	var entries []KeyEntry
	for i, chunk := range strings.Split(raw, ";") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}

		parts := strings.SplitN(chunk, ":", 4)
		if len(parts) < 3 {
			return nil, fmt.Errorf("api key %d: want prefix:scopes:hash[:name]", i)
		}

		entry := KeyEntry{
			Prefix: parts[0],
			Scopes: strings.Split(parts[1], "|"),
			Hash:   parts[2],
		}
		if len(parts) == 4 {
			entry.Name = parts[3]
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Keyring authenticates presented API keys against configured entries.
// Successful verifications are remembered so Argon2 runs once per key.
type Keyring struct {
	byPrefix map[string]KeyEntry

	group    singleflight.Group
	mu       sync.RWMutex
	verified map[string]*model.Principal // QuickHash(plaintext) -> principal
}

// NewKeyring validates entries and builds a Keyring.
func NewKeyring(entries []KeyEntry) (*Keyring, error) {
	k := &Keyring{
		byPrefix: make(map[string]KeyEntry, len(entries)),
		verified: make(map[string]*model.Principal),
	}

	for _, e := range entries {
		if !prefixPattern.MatchString(e.Prefix) {
			return nil, fmt.Errorf("api key %q: prefix must be %d hex chars", e.Prefix, KeyPrefixLen)
		}
		if _, dup := k.byPrefix[e.Prefix]; dup {
			return nil, fmt.Errorf("api key %q: duplicate prefix", e.Prefix)
		}
		if len(e.Scopes) == 0 {
			return nil, fmt.Errorf("api key %q: no scopes", e.Prefix)
		}
		for _, s := range e.Scopes {
			if !model.IsValidScope(s) {
				return nil, fmt.Errorf("api key %q: unknown scope %q", e.Prefix, s)
			}
		}
		if _, _, _, err := decodeHash(e.Hash); err != nil {
			return nil, fmt.Errorf("api key %q: %w", e.Prefix, err)
		}
		k.byPrefix[e.Prefix] = e
	}
	return k, nil
}

// Len returns the number of configured keys.
func (k *Keyring) Len() int {
	return len(k.byPrefix)
}

// Authenticate resolves plaintext to a principal.
func (k *Keyring) Authenticate(ctx context.Context, plaintext string) (*model.Principal, error) {
	parsed, err := ParseKey(plaintext)
	if err != nil {
		return nil, ErrInvalidKey
	}
	entry, ok := k.byPrefix[parsed.Prefix]
	if !ok {
		return nil, ErrInvalidKey
	}

	cacheKey := QuickHash(plaintext)
	k.mu.RLock()
	p, ok := k.verified[cacheKey]
	k.mu.RUnlock()
	if ok {
		return p, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, err, _ := k.group.Do(cacheKey, func() (any, error) {
		match, err := VerifyKey(plaintext, entry.Hash)
		if err != nil {
			return nil, err
		}
		if !match {
			return nil, ErrInvalidKey
		}

		p := &model.Principal{
			KeyID:     "key_" + entry.Prefix,
			KeyPrefix: entry.Prefix,
			Name:      entry.Name,
			Scopes:    append([]string(nil), entry.Scopes...),
		}
		k.mu.Lock()
		k.verified[cacheKey] = p
		k.mu.Unlock()
		return p, nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidKey) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("verify api key: %w", err)
	}
	return v.(*model.Principal), nil
}
