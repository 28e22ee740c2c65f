// Package service holds the business rules. Services depend only on the
// repository interfaces they are built with and report failures as
// *apperr.Error values; anything else is an unexpected fault.
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/stacklane/stacklane/internal/apperr"
	"github.com/stacklane/stacklane/internal/auth"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newID returns a lexically sortable unique identifier.
func newID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// authorize checks the caller attached to ctx for scope.
func authorize(ctx context.Context, scope string) error {
	p := auth.PrincipalFrom(ctx)
	if p == nil {
		return apperr.Forbidden("")
	}
	if !p.HasScope(scope) {
		return apperr.Forbidden(fmt.Sprintf("API key lacks the %q scope", scope))
	}
	return nil
}

// fault wraps a storage error that has no domain meaning.
func fault(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
