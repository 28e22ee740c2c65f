package model

import "slices"

// Scope constants for API key authorization.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"
)

// ValidScopes contains all valid scope values.
var ValidScopes = []string{ScopeRead, ScopeWrite, ScopeAdmin}

// IsValidScope reports whether s is a known scope.
func IsValidScope(s string) bool {
	return slices.Contains(ValidScopes, s)
}

// Principal is the authenticated caller of a request.
// It is injected into the request context by the auth middleware.
type Principal struct {
	KeyID     string
	KeyPrefix string
	Name      string
	Scopes    []string
}

// HasScope checks if the principal has a specific scope.
// Admin scope implies all other scopes.
func (p *Principal) HasScope(scope string) bool {
	if p == nil {
		return false
	}
	if slices.Contains(p.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(p.Scopes, scope)
}

// LocalPrincipal is used when authentication is disabled.
func LocalPrincipal() *Principal {
	return &Principal{
		KeyID:  "local",
		Name:   "local",
		Scopes: []string{ScopeAdmin},
	}
}
