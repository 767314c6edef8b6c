package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Scope constants for API key authorization.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"
)

// ValidScopes contains all valid scope values.
var ValidScopes = []string{ScopeRead, ScopeWrite, ScopeAdmin}

// ErrInvalidScope is returned by ParseScopes for unknown scope names.
var ErrInvalidScope = errors.New("invalid scope")

// APIKey is a credential allowed to call the users API when auth is enabled.
type APIKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsRevoked returns true if the key has been revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// HasScope checks if the key has a specific scope.
// Admin scope implies all other scopes.
func (k *APIKey) HasScope(scope string) bool {
	return hasScope(k.Scopes, scope)
}

// AuthContext holds the authenticated caller for a request.
type AuthContext struct {
	KeyID     string
	KeyPrefix string
	Name      string
	Scopes    []string
}

// HasScope checks if the auth context has a specific scope.
func (a *AuthContext) HasScope(scope string) bool {
	return hasScope(a.Scopes, scope)
}

func hasScope(scopes []string, scope string) bool {
	if slices.Contains(scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(scopes, scope)
}

// ParseScopes splits a comma-separated scope list, dropping blanks and duplicates.
func ParseScopes(input string) ([]string, error) {
	parts := strings.Split(input, ",")
	scopes := make([]string, 0, len(parts))
	for _, part := range parts {
		scope := strings.ToLower(strings.TrimSpace(part))
		if scope == "" {
			continue
		}
		if !slices.Contains(ValidScopes, scope) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidScope, scope)
		}
		if !slices.Contains(scopes, scope) {
			scopes = append(scopes, scope)
		}
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("%w: at least one scope is required", ErrInvalidScope)
	}
	return scopes, nil
}
