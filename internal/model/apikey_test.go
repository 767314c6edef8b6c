package model

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestAPIKey_HasScope(t *testing.T) {
	testCases := []struct {
		name      string
		keyScopes []string
		checkFor  string
		want      bool
	}{
		{
			name:      "has exact scope",
			keyScopes: []string{ScopeRead, ScopeWrite},
			checkFor:  ScopeRead,
			want:      true,
		},
		{
			name:      "does not have scope",
			keyScopes: []string{ScopeRead},
			checkFor:  ScopeWrite,
			want:      false,
		},
		{
			name:      "admin implies read",
			keyScopes: []string{ScopeAdmin},
			checkFor:  ScopeRead,
			want:      true,
		},
		{
			name:      "admin implies write",
			keyScopes: []string{ScopeAdmin},
			checkFor:  ScopeWrite,
			want:      true,
		},
		{
			name:      "empty scopes",
			keyScopes: []string{},
			checkFor:  ScopeRead,
			want:      false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			key := &APIKey{Scopes: tc.keyScopes}
			got := key.HasScope(tc.checkFor)
			if got != tc.want {
				t.Errorf("HasScope(%s) = %v, want %v", tc.checkFor, got, tc.want)
			}
		})
	}
}

func TestAuthContext_HasScope(t *testing.T) {
	testCases := []struct {
		name     string
		scopes   []string
		checkFor string
		want     bool
	}{
		{
			name:     "has scope",
			scopes:   []string{ScopeRead},
			checkFor: ScopeRead,
			want:     true,
		},
		{
			name:     "admin grants all",
			scopes:   []string{ScopeAdmin},
			checkFor: ScopeWrite,
			want:     true,
		},
		{
			name:     "missing scope",
			scopes:   []string{ScopeRead},
			checkFor: ScopeAdmin,
			want:     false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := &AuthContext{Scopes: tc.scopes}
			got := ctx.HasScope(tc.checkFor)
			if got != tc.want {
				t.Errorf("HasScope(%s) = %v, want %v", tc.checkFor, got, tc.want)
			}
		})
	}
}

func TestAPIKey_IsRevoked(t *testing.T) {
	key := &APIKey{}
	if key.IsRevoked() {
		t.Error("new key should not be revoked")
	}

	now := time.Now()
	key.RevokedAt = &now
	if !key.IsRevoked() {
		t.Error("key with revoked_at should be revoked")
	}
}

func TestParseScopes(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single", "read", []string{ScopeRead}, false},
		{"multiple with spaces", "read, write", []string{ScopeRead, ScopeWrite}, false},
		{"uppercase normalized", "ADMIN", []string{ScopeAdmin}, false},
		{"duplicates dropped", "read,read,write", []string{ScopeRead, ScopeWrite}, false},
		{"blank entries skipped", "read,,", []string{ScopeRead}, false},
		{"unknown scope", "read,webhook", nil, true},
		{"empty", "", nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseScopes(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidScope) {
					t.Fatalf("expected ErrInvalidScope, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tc.want) {
				t.Errorf("ParseScopes(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestValidScopes(t *testing.T) {
	expected := []string{ScopeRead, ScopeWrite, ScopeAdmin}
	for _, scope := range expected {
		if !slices.Contains(ValidScopes, scope) {
			t.Errorf("ValidScopes should contain %s", scope)
		}
	}
}
