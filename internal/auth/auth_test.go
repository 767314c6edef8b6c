package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/usersapi/usersapi/internal/model"
)

// cheap parameters keep the tests fast
var testParams = Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func TestHash_Format(t *testing.T) {
	t.Parallel()

	hash, err := Hash("secret", testParams)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Errorf("unexpected hash prefix: %s", hash)
	}
	if parts := strings.Split(hash, "$"); len(parts) != 6 {
		t.Errorf("expected 6 PHC segments, got %d", len(parts))
	}
}

func TestHash_SaltedUniquely(t *testing.T) {
	t.Parallel()

	a, _ := Hash("secret", testParams)
	b, _ := Hash("secret", testParams)
	if a == b {
		t.Error("two hashes of the same secret should differ")
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	hash, err := Hash("correct-horse", testParams)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	tests := []struct {
		name   string
		secret string
		want   bool
	}{
		{"match", "correct-horse", true},
		{"mismatch", "battery-staple", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Verify(tt.secret, hash)
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Verify(%q) = %v, want %v", tt.secret, got, tt.want)
			}
		})
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		hash    string
		wantErr error
	}{
		{"empty", "", ErrInvalidHash},
		{"bcrypt", "$2a$10$abcdefghijklmnopqrstuv", ErrInvalidHash},
		{"wrong algorithm", "$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA", ErrInvalidHash},
		{"bad params", "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA", ErrInvalidHash},
		{"bad salt", "$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA", ErrInvalidHash},
		{"old version", "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$aGFzaA", ErrIncompatibleVersion},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := Verify("x", tt.hash); !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	a := CacheKey("ua_live_abc123_" + strings.Repeat("0", 32))
	b := CacheKey("ua_live_abc123_" + strings.Repeat("1", 32))

	if len(a) != 32 {
		t.Errorf("CacheKey length = %d, want 32", len(a))
	}
	if a == b {
		t.Error("different keys should not share a cache key")
	}
	if a != CacheKey("ua_live_abc123_"+strings.Repeat("0", 32)) {
		t.Error("CacheKey should be deterministic")
	}
}

func TestGenerateKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env     string
		wantEnv string
	}{
		{EnvLive, EnvLive},
		{EnvTest, EnvTest},
		{"staging", EnvLive},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()

			key, err := GenerateKey(tt.env, testParams)
			if err != nil {
				t.Fatalf("GenerateKey failed: %v", err)
			}

			parsed, err := ParseKey(key.Plaintext)
			if err != nil {
				t.Fatalf("generated key does not parse: %v", err)
			}
			if parsed.Env != tt.wantEnv {
				t.Errorf("Env = %q, want %q", parsed.Env, tt.wantEnv)
			}
			if parsed.Prefix != key.Prefix || len(key.Prefix) != PrefixLen {
				t.Errorf("Prefix = %q, key.Prefix = %q", parsed.Prefix, key.Prefix)
			}

			ok, err := Verify(key.Plaintext, key.Hash)
			if err != nil || !ok {
				t.Errorf("hash does not verify plaintext: ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestParseKey_Invalid(t *testing.T) {
	t.Parallel()

	secret := strings.Repeat("a", 32)
	keys := []string{
		"",
		"ua_live_abc123",
		"pk_live_abc123_" + secret,
		"ua_prod_abc123_" + secret,
		"ua_live_ABC123_" + secret,
		"ua_live_abc12_" + secret,
		"ua_live_abc123_" + secret + "0",
		" ua_live_abc123_" + secret,
	}

	for _, key := range keys {
		if _, err := ParseKey(key); !errors.Is(err, ErrInvalidKeyFormat) {
			t.Errorf("ParseKey(%q) err = %v, want ErrInvalidKeyFormat", key, err)
		}
	}
}

func TestContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if FromContext(ctx) != nil || KeyIDFromContext(ctx) != "" {
		t.Fatal("empty context should carry no auth")
	}

	ac := &model.AuthContext{KeyID: "01K", Scopes: []string{model.ScopeRead}}
	ctx = ContextWithAuth(ctx, ac)
	if FromContext(ctx) != ac {
		t.Error("FromContext did not return the stored auth context")
	}
	if KeyIDFromContext(ctx) != "01K" {
		t.Errorf("KeyIDFromContext = %q", KeyIDFromContext(ctx))
	}
}
