package cache

import (
	"testing"

	"github.com/usersapi/usersapi/internal/model"
)

func TestHashIP_Deterministic(t *testing.T) {
	t.Parallel()

	ip := "192.168.1.100"

	hash1 := hashIP(ip)
	hash2 := hashIP(ip)

	if hash1 != hash2 {
		t.Error("Same IP should produce same hash")
	}
}

func TestHashIP_Length(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ip   string
	}{
		{"IPv4", "192.168.1.1"},
		{"IPv4 localhost", "127.0.0.1"},
		{"IPv6 localhost", "::1"},
		{"IPv6 full", "2001:0db8:85a3:0000:0000:8a2e:0370:7334"},
		{"empty", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hash := hashIP(tt.ip)
			// hashIP uses first 8 bytes of SHA256, encoded as 16 hex chars
			if len(hash) != 16 {
				t.Errorf("hashIP(%q) length = %d, want 16", tt.ip, len(hash))
			}
		})
	}
}

func TestHashIP_Different(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ip1  string
		ip2  string
	}{
		{"different IPv4", "192.168.1.1", "192.168.1.2"},
		{"different last octet", "10.0.0.1", "10.0.0.2"},
		{"IPv4 vs IPv6", "127.0.0.1", "::1"},
		{"public vs private", "8.8.8.8", "192.168.1.1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hash1 := hashIP(tt.ip1)
			hash2 := hashIP(tt.ip2)

			if hash1 == hash2 {
				t.Errorf("Different IPs should produce different hashes: %q and %q both produced %s", tt.ip1, tt.ip2, hash1)
			}
		})
	}
}

func TestUserKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   int64
		want string
	}{
		{1, "user:1"},
		{42, "user:42"},
		{9007199254740993, "user:9007199254740993"},
	}

	for _, tt := range tests {
		tt := tt
		if got := userKey(tt.id); got != tt.want {
			t.Errorf("userKey(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestUserHash_RoundTrip(t *testing.T) {
	t.Parallel()

	user := &model.User{ID: 7, FirstName: "Kobe", LastName: "Bryant", State: ""}

	fields := make(map[string]string)
	for k, v := range userToHash(user) {
		fields[k] = v.(string)
	}

	got, ok := userFromHash(7, fields)
	if !ok {
		t.Fatal("expected hash to decode")
	}
	if !got.Equal(user) {
		t.Errorf("userFromHash = %+v, want %+v", got, user)
	}
}

func TestUserFromHash_Incomplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"empty", map[string]string{}},
		{"missing state", map[string]string{"first_name": "a", "last_name": "b"}},
		{"missing first name", map[string]string{"last_name": "b", "state": "c"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, ok := userFromHash(1, tt.fields); ok {
				t.Error("expected incomplete hash to be a miss")
			}
		})
	}
}

func TestDecodeAuthContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantNil bool
	}{
		{"valid", `{"key_id":"01ABC","key_prefix":"abc123","name":"ci","scopes":["read"]}`, false},
		{"corrupted", `{"key_id":`, true},
		{"missing key id", `{"scopes":["read"]}`, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := decodeAuthContext([]byte(tt.data))
			if (got == nil) != tt.wantNil {
				t.Fatalf("decodeAuthContext(%s) = %+v, wantNil %v", tt.data, got, tt.wantNil)
			}
			if got != nil && !got.HasScope(model.ScopeRead) {
				t.Error("expected read scope to survive decoding")
			}
		})
	}
}

func TestUnlimited(t *testing.T) {
	t.Parallel()

	res := unlimited(20)
	if !res.Allowed || res.Remaining != 20 {
		t.Errorf("unlimited(20) = %+v", res)
	}
}
