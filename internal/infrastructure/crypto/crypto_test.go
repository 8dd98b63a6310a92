package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

var (
	keyA = strings.Repeat("a", 32)
	keyB = strings.Repeat("b", 32)
)

func mustEncryptor(t *testing.T, key string) *Encryptor {
	t.Helper()
	enc, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor(%d bytes): %v", len(key), err)
	}
	return enc
}

func TestNewEncryptor_KeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := NewEncryptor(strings.Repeat("k", n)); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("NewEncryptor(%d bytes) error = %v, want ErrInvalidKey", n, err)
		}
	}
	mustEncryptor(t, keyA)
}

func TestEncryptor_SealsAccessTokens(t *testing.T) {
	enc := mustEncryptor(t, keyA)

	tokens := []string{
		"access-sandbox-8ab976e6-64bc-4b38-98f7-731e7a349970",
		"access-production-" + strings.Repeat("f", 2048),
		"token with spaces and ünïcode",
	}
	for _, tok := range tokens {
		sealed, err := enc.Encrypt(tok)
		if err != nil {
			t.Fatalf("Encrypt(): %v", err)
		}
		if strings.Contains(sealed, tok) {
			t.Errorf("sealed value leaks the token")
		}
		opened, err := enc.Decrypt(sealed)
		if err != nil {
			t.Fatalf("Decrypt(): %v", err)
		}
		if opened != tok {
			t.Errorf("Decrypt() = %q, want %q", opened, tok)
		}
	}
}

func TestEncryptor_EmptyPassesThrough(t *testing.T) {
	enc := mustEncryptor(t, keyA)

	if got, err := enc.Encrypt(""); err != nil || got != "" {
		t.Errorf(`Encrypt("") = %q, %v`, got, err)
	}
	if got, err := enc.Decrypt(""); err != nil || got != "" {
		t.Errorf(`Decrypt("") = %q, %v`, got, err)
	}
}

func TestEncryptor_FreshNoncePerCall(t *testing.T) {
	enc := mustEncryptor(t, keyA)

	seen := make(map[string]bool)
	for range 20 {
		sealed, err := enc.Encrypt("access-sandbox-1")
		if err != nil {
			t.Fatalf("Encrypt(): %v", err)
		}
		if seen[sealed] {
			t.Fatal("two encryptions produced the same output")
		}
		seen[sealed] = true
	}
}

func TestEncryptor_RejectsBadInput(t *testing.T) {
	enc := mustEncryptor(t, keyA)
	sealed, err := enc.Encrypt("access-sandbox-1")
	if err != nil {
		t.Fatalf("Encrypt(): %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0x01

	tests := []struct {
		name    string
		enc     *Encryptor
		input   string
		wantErr error
	}{
		{name: "flipped bit", enc: enc, input: base64.StdEncoding.EncodeToString(raw)},
		{name: "other key", enc: mustEncryptor(t, keyB), input: sealed},
		{name: "not base64", enc: enc, input: "%%%"},
		{name: "shorter than nonce", enc: enc, input: base64.StdEncoding.EncodeToString([]byte("short")), wantErr: ErrCiphertextTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.enc.Decrypt(tt.input)
			if err == nil {
				t.Fatal("Decrypt() succeeded, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Decrypt() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
