package auth

import (
	"strings"
	"testing"
)

func TestTokenGenerator_GenerateToken(t *testing.T) {
	tg := NewTokenGenerator()

	token, tokenHash, tokenPrefix, err := tg.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if !strings.HasPrefix(token, TokenPrefix) {
		t.Errorf("Token should start with %q, got %q", TokenPrefix, token)
	}

	// SHA256 = 64 hex chars
	if len(tokenHash) != 64 {
		t.Errorf("TokenHash length = %d, want 64", len(tokenHash))
	}
	if tokenHash != tg.HashToken(token) {
		t.Error("TokenHash should be the hash of the token")
	}

	if tokenPrefix != tg.ExtractPrefix(token) {
		t.Errorf("TokenPrefix = %q, want %q", tokenPrefix, tg.ExtractPrefix(token))
	}

	if err := tg.ValidateTokenFormat(token); err != nil {
		t.Errorf("generated token should be valid: %v", err)
	}
}

func TestTokenGenerator_GenerateToken_Uniqueness(t *testing.T) {
	tg := NewTokenGenerator()

	tokens := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, _, _, err := tg.GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		if tokens[token] {
			t.Errorf("Duplicate token generated: %s", token)
		}
		tokens[token] = true
	}
}

func TestTokenGenerator_HashToken(t *testing.T) {
	tg := NewTokenGenerator()

	hash1 := tg.HashToken("spkrepo_test123456789")
	hash2 := tg.HashToken("spkrepo_test123456789")
	if hash1 != hash2 {
		t.Error("Same token should produce same hash")
	}

	if hash1 == tg.HashToken("spkrepo_different") {
		t.Error("Different tokens should produce different hashes")
	}
}

func TestTokenGenerator_ValidateTokenFormat(t *testing.T) {
	tg := NewTokenGenerator()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid token", "spkrepo_abc123def456", false},
		{"missing prefix", "abc123def456", true},
		{"wrong prefix", "other_abc123def456", true},
		{"empty token part", "spkrepo_", true},
		{"invalid base64", "spkrepo_!!!invalid!!!", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tg.ValidateTokenFormat(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTokenFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTokenGenerator_ExtractPrefix(t *testing.T) {
	tg := NewTokenGenerator()

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"normal token", "spkrepo_abc123def456", "spkrepo_abc123de"},
		{"short token", "spkrepo_abc", "spkrepo_abc"},
		{"no prefix", "invalid", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tg.ExtractPrefix(tt.token); got != tt.want {
				t.Errorf("ExtractPrefix() = %q, want %q", got, tt.want)
			}
		})
	}
}
