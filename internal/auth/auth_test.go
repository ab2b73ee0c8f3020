package auth

import (
	"strings"
	"testing"
	"time"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "pbkdf2-sha256$") {
		t.Errorf("unexpected format: %s", hash)
	}
	if !VerifyPassword("hunter2", hash) {
		t.Error("correct password rejected")
	}
	if VerifyPassword("hunter3", hash) {
		t.Error("wrong password accepted")
	}
}

func TestHashPassword_SaltIsFresh(t *testing.T) {
	a, _ := HashPassword("same")
	b, _ := HashPassword("same")
	if a == b {
		t.Error("two hashes of the same password must differ")
	}
}

func TestVerifyPassword_Malformed(t *testing.T) {
	for _, bad := range []string{
		"",
		"plaintext",
		"pbkdf2-sha256$notanumber$c2FsdA$aGFzaA",
		"bcrypt$10$c2FsdA$aGFzaA",
		"pbkdf2-sha256$29000$!!$aGFzaA",
	} {
		if VerifyPassword("x", bad) {
			t.Errorf("malformed hash %q accepted", bad)
		}
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	raw, err := issuer.Issue(42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := issuer.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != 42 {
		t.Errorf("user id: expected 42, got %d", id)
	}
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	raw, _ := NewTokenIssuer("secret-a", time.Hour).Issue(1)
	if _, err := NewTokenIssuer("secret-b", time.Hour).Verify(raw); err == nil {
		t.Error("token signed with another secret accepted")
	}
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	issuer.ttl = -time.Minute
	raw, _ := issuer.Issue(1)
	if _, err := issuer.Verify(raw); err == nil {
		t.Error("expired token accepted")
	}
}

func TestTokenIssuer_Garbage(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	if _, err := issuer.Verify("not.a.token"); err == nil {
		t.Error("garbage token accepted")
	}
}

func TestNewAPIKeySecret(t *testing.T) {
	secret, prefix, hash, err := NewAPIKeySecret()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(prefix) != APIKeyPrefixLen || !strings.HasPrefix(secret, prefix) {
		t.Errorf("prefix %q is not the head of secret %q", prefix, secret)
	}
	if !VerifyAPIKeySecret(secret, hash) {
		t.Error("secret rejected by its own hash")
	}
	if VerifyAPIKeySecret(secret+"x", hash) {
		t.Error("tampered secret accepted")
	}
}
