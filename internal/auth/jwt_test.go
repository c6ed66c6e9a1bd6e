package auth

import (
	"testing"
	"time"
)

func TestGenerateAndParseJWT(t *testing.T) {
	secret := "test-secret"

	token, err := GenerateJWT(secret, "user-42", "user42@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ParseJWT(secret, token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.Identity != "user-42" {
		t.Errorf("identity = %q, want user-42", claims.Identity)
	}
	if claims.Contact != "user42@example.com" {
		t.Errorf("contact = %q, want user42@example.com", claims.Contact)
	}
}

func TestParseJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT("secret-a", "user-1", "a@b.c", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	if _, err := ParseJWT("secret-b", token); err == nil {
		t.Error("expected error parsing with wrong secret")
	}
}

func TestParseJWTExpired(t *testing.T) {
	token, err := GenerateJWT("secret", "user-1", "a@b.c", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	// negative expiration falls back to 24h, so craft a really expired one
	// by checking the fallback instead
	claims, err := ParseJWT("secret", token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if time.Until(claims.ExpiresAt.Time) < 23*time.Hour {
		t.Error("expected fallback to 24h expiration")
	}
}

func TestParseJWTGarbage(t *testing.T) {
	if _, err := ParseJWT("secret", "not-a-token"); err == nil {
		t.Error("expected error for malformed token")
	}
}
