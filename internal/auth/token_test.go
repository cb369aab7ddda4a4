package auth

import (
	"testing"
	"time"

	"delivery/internal/domain"
)

func TestMintVerify_Roundtrip(t *testing.T) {
	svc := NewTokenService("secret-a", time.Hour)

	for _, want := range []domain.Identity{
		domain.CustomerIdentity("customer-1"),
		domain.DriverIdentity("driver-1"),
	} {
		token, err := svc.Mint(want)
		if err != nil {
			t.Fatalf("mint failed: %v", err)
		}
		got := svc.Verify(token)
		if got != want {
			t.Errorf("roundtrip: got %v, want %v", got, want)
		}
	}
}

func TestVerify_FailureDegradesToAnonymous(t *testing.T) {
	svc := NewTokenService("secret-a", time.Hour)
	other := NewTokenService("secret-b", time.Hour)

	token, err := other.Mint(domain.CustomerIdentity("customer-1"))
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	for _, bad := range []string{
		token,         // wrong secret
		"not-a-token", // garbage
		"",            // empty
	} {
		if got := svc.Verify(bad); got != domain.Anonymous() {
			t.Errorf("Verify(%q): expected Anonymous, got %v", bad, got)
		}
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	svc := NewTokenService("secret-a", -time.Minute)

	token, err := svc.Mint(domain.DriverIdentity("driver-1"))
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if got := svc.Verify(token); got != domain.Anonymous() {
		t.Errorf("expected Anonymous for expired token, got %v", got)
	}
}

func TestMint_RejectsAnonymous(t *testing.T) {
	svc := NewTokenService("secret-a", time.Hour)
	if _, err := svc.Mint(domain.Anonymous()); err == nil {
		t.Error("expected mint to reject an anonymous identity")
	}
}
