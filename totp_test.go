package authify_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/authify-dev/authify"
)

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("Failed to generate TOTP code: %v", err)
	}
	return code
}

func TestGenerateTOTPSecret(t *testing.T) {
	provision, err := authify.GenerateTOTPSecret("Authify", "testuser@example.com")
	if err != nil {
		t.Fatalf("Failed to generate TOTP secret: %v", err)
	}
	if provision.Secret == "" {
		t.Error("Expected a non-empty secret")
	}
	if !strings.HasPrefix(provision.URI, "otpauth://totp/") {
		t.Errorf("Expected otpauth URI, got %q", provision.URI)
	}
	if !strings.Contains(provision.URI, "Authify") {
		t.Errorf("Expected issuer in URI, got %q", provision.URI)
	}
}

func TestVerifyTOTP(t *testing.T) {
	provision, err := authify.GenerateTOTPSecret("Authify", "testuser@example.com")
	if err != nil {
		t.Fatalf("Failed to generate TOTP secret: %v", err)
	}
	secret := provision.Secret
	now := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)

	t.Run("accepts the current code", func(t *testing.T) {
		if !authify.VerifyTOTP(secret, codeAt(t, secret, now), now) {
			t.Error("Expected current code to verify")
		}
	})

	t.Run("accepts codes within two steps of drift", func(t *testing.T) {
		for _, offset := range []time.Duration{-60 * time.Second, -30 * time.Second, 30 * time.Second, 60 * time.Second} {
			if !authify.VerifyTOTP(secret, codeAt(t, secret, now.Add(offset)), now) {
				t.Errorf("Expected code at offset %v to verify", offset)
			}
		}
	})

	t.Run("rejects codes three steps away", func(t *testing.T) {
		for _, offset := range []time.Duration{-90 * time.Second, 90 * time.Second} {
			if authify.VerifyTOTP(secret, codeAt(t, secret, now.Add(offset)), now) {
				t.Errorf("Expected code at offset %v to be rejected", offset)
			}
		}
	})

	t.Run("rejects a wrong code", func(t *testing.T) {
		if authify.VerifyTOTP(secret, "000000", now) && authify.VerifyTOTP(secret, "999999", now) {
			t.Error("Expected arbitrary codes to be rejected")
		}
	})
}
