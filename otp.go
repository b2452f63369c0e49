package authify

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Reset OTPs are fixed-width numeric codes valid for five minutes.
const (
	otpDigits     = 6
	OTPExpiryTime = 5 * time.Minute
)

var (
	otpMin   = int64(100000) // 10^(otpDigits-1)
	otpRange = int64(900000) // 10^otpDigits - otpMin
)

// GenerateOTP draws a 6-digit numeric code from crypto/rand. The range
// bounds guarantee exactly six digits, so the code never needs padding.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpRange))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%d", otpMin+n.Int64()), nil
}

// OTPExpiry returns the expiry timestamp for a code issued now.
func OTPExpiry(now time.Time) time.Time {
	return now.Add(OTPExpiryTime)
}
