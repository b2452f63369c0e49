package authify

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP parameters: 30-second steps, 6 digits, and a tolerance of two
// steps either side (~±60s of clock skew between server and phone).
const totpSkew = 2

// TOTPProvision is the result of a 2FA setup: the base32 seed and an
// otpauth:// URI an authenticator app can scan or the user can type in.
type TOTPProvision struct {
	Secret string
	URI    string
}

// GenerateTOTPSecret creates a fresh base32 TOTP seed for the account,
// labelled with the issuer and the user's email.
func GenerateTOTPSecret(issuer, accountName string) (*TOTPProvision, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		SecretSize:  32,
	})
	if err != nil {
		return nil, err
	}
	return &TOTPProvision{Secret: key.Secret(), URI: key.URL()}, nil
}

// VerifyTOTP checks a 6-digit code against the stored seed at the given
// time. Codes up to two steps before or after the current step are
// accepted; anything further is rejected.
func VerifyTOTP(secret, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
