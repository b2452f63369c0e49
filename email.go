package authify

import (
	"log"
	"time"
)

// OTPNotifier delivers password-reset codes out-of-band. Delivery is
// fire-and-forget: the service dispatches the send and does not wait for
// or surface delivery failures.
type OTPNotifier interface {
	SendResetOTP(to, userName, code string, expiresIn time.Duration) error
}

// ConsoleOTPNotifier is a development implementation that logs the code.
type ConsoleOTPNotifier struct{}

func (c *ConsoleOTPNotifier) SendResetOTP(to, userName, code string, expiresIn time.Duration) error {
	log.Printf("\n=== EMAIL: Password Reset OTP ===")
	log.Printf("To: %s", to)
	log.Printf("Subject: Reset Your Password - Authify")
	log.Printf("Body: Hi %s, your reset code is %s. It expires in %d minutes.",
		userName, code, int(expiresIn.Minutes()))
	log.Printf("=================================\n")
	return nil
}
