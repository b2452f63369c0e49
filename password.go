package authify

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher wraps one-way password hashing. The zero value uses
// bcrypt's default cost and is ready to use.
type PasswordHasher struct {
	// Cost is the bcrypt cost factor. Zero means bcrypt.DefaultCost.
	Cost int
}

func (h PasswordHasher) cost() int {
	if h.Cost <= 0 {
		return bcrypt.DefaultCost
	}
	return h.Cost
}

// Hash returns the salted bcrypt hash of plaintext. The plaintext is never
// logged or persisted.
func (h PasswordHasher) Hash(plaintext string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost())
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(out), nil
}

// Verify reports whether plaintext matches hash. A wrong password or a
// malformed hash both return false; Verify never fails loudly on mismatch.
func (h PasswordHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
