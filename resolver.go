package authify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Passwords shorter than this are rejected at signup and reset.
const MinPasswordLength = 6

// Both "no such user" and "wrong password" surface this exact message so
// login failures cannot be used to enumerate accounts.
const incorrectCredentials = "Incorrect credentials."

// OAuthProfile is the provider-supplied identity used to resolve or
// create an account. Email may be empty when the provider withholds it.
type OAuthProfile struct {
	ProviderID string
	Name       string
	Email      string
	AvatarURL  string
}

// IdentityResolver turns a credential presentation into a concrete User,
// applying the creation, reactivation and linking rules.
type IdentityResolver struct {
	Store  UserStore
	Hasher PasswordHasher

	// Now is the resolver's clock; tests override it to probe OTP expiry.
	Now func() time.Time
}

func (r *IdentityResolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// NormalizeEmail lowercases and trims an email address. All store lookups
// and writes go through this so that casing never splits an identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterLocal creates a local-password account.
//
// An active account with the same email is a conflict. A soft-deleted
// account with the same email is reactivated in place: name, password,
// phone and role are overwritten and the MFA state cleared, but the id is
// preserved so records referencing it stay valid.
func (r *IdentityResolver) RegisterLocal(ctx context.Context, name, email, password, phone string, role Role) (*User, error) {
	if name == "" || email == "" || password == "" {
		return nil, ErrBadRequest("All fields are required")
	}
	if len(password) < MinPasswordLength {
		return nil, ErrBadRequest("Password must be at least 6 characters long")
	}
	if role == "" {
		role = RoleUser
	}
	if !ValidRole(role) {
		return nil, ErrBadRequest("Invalid role")
	}
	email = NormalizeEmail(email)

	existing, err := r.Store.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if existing != nil && !existing.IsDeleted && existing.IsActive {
		return nil, ErrConflict("user already exists")
	}

	hash, err := r.Hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	if existing != nil && existing.IsDeleted {
		existing.Name = name
		existing.PasswordHash = hash
		existing.Phone = phone
		existing.Role = role
		existing.IsDeleted = false
		existing.IsActive = true
		existing.MFAActive = false
		existing.TOTPSecret = ""
		existing.UpdatedAt = r.now()
		if err := r.Store.Save(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	user := &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Phone:        phone,
		Role:         role,
		Provider:     ProviderLocal,
		IsActive:     true,
		CreatedAt:    r.now(),
		UpdatedAt:    r.now(),
	}
	if err := r.Store.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// VerifyLocalCredentials resolves an email+password presentation. Unknown
// email, deleted or deactivated account, and wrong password all fail with
// the identical generic error.
func (r *IdentityResolver) VerifyLocalCredentials(ctx context.Context, email, password string) (*User, error) {
	if email == "" || password == "" {
		return nil, ErrBadRequest("Email and password are required")
	}
	user, err := r.Store.GetActiveByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthorized(incorrectCredentials)
		}
		return nil, err
	}
	if user.PasswordHash == "" || !r.Hasher.Verify(password, user.PasswordHash) {
		return nil, ErrUnauthorized(incorrectCredentials)
	}
	return user, nil
}

// ResolveOAuthIdentity resolves a provider profile to an account, creating
// one on first login. OAuth accounts never carry a password. When an
// existing account has no email and the profile now supplies one, the
// email is backfilled; an existing value is never overwritten.
func (r *IdentityResolver) ResolveOAuthIdentity(ctx context.Context, provider Provider, profile OAuthProfile) (*User, error) {
	if provider != ProviderGithub && provider != ProviderGoogle {
		return nil, ErrBadRequest("Unsupported OAuth provider")
	}
	if profile.ProviderID == "" {
		return nil, ErrBadRequest("OAuth profile has no provider id")
	}

	user, err := r.Store.GetByProviderID(ctx, provider, profile.ProviderID)
	if err == nil {
		if user.Email == "" && profile.Email != "" {
			user.Email = NormalizeEmail(profile.Email)
			user.UpdatedAt = r.now()
			if saveErr := r.Store.Save(ctx, user); saveErr != nil {
				slog.Warn("failed to backfill oauth email", "provider", provider, "err", saveErr)
			}
		}
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	user = &User{
		ID:        uuid.NewString(),
		Name:      profile.Name,
		Email:     NormalizeEmail(profile.Email),
		Role:      RoleUser,
		Provider:  provider,
		AvatarURL: profile.AvatarURL,
		IsActive:  true,
		CreatedAt: r.now(),
		UpdatedAt: r.now(),
	}
	user.SetProviderID(provider, profile.ProviderID)
	if err := r.Store.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GenerateResetOTP mints a fresh reset code for the account, overwriting
// any previous one. Exactly one code per account is valid at a time.
func (r *IdentityResolver) GenerateResetOTP(ctx context.Context, email string) (*User, string, error) {
	if email == "" {
		return nil, "", ErrBadRequest("Email is required")
	}
	user, err := r.Store.GetActiveByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrNotFound("User not found with this email address")
		}
		return nil, "", err
	}

	code, err := GenerateOTP()
	if err != nil {
		return nil, "", err
	}
	user.ResetOTP = code
	user.OTPExpires = OTPExpiry(r.now())
	user.UpdatedAt = r.now()
	if err := r.Store.Save(ctx, user); err != nil {
		return nil, "", err
	}
	return user, code, nil
}

// VerifyResetOTP checks a pending reset code without consuming it; it may
// be called any number of times before the final reset step.
func (r *IdentityResolver) VerifyResetOTP(ctx context.Context, email, code string) error {
	if email == "" || code == "" {
		return ErrBadRequest("Email and OTP are required")
	}
	user, err := r.Store.GetActiveByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrNotFound("User not found")
		}
		return err
	}
	if user.ResetOTP == "" || user.OTPExpires.IsZero() {
		return ErrBadRequest("No password reset request found")
	}
	if user.OTPExpires.Before(r.now()) {
		return ErrExpired("OTP has expired. Please request a new one")
	}
	if user.ResetOTP != code {
		return ErrUnauthorized("Invalid OTP")
	}
	return nil
}

// CompleteReset re-runs the full OTP check (a prior verify call is never
// trusted), then persists the new password and clears the OTP state in
// the same write, making the code single-use.
func (r *IdentityResolver) CompleteReset(ctx context.Context, email, code, newPassword, confirmPassword string) error {
	if email == "" || code == "" || newPassword == "" || confirmPassword == "" {
		return ErrBadRequest("All fields are required")
	}
	if newPassword != confirmPassword {
		return ErrBadRequest("Passwords do not match")
	}
	if len(newPassword) < MinPasswordLength {
		return ErrBadRequest("Password must be at least 6 characters long")
	}
	if err := r.VerifyResetOTP(ctx, email, code); err != nil {
		return err
	}

	user, err := r.Store.GetActiveByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	hash, err := r.Hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.ResetOTP = ""
	user.OTPExpires = time.Time{}
	user.UpdatedAt = r.now()
	return r.Store.Save(ctx, user)
}

// UpdatePassword changes the password of an authenticated user after
// verifying the current one. The new password must differ.
func (r *IdentityResolver) UpdatePassword(ctx context.Context, user *User, currentPassword, newPassword, confirmPassword string) error {
	if currentPassword == "" || newPassword == "" || confirmPassword == "" {
		return ErrBadRequest("All fields are required")
	}
	if newPassword != confirmPassword {
		return ErrBadRequest("New passwords do not match")
	}
	if len(newPassword) < MinPasswordLength {
		return ErrBadRequest("Password must be at least 6 characters long")
	}
	if !r.Hasher.Verify(currentPassword, user.PasswordHash) {
		return ErrUnauthorized("Current password is incorrect")
	}
	if r.Hasher.Verify(newPassword, user.PasswordHash) {
		return ErrBadRequest("New password must be different from current password")
	}
	hash, err := r.Hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = r.now()
	return r.Store.Save(ctx, user)
}
