package authify

import (
	"context"
	"errors"
	"time"
)

// Role is the authorization level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleAdmin
}

// Provider is the authentication origin of an account.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGithub Provider = "github"
	ProviderGoogle Provider = "google"
)

// User is one durable account.
//
// Email, when present, is stored lowercase and is unique among non-deleted
// accounts. PasswordHash is empty for OAuth-only accounts. ResetOTP and
// OTPExpires are transient reset-flow state and are always set and cleared
// together.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone,omitempty"`
	Role         Role      `json:"role"`
	Provider     Provider  `json:"provider"`
	GithubID     string    `json:"githubId,omitempty"`
	GoogleID     string    `json:"googleId,omitempty"`
	AvatarURL    string    `json:"avatar,omitempty"`
	IsDeleted    bool      `json:"-"`
	IsActive     bool      `json:"-"`
	MFAActive    bool      `json:"isMfaActive"`
	TOTPSecret   string    `json:"-"`
	ResetOTP     string    `json:"-"`
	OTPExpires   time.Time `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile is the sanitized view of a User returned to clients. It never
// carries the password hash, OTP state, the TOTP secret or lifecycle flags.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	Provider  Provider  `json:"provider"`
	AvatarURL string    `json:"avatar,omitempty"`
	MFAActive bool      `json:"isMfaActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile returns the client-safe projection of the account.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		Provider:  u.Provider,
		AvatarURL: u.AvatarURL,
		MFAActive: u.MFAActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// ProviderID returns the stored id for an OAuth provider, if any.
func (u *User) ProviderID(p Provider) string {
	switch p {
	case ProviderGithub:
		return u.GithubID
	case ProviderGoogle:
		return u.GoogleID
	}
	return ""
}

// SetProviderID records the provider-side id for an OAuth provider.
func (u *User) SetProviderID(p Provider, id string) {
	switch p {
	case ProviderGithub:
		u.GithubID = id
	case ProviderGoogle:
		u.GoogleID = id
	}
}

// ErrUserNotFound is returned by UserStore lookups with no match.
var ErrUserNotFound = errors.New("user not found")

// UserStore is the persistent collaborator holding account records.
// Implementations must treat Save as a single-record atomic upsert; the
// resolver relies on the store's own per-record atomicity, not on
// application-level locking.
type UserStore interface {
	// Create persists a new user. The caller assigns the ID.
	Create(ctx context.Context, u *User) error

	// GetByID retrieves a user regardless of lifecycle state.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by normalized email regardless of
	// lifecycle state (soft-deleted accounts included, for reactivation).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetActiveByEmail retrieves a user by normalized email that is
	// neither soft-deleted nor deactivated.
	GetActiveByEmail(ctx context.Context, email string) (*User, error)

	// GetByProviderID retrieves a user by its github/google id.
	GetByProviderID(ctx context.Context, provider Provider, providerID string) (*User, error)

	// Save upserts the full user record.
	Save(ctx context.Context, u *User) error
}
