// Package fs provides a file-backed UserStore for development and tests.
// Each user is one JSON file; lookups other than by id scan the directory,
// which is fine at the scale this store is meant for.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/authify-dev/authify"
)

// record is the on-disk shape. The domain type hides its secret fields
// from JSON, so persistence needs its own struct.
type record struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Role         string    `json:"role"`
	Provider     string    `json:"provider"`
	GithubID     string    `json:"github_id,omitempty"`
	GoogleID     string    `json:"google_id,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	IsDeleted    bool      `json:"is_deleted"`
	IsActive     bool      `json:"is_active"`
	MFAActive    bool      `json:"mfa_active"`
	TOTPSecret   string    `json:"totp_secret,omitempty"`
	ResetOTP     string    `json:"reset_otp,omitempty"`
	OTPExpires   time.Time `json:"otp_expires,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toRecord(u *authify.User) *record {
	return &record{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Phone:        u.Phone,
		Role:         string(u.Role),
		Provider:     string(u.Provider),
		GithubID:     u.GithubID,
		GoogleID:     u.GoogleID,
		AvatarURL:    u.AvatarURL,
		IsDeleted:    u.IsDeleted,
		IsActive:     u.IsActive,
		MFAActive:    u.MFAActive,
		TOTPSecret:   u.TOTPSecret,
		ResetOTP:     u.ResetOTP,
		OTPExpires:   u.OTPExpires,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r *record) toUser() *authify.User {
	return &authify.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Phone:        r.Phone,
		Role:         authify.Role(r.Role),
		Provider:     authify.Provider(r.Provider),
		GithubID:     r.GithubID,
		GoogleID:     r.GoogleID,
		AvatarURL:    r.AvatarURL,
		IsDeleted:    r.IsDeleted,
		IsActive:     r.IsActive,
		MFAActive:    r.MFAActive,
		TOTPSecret:   r.TOTPSecret,
		ResetOTP:     r.ResetOTP,
		OTPExpires:   r.OTPExpires,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type UserStore struct {
	Root string

	mu sync.RWMutex
}

func NewUserStore(root string) *UserStore {
	return &UserStore{Root: root}
}

func (s *UserStore) userPath(id string) string {
	return filepath.Join(s.Root, "users", id+".json")
}

func (s *UserStore) Create(ctx context.Context, user *authify.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.userPath(user.ID)); err == nil {
		return fmt.Errorf("user already exists: %s", user.ID)
	}
	return s.write(user)
}

func (s *UserStore) Save(ctx context.Context, user *authify.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(user)
}

func (s *UserStore) write(user *authify.User) error {
	path := s.userPath(user.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(toRecord(user), "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*authify.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(s.userPath(id))
}

func (s *UserStore) read(path string) (*authify.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, authify.ErrUserNotFound
		}
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec.toUser(), nil
}

// scan visits every stored user until match returns true.
func (s *UserStore) scan(match func(*authify.User) bool) (*authify.User, error) {
	entries, err := os.ReadDir(filepath.Join(s.Root, "users"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, authify.ErrUserNotFound
		}
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		user, err := s.read(filepath.Join(s.Root, "users", entry.Name()))
		if err != nil {
			continue
		}
		if match(user) {
			return user, nil
		}
	}
	return nil, authify.ErrUserNotFound
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*authify.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scan(func(u *authify.User) bool { return u.Email == email })
}

func (s *UserStore) GetActiveByEmail(ctx context.Context, email string) (*authify.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scan(func(u *authify.User) bool {
		return u.Email == email && !u.IsDeleted && u.IsActive
	})
}

func (s *UserStore) GetByProviderID(ctx context.Context, provider authify.Provider, providerID string) (*authify.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scan(func(u *authify.User) bool {
		return providerID != "" && u.ProviderID(provider) == providerID
	})
}
