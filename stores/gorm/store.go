package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/authify-dev/authify"
)

// AutoMigrate creates or updates the users table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}

// UserStore implements authify.UserStore using GORM.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, user *authify.User) error {
	return s.db.WithContext(ctx).Create(UserToModel(user)).Error
}

func (s *UserStore) Save(ctx context.Context, user *authify.User) error {
	return s.db.WithContext(ctx).Save(UserToModel(user)).Error
}

func (s *UserStore) first(ctx context.Context, query string, args ...any) (*authify.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).First(&model, append([]any{query}, args...)...).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authify.ErrUserNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*authify.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*authify.User, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *UserStore) GetActiveByEmail(ctx context.Context, email string) (*authify.User, error) {
	return s.first(ctx, "email = ? AND is_deleted = ? AND is_active = ?", email, false, true)
}

func (s *UserStore) GetByProviderID(ctx context.Context, provider authify.Provider, providerID string) (*authify.User, error) {
	switch provider {
	case authify.ProviderGithub:
		return s.first(ctx, "github_id = ?", providerID)
	case authify.ProviderGoogle:
		return s.first(ctx, "google_id = ?", providerID)
	}
	return nil, authify.ErrUserNotFound
}
