// Package gorm implements the UserStore on a relational database via GORM.
// Postgres is what the server runs against, but nothing here is driver
// specific.
package gorm

import (
	"time"

	"github.com/authify-dev/authify"
)

// UserModel is the GORM model for users. Unlike the domain type it maps
// every field to a column, secrets included.
type UserModel struct {
	ID           string   `gorm:"primaryKey;size:64"`
	Name         string   `gorm:"size:255"`
	Email        string   `gorm:"size:255;index"`
	PasswordHash string   `gorm:"size:128"`
	Phone        string   `gorm:"size:32"`
	Role         string   `gorm:"size:16"`
	Provider     string   `gorm:"size:16"`
	GithubID     string   `gorm:"size:64;index"`
	GoogleID     string   `gorm:"size:64;index"`
	AvatarURL    string   `gorm:"size:512"`
	IsDeleted    bool     `gorm:"default:false;index"`
	IsActive     bool     `gorm:"default:true"`
	MFAActive    bool     `gorm:"default:false"`
	TOTPSecret   string   `gorm:"size:128"`
	ResetOTP     string   `gorm:"size:8"`
	OTPExpires   *time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *authify.User {
	user := &authify.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Phone:        m.Phone,
		Role:         authify.Role(m.Role),
		Provider:     authify.Provider(m.Provider),
		GithubID:     m.GithubID,
		GoogleID:     m.GoogleID,
		AvatarURL:    m.AvatarURL,
		IsDeleted:    m.IsDeleted,
		IsActive:     m.IsActive,
		MFAActive:    m.MFAActive,
		TOTPSecret:   m.TOTPSecret,
		ResetOTP:     m.ResetOTP,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.OTPExpires != nil {
		user.OTPExpires = *m.OTPExpires
	}
	return user
}

func UserToModel(u *authify.User) *UserModel {
	model := &UserModel{
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
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if !u.OTPExpires.IsZero() {
		t := u.OTPExpires
		model.OTPExpires = &t
	}
	return model
}
