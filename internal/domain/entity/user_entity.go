package entity

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// User is the aggregate root for the account domain.
// Password holds the bcrypt hash; RefreshToken is the single currently valid
// refresh token (nil after logout). Neither is ever serialized.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage"`
	Password      string    `json:"-"`
	RefreshToken  *string   `json:"-"`
	WatchHistory  []string  `json:"watchHistory"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasRefreshToken reports whether token is the one currently stored.
func (u *User) HasRefreshToken(token string) bool {
	return u.RefreshToken != nil && token != "" && *u.RefreshToken == token
}

// NormalizeUsername lowercases and trims a username.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var (
	ErrEmptyPatch    = errors.New("no fields to update")
	ErrInvalidEmail  = errors.New("email is invalid")
	ErrEmptyFullName = errors.New("full name is required")
	ErrEmptyAvatar   = errors.New("avatar url is required")
	ErrEmptyPassword = errors.New("password hash is required")
)

// UserPatch lists the fields a single write path may touch.
// Nil fields are left unchanged.
type UserPatch struct {
	Email         *string
	FullName      *string
	AvatarURL     *string
	CoverImageURL *string
	PasswordHash  *string
}

// Validate checks only the fields that are set.
func (p UserPatch) Validate() error {
	if p.Email == nil && p.FullName == nil && p.AvatarURL == nil && p.CoverImageURL == nil && p.PasswordHash == nil {
		return ErrEmptyPatch
	}
	if p.Email != nil {
		if err := validate.Var(*p.Email, "required,email"); err != nil {
			return ErrInvalidEmail
		}
	}
	if p.FullName != nil && strings.TrimSpace(*p.FullName) == "" {
		return ErrEmptyFullName
	}
	if p.AvatarURL != nil && strings.TrimSpace(*p.AvatarURL) == "" {
		return ErrEmptyAvatar
	}
	if p.PasswordHash != nil && *p.PasswordHash == "" {
		return ErrEmptyPassword
	}
	return nil
}

// Apply copies the set fields onto u.
func (p UserPatch) Apply(u *User) {
	if p.Email != nil {
		u.Email = NormalizeEmail(*p.Email)
	}
	if p.FullName != nil {
		u.FullName = strings.TrimSpace(*p.FullName)
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
	if p.CoverImageURL != nil {
		u.CoverImageURL = *p.CoverImageURL
	}
	if p.PasswordHash != nil {
		u.Password = *p.PasswordHash
	}
}
