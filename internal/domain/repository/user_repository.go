package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/vidtube-api/internal/domain/entity"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate username or email")
)

// UserRepository defines the interface for user-related database operations.
// Every write touches only the fields named by the method or the patch.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	// GetByUsernameOrEmail matches username (case-insensitive) or email.
	// Empty arguments never match.
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*entity.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	UpdateFields(ctx context.Context, id string, patch entity.UserPatch) (*entity.User, error)
	// SetRefreshToken overwrites the stored refresh token; nil clears it.
	SetRefreshToken(ctx context.Context, id string, token *string) error
	// CompareAndSwapRefreshToken stores next only if the stored token equals
	// current. It reports whether the swap happened.
	CompareAndSwapRefreshToken(ctx context.Context, id, current, next string) (bool, error)
}

// ProfileRepository runs the read-side aggregations.
type ProfileRepository interface {
	// ChannelProfile returns ErrNotFound when no user has the username.
	// viewerID may be empty.
	ChannelProfile(ctx context.Context, username, viewerID string) (*entity.ChannelProfile, error)
	// WatchHistory returns ErrNotFound when the user does not exist.
	WatchHistory(ctx context.Context, userID string) ([]entity.WatchHistoryItem, error)
}
