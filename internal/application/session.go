package application

import (
	"context"
	"errors"
	"strings"

	"github.com/oksasatya/vidtube-api/internal/domain/entity"
	repo "github.com/oksasatya/vidtube-api/internal/domain/repository"
	"github.com/oksasatya/vidtube-api/pkg/helpers"
)

type LoginInput struct {
	Username string
	Email    string
	Password string
}

type LoginResult struct {
	User   *entity.User
	Tokens TokenPair
}

// issueTokens mints a new access/refresh pair for u. Nothing is persisted.
func (s *Service) issueTokens(u *entity.User) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(helpers.Identity{
		UserID:   u.ID,
		Email:    u.Email,
		Username: u.Username,
		FullName: u.FullName,
	})
	if err != nil {
		s.log().WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		return TokenPair{}, internal("something went wrong while generating access and refresh tokens", err)
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID)
	if err != nil {
		s.log().WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		return TokenPair{}, internal("something went wrong while generating access and refresh tokens", err)
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// Login verifies credentials, then stores the new refresh token on the user.
// Concurrent logins for one user are last-write-wins on the refresh slot.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	username := entity.NormalizeUsername(in.Username)
	email := entity.NormalizeEmail(in.Email)
	if username == "" && email == "" {
		return nil, badRequest("username or email is required")
	}
	if in.Password == "" {
		return nil, badRequest("password is required")
	}

	u, err := s.Users.GetByUsernameOrEmail(ctx, username, email)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && u == nil) {
		return nil, notFound("user not found")
	}
	if err != nil {
		return nil, internal("load user failed", err)
	}
	if !s.Hasher.Verify(in.Password, u.Password) {
		return nil, unauthorized("invalid user credentials")
	}

	pair, err := s.issueTokens(u)
	if err != nil {
		return nil, err
	}
	if err := s.Users.SetRefreshToken(ctx, u.ID, &pair.RefreshToken); err != nil {
		return nil, internal("something went wrong while generating access and refresh tokens", err)
	}
	u.RefreshToken = &pair.RefreshToken

	s.log().WithField("user_id", u.ID).Info("user logged in")
	return &LoginResult{User: u, Tokens: pair}, nil
}

// Logout clears the stored refresh token so no refresh can succeed until the
// next login.
func (s *Service) Logout(ctx context.Context, userID string) error {
	err := s.Users.SetRefreshToken(ctx, userID, nil)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("user not found")
	}
	if err != nil {
		return internal("logout failed", err)
	}
	s.log().WithField("user_id", userID).Info("user logged out")
	return nil
}

// Refresh exchanges the presented refresh token for a new pair. The presented
// token must equal the stored one, and the stored slot is swapped atomically,
// so a token is accepted at most once.
func (s *Service) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return TokenPair{}, unauthorized("unauthorized request")
	}
	claims, err := s.JWT.ParseRefreshToken(presented)
	if err != nil {
		return TokenPair{}, newError(KindUnauthorized, "invalid refresh token", err)
	}
	u, err := s.Users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && u == nil) {
		return TokenPair{}, newError(KindUnauthorized, "invalid refresh token", err)
	}
	if err != nil {
		return TokenPair{}, internal("load user failed", err)
	}
	if !u.HasRefreshToken(presented) {
		s.log().WithField("user_id", u.ID).Warn("stale refresh token presented")
		return TokenPair{}, unauthorized("refresh token is expired or used")
	}

	pair, err := s.issueTokens(u)
	if err != nil {
		return TokenPair{}, err
	}
	swapped, err := s.Users.CompareAndSwapRefreshToken(ctx, u.ID, presented, pair.RefreshToken)
	if err != nil {
		return TokenPair{}, internal("something went wrong while generating access and refresh tokens", err)
	}
	if !swapped {
		return TokenPair{}, unauthorized("refresh token is expired or used")
	}
	return pair, nil
}

type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
}

// ChangePassword writes only the password hash; the stored refresh token is
// left alone.
func (s *Service) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	if in.CurrentPassword == "" || in.NewPassword == "" {
		return badRequest("current and new password are required")
	}
	if len(in.NewPassword) > maxPasswordBytes {
		return badRequest(passwordTooLong)
	}
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.Hasher.Verify(in.CurrentPassword, u.Password) {
		return unauthorized("wrong password")
	}
	hash, err := s.Hasher.Hash(in.NewPassword)
	if err != nil {
		return internal("hash password failed", err)
	}
	if _, err := s.Users.UpdateFields(ctx, u.ID, entity.UserPatch{PasswordHash: &hash}); err != nil {
		return internal("update password failed", err)
	}
	s.notify(ctx, u, mailPasswordChanged)
	return nil
}
