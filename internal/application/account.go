package application

import (
	"context"
	"errors"
	"strings"

	"github.com/oksasatya/vidtube-api/internal/domain/entity"
	repo "github.com/oksasatya/vidtube-api/internal/domain/repository"
	mailtpl "github.com/oksasatya/vidtube-api/pkg/mailer/templates"
)

const (
	avatarFolder = "avatars"
	coverFolder  = "covers"
)

// RegisterInput carries the form fields and the local paths of staged uploads.
type RegisterInput struct {
	FullName   string
	Email      string
	Username   string
	Password   string
	AvatarPath string
	CoverPath  string
}

// Register creates a user. Staged files are removed on every return path.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	defer s.discard(in.AvatarPath, in.CoverPath)

	if in.AvatarPath == "" {
		return nil, badRequest("avatar file is required")
	}
	for _, f := range []string{in.FullName, in.Email, in.Username, in.Password} {
		if strings.TrimSpace(f) == "" {
			return nil, badRequest("all fields are required")
		}
	}
	username := entity.NormalizeUsername(in.Username)
	email := entity.NormalizeEmail(in.Email)
	if err := (entity.UserPatch{Email: &email}).Validate(); err != nil {
		return nil, badRequest("email is invalid")
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, badRequest(passwordTooLong)
	}

	exists, err := s.Users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, internal("check existing user failed", err)
	}
	if exists {
		return nil, conflict("user with email or username already exists")
	}

	// nothing is uploaded until the input is fully accepted
	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, internal("hash password failed", err)
	}

	avatarURL, err := s.Uploader.Upload(ctx, in.AvatarPath, avatarFolder)
	if err != nil || avatarURL == "" {
		s.log().WithError(err).Warn("avatar upload failed")
		return nil, newError(KindBadRequest, "avatar upload failed", err)
	}
	var coverURL string
	if in.CoverPath != "" {
		coverURL, err = s.Uploader.Upload(ctx, in.CoverPath, coverFolder)
		if err != nil {
			s.log().WithError(err).Warn("cover image upload failed")
			return nil, newError(KindBadRequest, "cover image upload failed", err)
		}
	}

	u := &entity.User{
		Username:      username,
		Email:         email,
		FullName:      strings.TrimSpace(in.FullName),
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		Password:      hash,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, conflict("user with email or username already exists")
		}
		return nil, internal("something went wrong while creating the user", err)
	}

	created, err := s.Users.GetByID(ctx, u.ID)
	if err != nil || created == nil {
		return nil, internal("something went wrong while creating the user", err)
	}
	s.log().WithField("user_id", created.ID).WithField("username", created.Username).Info("user registered")
	s.reindex(ctx, created)
	s.notify(ctx, created, mailWelcome)
	return created, nil
}

// GetCurrentUser returns the user by id.
func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*entity.User, error) {
	return s.loadUser(ctx, userID)
}

// UpdateEmail changes only the email field.
func (s *Service) UpdateEmail(ctx context.Context, userID, email string) (*entity.User, error) {
	email = entity.NormalizeEmail(email)
	if email == "" {
		return nil, badRequest("email is required")
	}
	before, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if before.Email == email {
		return before, nil
	}
	taken, err := s.Users.GetByUsernameOrEmail(ctx, "", email)
	if err == nil && taken != nil && taken.ID != userID {
		return nil, conflict("email already in use")
	}
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, internal("check email failed", err)
	}
	u, err := s.update(ctx, userID, entity.UserPatch{Email: &email})
	if err != nil {
		return nil, err
	}
	// the old address learns about the change
	s.notify(ctx, before, mailEmailChanged, mailtpl.WithNewEmail(u.Email))
	return u, nil
}

// UpdateFullName changes only the full name.
func (s *Service) UpdateFullName(ctx context.Context, userID, fullName string) (*entity.User, error) {
	if strings.TrimSpace(fullName) == "" {
		return nil, badRequest("full name is required")
	}
	return s.update(ctx, userID, entity.UserPatch{FullName: &fullName})
}

// UpdateAvatar uploads the staged file and stores its URL.
func (s *Service) UpdateAvatar(ctx context.Context, userID, localPath string) (*entity.User, error) {
	return s.replaceImage(ctx, userID, localPath, avatarFolder, "avatar file is required", func(url string) entity.UserPatch {
		return entity.UserPatch{AvatarURL: &url}
	})
}

// UpdateCover uploads the staged file and stores its URL.
func (s *Service) UpdateCover(ctx context.Context, userID, localPath string) (*entity.User, error) {
	return s.replaceImage(ctx, userID, localPath, coverFolder, "cover image file is required", func(url string) entity.UserPatch {
		return entity.UserPatch{CoverImageURL: &url}
	})
}

func (s *Service) replaceImage(ctx context.Context, userID, localPath, folder, missing string, patch func(string) entity.UserPatch) (*entity.User, error) {
	defer s.discard(localPath)
	if localPath == "" {
		return nil, badRequest(missing)
	}
	url, err := s.Uploader.Upload(ctx, localPath, folder)
	if err != nil || url == "" {
		s.log().WithError(err).WithField("user_id", userID).Warn("image upload failed")
		return nil, newError(KindBadRequest, "error while uploading "+strings.TrimSuffix(folder, "s"), err)
	}
	return s.update(ctx, userID, patch(url))
}

// update validates only the patched fields and writes them.
func (s *Service) update(ctx context.Context, userID string, patch entity.UserPatch) (*entity.User, error) {
	if err := patch.Validate(); err != nil {
		return nil, newError(KindBadRequest, err.Error(), err)
	}
	u, err := s.Users.UpdateFields(ctx, userID, patch)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil, notFound("user not found")
	case errors.Is(err, repo.ErrDuplicate):
		return nil, conflict("email already in use")
	case err != nil:
		return nil, internal("update user failed", err)
	}
	s.reindex(ctx, u)
	return u, nil
}

// SearchUsers queries the search index; without one it returns nothing.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]entity.UserSummary, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, badRequest("query is required")
	}
	if s.Index == nil {
		return []entity.UserSummary{}, nil
	}
	hits, err := s.Index.SearchUsers(ctx, q, size)
	if err != nil {
		return nil, internal("search failed", err)
	}
	return hits, nil
}
