package application

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/vidtube-api/config"
	"github.com/oksasatya/vidtube-api/internal/domain/entity"
	repo "github.com/oksasatya/vidtube-api/internal/domain/repository"
	"github.com/oksasatya/vidtube-api/pkg/helpers"
)

// bcrypt ignores input past this length and x/crypto rejects it outright.
const maxPasswordBytes = 72

const passwordTooLong = "password must be at most 72 bytes"

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// Uploader stores a locally staged file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath, folder string) (string, error)
}

// UserIndex keeps a searchable copy of public user fields.
type UserIndex interface {
	IndexUser(ctx context.Context, u *entity.User) error
	SearchUsers(ctx context.Context, q string, size int) ([]entity.UserSummary, error)
}

// MailQueue enqueues email jobs for the email worker.
type MailQueue interface {
	PublishJSON(ctx context.Context, body any) error
}

type Service struct {
	Users    repo.UserRepository
	Profiles repo.ProfileRepository
	JWT      *helpers.JWTManager
	Hasher   PasswordHasher
	Uploader Uploader
	Index    UserIndex // optional
	Mail     MailQueue // optional
	Logger   *logrus.Logger

	mailCfg *config.Config

	// removeFile deletes staged uploads; os.Remove unless overridden in tests.
	removeFile func(string) error
}

func NewService(users repo.UserRepository, profiles repo.ProfileRepository, jwt *helpers.JWTManager, hasher PasswordHasher, uploader Uploader, logger *logrus.Logger) *Service {
	return &Service{
		Users:      users,
		Profiles:   profiles,
		JWT:        jwt,
		Hasher:     hasher,
		Uploader:   uploader,
		Logger:     logger,
		removeFile: os.Remove,
	}
}

// WithIndex enables search indexing.
func (s *Service) WithIndex(idx UserIndex) *Service {
	s.Index = idx
	return s
}

// WithMail enables account notification emails. cfg supplies the branding
// and links rendered into every email.
func (s *Service) WithMail(q MailQueue, cfg *config.Config) *Service {
	s.Mail = q
	s.mailCfg = cfg
	return s
}

// TokenPair is what a successful login or refresh hands to the transport layer.
type TokenPair struct {
	AccessToken        string    `json:"accessToken"`
	AccessTokenExpiry  time.Time `json:"-"`
	RefreshToken       string    `json:"refreshToken"`
	RefreshTokenExpiry time.Time `json:"-"`
}

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func (s *Service) log() *logrus.Logger {
	if s.Logger == nil {
		return discardLogger
	}
	return s.Logger
}

// discard removes staged local files; empty paths are skipped.
func (s *Service) discard(paths ...string) {
	remove := s.removeFile
	if remove == nil {
		remove = os.Remove
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log().WithError(err).WithField("path", p).Warn("remove staged upload failed")
		}
	}
}

// loadUser maps repository lookups to service errors.
func (s *Service) loadUser(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.Users.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && u == nil) {
		return nil, notFound("user not found")
	}
	if err != nil {
		return nil, internal("load user failed", err)
	}
	return u, nil
}

func (s *Service) reindex(ctx context.Context, u *entity.User) {
	if s.Index == nil || u == nil {
		return
	}
	if err := s.Index.IndexUser(ctx, u); err != nil {
		s.log().WithError(err).WithField("user_id", u.ID).Warn("index user failed")
	}
}
