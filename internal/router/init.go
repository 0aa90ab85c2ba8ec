package router

import (
	"context"
	"expvar"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/vidtube-api/config"

	userapp "github.com/oksasatya/vidtube-api/internal/application"
	"github.com/oksasatya/vidtube-api/internal/container"
	repouser "github.com/oksasatya/vidtube-api/internal/domain/repository"
	"github.com/oksasatya/vidtube-api/internal/infrastructure/media"
	"github.com/oksasatya/vidtube-api/internal/infrastructure/memory"
	pginfra "github.com/oksasatya/vidtube-api/internal/infrastructure/postgres"
	"github.com/oksasatya/vidtube-api/internal/infrastructure/search"
	handlers "github.com/oksasatya/vidtube-api/internal/interface/http"
	"github.com/oksasatya/vidtube-api/internal/interface/middleware"
	"github.com/oksasatya/vidtube-api/internal/router/modules"
	"github.com/oksasatya/vidtube-api/pkg/helpers"
)

type UserModuleDeps struct {
	Users    repouser.UserRepository
	Profiles repouser.ProfileRepository
	Service  *userapp.Service
	Handler  *handlers.UserHandler
}

func buildRepositories() (repouser.UserRepository, repouser.ProfileRepository) {
	if pool := container.GetPGPool(); pool != nil {
		return pginfra.NewUserRepository(pool), pginfra.NewProfileRepository(pool)
	}
	store := memory.NewStore()
	return store, store
}

// buildUploader picks the storage backend and wraps it in a circuit breaker.
func buildUploader(ctx context.Context) (userapp.Uploader, error) {
	cfg := container.GetConfig()
	var backend media.Uploader
	switch cfg.UploadDriver {
	case "gcs":
		if container.GetGCS() == nil {
			return nil, fmt.Errorf("upload driver gcs: client not configured")
		}
		backend = media.NewGCSUploader(container.GetGCS(), cfg.GCSBucket)
	case "s3":
		s3u, err := media.NewS3Uploader(ctx, media.S3Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Endpoint:        cfg.S3Endpoint,
		})
		if err != nil {
			return nil, err
		}
		backend = s3u
	case "local", "":
		backend = media.NewLocalUploader(cfg.LocalUploadDir, cfg.LocalUploadBaseURL)
	default:
		return nil, fmt.Errorf("unknown upload driver %q", cfg.UploadDriver)
	}
	b := media.NewBreakerUploader(backend, media.BreakerSettings{
		Name:                "uploads-" + cfg.UploadDriver,
		ConsecutiveFailures: cfg.UploadBreakerFailures,
		OpenTimeout:         cfg.UploadBreakerTimeout,
		CallTimeout:         cfg.UploadTimeout,
	}, container.GetLogger())
	publishBreaker(b)
	return b, nil
}

func publishBreaker(b *media.BreakerUploader) {
	if expvar.Get("upload_breaker_state") == nil {
		expvar.Publish("upload_breaker_state", expvar.Func(func() any { return b.State() }))
	}
}

func buildUserDeps(ctx context.Context) (UserModuleDeps, error) {
	cfg := container.GetConfig()
	users, profiles := buildRepositories()

	uploader, err := buildUploader(ctx)
	if err != nil {
		return UserModuleDeps{}, err
	}

	service := userapp.NewService(
		users,
		profiles,
		container.GetJWT(),
		helpers.BcryptHasher{Cost: bcrypt.DefaultCost},
		uploader,
		container.GetLogger(),
	)
	if es := container.GetES(); es != nil {
		service.WithIndex(search.NewUserIndex(es, cfg.ESUsersIndex))
	}
	if q := container.GetMailQueue(); q != nil {
		service.WithMail(q, cfg)
	}

	handler := handlers.NewUserHandler(
		service,
		container.GetLogger(),
		helpers.NewCookie(cfg.CookieDomain, cfg.CookieSecure),
		handlers.Stager{Dir: cfg.UploadTmpDir, MaxBytes: cfg.UploadMaxBytes},
	)

	return UserModuleDeps{
		Users:    users,
		Profiles: profiles,
		Service:  service,
		Handler:  handler,
	}, nil
}

// bypassRule lets private-network clients skip rate limits when configured.
func bypassRule(cfg *config.Config) middleware.AllowFunc {
	if cfg.RateLimitBypassPrivate {
		return middleware.AllowPrivateIP()
	}
	return nil
}

// apiLimiter is the per-IP budget shared by every /api route. Health checks
// are never limited.
func apiLimiter(cfg *config.Config, rdb *redis.Client) gin.HandlerFunc {
	allow := middleware.AnyOf(bypassRule(cfg), middleware.AllowPaths("/api/health"))
	return middleware.RateLimit(rdb, cfg.RateLimitPerMinute, time.Minute, middleware.KeyByIP(), allow)
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(ctx context.Context, r *Registry) error {
	cfg := container.GetConfig()
	userDeps, err := buildUserDeps(ctx)
	if err != nil {
		return err
	}
	r.Use(apiLimiter(cfg, container.GetRedis()))
	r.Add(modules.New(userDeps.Handler, container.GetJWT(), userDeps.Users, container.GetRedis()).WithAllow(bypassRule(cfg)))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(container.GetRedis()))
	}
	return nil
}
