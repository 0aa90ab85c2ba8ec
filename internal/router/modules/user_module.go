package modules

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/vidtube-api/internal/domain/repository"
	handlers "github.com/oksasatya/vidtube-api/internal/interface/http"
	"github.com/oksasatya/vidtube-api/internal/interface/middleware"
	"github.com/oksasatya/vidtube-api/pkg/helpers"
)

// Module wires user HTTP handlers under /v1/users.
// Public: register, login, refresh-token
// Protected: everything else, behind the access-token middleware
type Module struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
	Users   repository.UserRepository
	Redis   *redis.Client // nil disables rate limiting
	Allow   middleware.AllowFunc
}

func New(h *handlers.UserHandler, jwt *helpers.JWTManager, users repository.UserRepository, rdb *redis.Client) *Module {
	return &Module{Handler: h, JWT: jwt, Users: users, Redis: rdb}
}

// WithAllow sets the rule that lets requests skip the rate limiters.
func (m *Module) WithAllow(fn middleware.AllowFunc) *Module {
	m.Allow = fn
	return m
}

func (m *Module) Name() string { return "users" }

func (m *Module) Register(rg *gin.RouterGroup) {
	users := rg.Group("/v1/users")

	// per IP and route
	loginLimiter := middleware.RateLimit(m.Redis, 10, time.Minute, middleware.KeyByIPAndPath(), m.Allow)
	refreshLimiter := middleware.RateLimit(m.Redis, 60, time.Minute, middleware.KeyByIPAndPath(), m.Allow)
	registerLimiter := middleware.RateLimit(m.Redis, 5, time.Minute, middleware.KeyByIPAndPath(), m.Allow)

	users.POST("/register", registerLimiter, m.Handler.Register)
	users.POST("/login", loginLimiter, m.Handler.Login)
	users.POST("/refresh-token", refreshLimiter, m.Handler.Refresh)

	auth := users.Group("/")
	auth.Use(
		middleware.Auth(m.JWT, m.Users),
		middleware.RateLimit(m.Redis, 120, time.Minute, middleware.KeyByUserID(), m.Allow),
	)
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.POST("/change-password", m.Handler.ChangePassword)
		auth.GET("/current-user", m.Handler.CurrentUser)
		// PATCH per REST; POST kept for older clients
		for _, method := range []string{http.MethodPatch, http.MethodPost} {
			auth.Handle(method, "/update-email", m.Handler.UpdateEmail)
			auth.Handle(method, "/update-fullname", m.Handler.UpdateFullName)
			auth.Handle(method, "/update-avatar", m.Handler.UpdateAvatar)
			auth.Handle(method, "/update-cover", m.Handler.UpdateCover)
		}
		auth.GET("/c/:username", m.Handler.ChannelProfile)
		auth.GET("/history", m.Handler.WatchHistory)
		auth.GET("/search", m.Handler.Search)
	}
}
