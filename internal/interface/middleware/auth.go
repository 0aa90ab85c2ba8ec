package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/vidtube-api/internal/domain/entity"
	"github.com/oksasatya/vidtube-api/internal/domain/repository"
	"github.com/oksasatya/vidtube-api/pkg/helpers"
	"github.com/oksasatya/vidtube-api/pkg/response"
)

const (
	CtxUserIDKey = "userID"
	CtxUserKey   = "user"
)

// accessToken reads the token from the accessToken cookie, falling back to
// an "Authorization: Bearer" header.
func accessToken(c *gin.Context) string {
	if tok, err := c.Cookie(helpers.AccessTokenCookie); err == nil && tok != "" {
		return tok
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Auth verifies the access token and loads its user. On success userID and
// user are set in the Gin context.
func Auth(jwt *helpers.JWTManager, users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := accessToken(c)
		if token == "" {
			response.Fail(c, http.StatusUnauthorized, "unauthorized request", nil)
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.Fail(c, http.StatusUnauthorized, "invalid access token", nil)
			return
		}
		u, err := users.GetByID(c.Request.Context(), claims.UserID)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && u == nil) {
			response.Fail(c, http.StatusUnauthorized, "invalid access token", nil)
			return
		}
		if err != nil {
			_ = c.Error(err)
			response.Fail(c, http.StatusInternalServerError, "internal server error", nil)
			return
		}
		c.Set(CtxUserIDKey, u.ID)
		c.Set(CtxUserKey, u)
		c.Next()
	}
}

// CurrentUser returns the user loaded by Auth.
func CurrentUser(c *gin.Context) (*entity.User, bool) {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*entity.User)
	return u, ok && u != nil
}
