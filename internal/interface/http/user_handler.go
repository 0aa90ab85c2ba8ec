package handlers

import (
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/vidtube-api/internal/application"
	"github.com/oksasatya/vidtube-api/internal/interface/middleware"
	"github.com/oksasatya/vidtube-api/pkg/helpers"
	"github.com/oksasatya/vidtube-api/pkg/response"
	"github.com/oksasatya/vidtube-api/pkg/validation"
)

type UserHandler struct {
	Svc     *userapp.Service
	Logger  *logrus.Logger
	Cookies *helpers.Manager
	Uploads Stager
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger, cookies *helpers.Manager, uploads Stager) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger, Cookies: cookies, Uploads: uploads}
}

type registerRequest struct {
	FullName string `form:"fullName" binding:"required"`
	Email    string `form:"email" binding:"required,email"`
	Username string `form:"username" binding:"required,username"`
	Password string `form:"password" binding:"required,pwd"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required_without=Email"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,pwd"`
}

type updateEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type updateFullNameRequest struct {
	FullName string `json:"fullName" binding:"required"`
}

type loginResponse struct {
	User         any    `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (h *UserHandler) fail(c *gin.Context, err error) { FromError(c, h.Logger, err) }

func (h *UserHandler) invalid(c *gin.Context, err error) {
	response.Fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
}

func (h *UserHandler) stageFailed(c *gin.Context, err error) {
	response.Fail(c, http.StatusBadRequest, "invalid upload", map[string]string{"file": err.Error()})
}

func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		h.invalid(c, err)
		return
	}
	avatar, err := h.Uploads.Stage(c, "avatar")
	if err != nil {
		h.stageFailed(c, err)
		return
	}
	cover, err := h.Uploads.Stage(c, "coverImage")
	if err != nil {
		if avatar != "" {
			_ = os.Remove(avatar)
		}
		h.stageFailed(c, err)
		return
	}

	u, err := h.Svc.Register(c.Request.Context(), userapp.RegisterInput{
		FullName:   req.FullName,
		Email:      req.Email,
		Username:   req.Username,
		Password:   req.Password,
		AvatarPath: avatar,
		CoverPath:  cover,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, u, "user registered successfully")
}

func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalid(c, err)
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), userapp.LoginInput{Username: req.Username, Email: req.Email, Password: req.Password})
	if err != nil {
		h.fail(c, err)
		return
	}
	t := res.Tokens
	h.Cookies.SetPair(c, t.AccessToken, t.AccessTokenExpiry, t.RefreshToken, t.RefreshTokenExpiry)
	response.OK(c, http.StatusOK, loginResponse{User: res.User, AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}, "user logged in successfully")
}

func (h *UserHandler) Logout(c *gin.Context) {
	if err := h.Svc.Logout(c.Request.Context(), c.GetString(middleware.CtxUserIDKey)); err != nil {
		h.fail(c, err)
		return
	}
	h.Cookies.Clear(c)
	response.OK(c, http.StatusOK, gin.H{}, "user logged out successfully")
}

// Refresh takes the refresh token from its cookie, or from the JSON body
// for clients that cannot hold cookies.
func (h *UserHandler) Refresh(c *gin.Context) {
	token, _ := c.Cookie(helpers.RefreshTokenCookie)
	if token == "" {
		var req refreshRequest
		_ = c.ShouldBindJSON(&req)
		token = req.RefreshToken
	}
	pair, err := h.Svc.Refresh(c.Request.Context(), token)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.OK(c, http.StatusOK, pair, "access token refreshed")
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalid(c, err)
		return
	}
	err := h.Svc.ChangePassword(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), userapp.ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{}, "password updated successfully")
}

func (h *UserHandler) CurrentUser(c *gin.Context) {
	if u, ok := middleware.CurrentUser(c); ok {
		response.OK(c, http.StatusOK, u, "user retrieved successfully")
		return
	}
	u, err := h.Svc.GetCurrentUser(c.Request.Context(), c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, u, "user retrieved successfully")
}

func (h *UserHandler) UpdateEmail(c *gin.Context) {
	var req updateEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalid(c, err)
		return
	}
	u, err := h.Svc.UpdateEmail(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, u, "email updated successfully")
}

func (h *UserHandler) UpdateFullName(c *gin.Context) {
	var req updateFullNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalid(c, err)
		return
	}
	u, err := h.Svc.UpdateFullName(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), req.FullName)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, u, "full name updated successfully")
}

func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	path, err := h.Uploads.Stage(c, "avatar")
	if err != nil {
		h.stageFailed(c, err)
		return
	}
	u, err := h.Svc.UpdateAvatar(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), path)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, u, "avatar updated successfully")
}

func (h *UserHandler) UpdateCover(c *gin.Context) {
	path, err := h.Uploads.Stage(c, "coverImage")
	if err != nil {
		h.stageFailed(c, err)
		return
	}
	u, err := h.Svc.UpdateCover(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), path)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, u, "cover image updated successfully")
}

func (h *UserHandler) ChannelProfile(c *gin.Context) {
	p, err := h.Svc.GetChannelProfile(c.Request.Context(), c.Param("username"), c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, p, "user channel fetched successfully")
}

func (h *UserHandler) WatchHistory(c *gin.Context) {
	items, err := h.Svc.GetWatchHistory(c.Request.Context(), c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, items, "watch history fetched successfully")
}

func (h *UserHandler) Search(c *gin.Context) {
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchUsers(c.Request.Context(), c.Query("q"), size)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, hits, "users fetched successfully")
}
