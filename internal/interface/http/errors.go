package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/vidtube-api/internal/application"
	"github.com/oksasatya/vidtube-api/pkg/response"
)

// statusFor maps service error kinds to HTTP statuses.
func statusFor(k application.Kind) int {
	switch k {
	case application.KindBadRequest:
		return http.StatusBadRequest
	case application.KindUnauthorized:
		return http.StatusUnauthorized
	case application.KindNotFound:
		return http.StatusNotFound
	case application.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FromError is the single place where service errors become HTTP replies.
func FromError(c *gin.Context, logger *logrus.Logger, err error) {
	var appErr *application.Error
	if !errors.As(err, &appErr) {
		if logger != nil {
			logger.WithError(err).WithField("request_id", c.GetString(response.RequestIDKey)).Error("unhandled error")
		}
		response.Fail(c, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	status := statusFor(appErr.Kind)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.WithError(err).WithField("request_id", c.GetString(response.RequestIDKey)).Error(appErr.Message)
	}
	response.Fail(c, status, appErr.Message, nil)
}
