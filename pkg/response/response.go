package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope of every JSON reply.
type APIResponse[T any] struct {
	StatusCode int               `json:"statusCode"`
	Data       T                 `json:"data"`
	Message    string            `json:"message"`
	Success    bool              `json:"success"`
	RequestID  string            `json:"requestId,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// RequestIDKey is the gin context key set by the request id middleware.
const RequestIDKey = "request_id"

func Success[T any](ctx *gin.Context, status int, data T, message string) APIResponse[T] {
	if status == 0 {
		status = http.StatusOK
	}
	return APIResponse[T]{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
		RequestID:  ctx.GetString(RequestIDKey),
		Timestamp:  time.Now().UTC(),
	}
}

func Error(ctx *gin.Context, status int, message string, details map[string]string) APIResponse[any] {
	if status == 0 {
		status = http.StatusBadRequest
	}
	return APIResponse[any]{
		StatusCode: status,
		Message:    message,
		Success:    false,
		RequestID:  ctx.GetString(RequestIDKey),
		Timestamp:  time.Now().UTC(),
		Errors:     details,
	}
}

// OK writes a success envelope.
func OK[T any](ctx *gin.Context, status int, data T, message string) {
	res := Success(ctx, status, data, message)
	ctx.JSON(res.StatusCode, res)
}

// Fail writes an error envelope and aborts the chain.
func Fail(ctx *gin.Context, status int, message string, details map[string]string) {
	res := Error(ctx, status, message, details)
	ctx.AbortWithStatusJSON(res.StatusCode, res)
}
