package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bfoproxy/internal/core/apperror"
	"bfoproxy/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		status, body := ErrorBody(c, err)
		c.JSON(status, body)
	}
}

// ErrorBody renders err as {code, message, details}. RateLimited errors also set Retry-After.
func ErrorBody(c *gin.Context, err error) (int, gin.H) {
	ctx := c.Request.Context()

	appErr, ok := apperror.AsAppError(err)
	if !ok {
		logger.Error(ctx, "unhandled error", "error", err)
		return http.StatusInternalServerError, gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{"request_id": c.GetString("request_id")},
		}
	}

	switch {
	case appErr.HTTPStatus >= http.StatusInternalServerError:
		logger.Error(ctx, "request error", "code", appErr.Code, "message", appErr.Message, "cause", appErr.Err)
	case appErr.Err != nil:
		logger.Warn(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
	}

	if appErr.Code == apperror.CodeRateLimited {
		if seconds, ok := appErr.Details["remaining_seconds"].(int); ok {
			c.Header("Retry-After", strconv.Itoa(seconds))
		}
	}

	message := appErr.Message
	details := appErr.Details
	if appErr.Code == apperror.CodeInternal || appErr.Code == apperror.CodeDatabase {
		details = map[string]any{"request_id": c.GetString("request_id")}
	}

	return appErr.HTTPStatus, gin.H{
		"code":    appErr.Code,
		"message": message,
		"details": details,
	}
}
