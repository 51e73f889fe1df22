package api

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soilfusion/cropadvisor/internal/errors"
)

// statusFor maps an application error code to an HTTP status
func statusFor(code string) int {
	switch code {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput, errors.ErrCodeValidationError:
		return http.StatusBadRequest
	case errors.ErrCodeModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON. Server-side failures are attached to the
// context for the logging middleware and their causes are not exposed.
func respondError(c *gin.Context, err error) {
	code := errors.Code(err)
	if code == "" {
		code = errors.ErrCodeInternalError
	}
	status := statusFor(code)

	message := "Internal server error"
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
		if appErr.Details != "" && status < http.StatusInternalServerError {
			message = message + ": " + appErr.Details
		}
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error": message,
		"code":  code,
	})
}

func badRequest(c *gin.Context, message string, cause error) {
	appErr := errors.InvalidInput(message, cause)
	if cause != nil {
		appErr = appErr.WithDetails(cause.Error())
	}
	respondError(c, appErr)
}
