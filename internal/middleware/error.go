package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "budgetledger/internal/errors"
	"budgetledger/internal/logger"
)

// ErrorHandler answers for errors attached with c.Error when the handler
// did not write a response itself. Binding errors become INVALID_INPUT;
// anything that is not an AppError is reported as an internal error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		last := c.Errors.Last()
		appErr := toAppError(last)

		if appErr.Internal != nil || appErr.StatusCode >= 500 {
			logger.Get().Errorw("request failed",
				"request_id", RequestID(c),
				"code", appErr.Code,
				"error", last.Err.Error(),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
	}
}

func toAppError(e *gin.Error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(e.Err, &appErr) {
		return appErr
	}
	if e.IsType(gin.ErrorTypeBind) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, e.Err.Error())
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, e.Err)
}
