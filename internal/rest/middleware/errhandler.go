package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tradingbrain/licensing/internal/api/dto"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/logger"
)

// ErrorHandler renders errors attached to the gin context
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		c.JSON(ierr.HTTPStatusFromErr(err), dto.WebhookErrorResponse{
			Error: ierr.DisplayMessage(err),
		})
	}
}

// RecoveryHandler turns a panic into a 500 with the webhook error shape
func RecoveryHandler(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Errorw("recovered from panic",
			"panic", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.WebhookErrorResponse{
			Error: "An unexpected error occurred",
		})
	})
}
