package middleware

import (
	"net/http"
	"runtime/debug"

	"taskflow/backend/internal/logger"

	"github.com/gin-gonic/gin"
)

func RecoveryWithLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				l := logger.FromContext(c.Request.Context())
				l.Error().
					Interface("panic", rec).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("recovered from panic")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()

		c.Next()
	}
}
