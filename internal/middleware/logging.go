package middleware

import (
	"time"

	"taskflow/backend/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an id, puts a request-scoped
// logger into the request context and logs one line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.Must(uuid.NewV4()).String()
		}
		c.Header(RequestIDHeader, requestID)

		l := logger.Get().With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), l))

		c.Next()

		status := c.Writer.Status()

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = l.Error()
		case status >= 400:
			event = l.Warn()
		default:
			event = l.Info()
		}

		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.ByType(gin.ErrorTypePrivate).String())
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("route", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request completed")
	}
}
