package middleware

import (
	"net/http"
	"strings"

	"taskflow/backend/internal/logger"

	"github.com/gin-gonic/gin"
)

// UserEmailKey is the gin context key holding the authenticated email.
const UserEmailKey = "user_email"

type TokenValidator interface {
	Validate(token string) (string, error)
}

// AuthMiddleware requires a valid bearer token and stores its subject
// under UserEmailKey.
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_token",
				"message": "Authorization header is required",
			})
			return
		}

		scheme, tokenStr, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenStr) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token_format",
				"message": "Authorization header must use Bearer token",
			})
			return
		}

		email, err := tokens.Validate(strings.TrimSpace(tokenStr))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "Token is invalid or expired",
			})
			return
		}

		c.Set(UserEmailKey, email)

		ctx := c.Request.Context()
		l := logger.FromContext(ctx).With().Str("user", email).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(ctx, l))

		c.Next()
	}
}

// CurrentUserEmail returns the email set by AuthMiddleware.
func CurrentUserEmail(c *gin.Context) (string, bool) {
	email := c.GetString(UserEmailKey)
	return email, email != ""
}
