package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"taskflow/backend/internal/logger"
	"taskflow/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	}
}

// respondError maps service errors onto HTTP responses.
func respondError(c *gin.Context, err error) {
	var ve *services.ValidationError

	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": ve.Error(),
			"details": []*services.ValidationError{ve},
		})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "conflict",
			"message": err.Error(),
		})
	case errors.Is(err, services.ErrAuthentication):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": err.Error(),
		})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": err.Error(),
		})
	default:
		l := logger.FromContext(c.Request.Context())
		l.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// respondBindError reports a body that could not be decoded or failed
// binding validation.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]*services.ValidationError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, &services.ValidationError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": "request validation failed",
			"details": details,
		})
		return
	}

	message := "Invalid request format"
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		message = fmt.Sprintf("field %s has the wrong type", typeErr.Field)
	}

	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": message,
	})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
