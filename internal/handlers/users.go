package handlers

import (
	"net/http"

	"taskflow/backend/internal/middleware"
	"taskflow/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	authService services.AuthService
}

func NewUserHandler(authService services.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

// Me returns the profile of the authenticated caller.
func (h *UserHandler) Me(c *gin.Context) {
	email, ok := middleware.CurrentUserEmail(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "User not authenticated",
		})
		return
	}

	user, err := h.authService.CurrentUser(c.Request.Context(), email)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
