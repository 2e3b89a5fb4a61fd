// Package server assembles the gin engine.
package server

import (
	"time"

	"taskflow/backend/internal/handlers"
	"taskflow/backend/internal/middleware"
	"taskflow/backend/internal/monitoring"
	"taskflow/backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Deps struct {
	AuthService    services.AuthService
	TaskService    services.TaskService
	Tokens         middleware.TokenValidator
	Health         *monitoring.HealthChecker
	Registerer     prometheus.Registerer
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestLogger())
	r.Use(middleware.RecoveryWithLog())
	if deps.Registerer != nil {
		r.Use(monitoring.NewHTTPMetrics(deps.Registerer).Middleware())
	}
	r.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	health := deps.Health
	if health == nil {
		health = monitoring.NewHealthChecker(0)
	}
	r.GET("/health", monitoring.HealthHandler(health))
	r.GET("/health/live", monitoring.LivenessHandler(health))
	r.GET("/health/ready", monitoring.ReadinessHandler(health))
	if deps.Gatherer != nil {
		r.GET("/metrics", monitoring.MetricsHandler(deps.Gatherer))
	}

	authHandler := handlers.NewAuthHandler(deps.AuthService)
	userHandler := handlers.NewUserHandler(deps.AuthService)
	taskHandler := handlers.NewTaskHandler(deps.TaskService)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(deps.Tokens))

		protected.GET("/users/me", userHandler.Me)

		tasks := protected.Group("/tasks")
		tasks.GET("", taskHandler.ListTasks)
		tasks.POST("", taskHandler.CreateTask)
		tasks.GET("/:id", taskHandler.GetTask)
		tasks.PUT("/:id", taskHandler.UpdateTask)
		tasks.DELETE("/:id", taskHandler.DeleteTask)
		tasks.POST("/:id/assign/:userId", taskHandler.AssignUser)
		tasks.DELETE("/:id/assign/:userId", taskHandler.UnassignUser)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}

	return config
}
