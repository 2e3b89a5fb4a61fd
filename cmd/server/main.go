package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskflow/backend/internal/cache"
	"taskflow/backend/internal/config"
	"taskflow/backend/internal/database"
	"taskflow/backend/internal/logger"
	"taskflow/backend/internal/monitoring"
	"taskflow/backend/internal/repositories"
	"taskflow/backend/internal/server"
	"taskflow/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		l := logger.Get()
		l.Fatal().Err(err).Msg("load config")
	}

	log := logger.Init(cfg.Log.Level, cfg.Log.Format)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogLevel:        gormLogLevel(cfg.Log.Level),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(pool.DB); err != nil {
			log.Fatal().Err(err).Msg("migrate database")
		}
	}

	health := monitoring.NewHealthChecker(5 * time.Second)
	health.Register("database", pool.Ping)
	health.RegisterStats("database", pool.Stats)

	users := repositories.NewUserRepository()
	tasks := repositories.NewTaskRepository()
	tokens := services.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTExpiration)

	authService := services.NewAuthService(pool.DB, users, tokens, cfg.Auth.BCryptCost)

	var taskService services.TaskService = services.NewTaskService(pool.DB, tasks, users)
	if cfg.Cache.Enabled {
		var l2 cache.Cache
		if cfg.Redis.Enabled {
			redisCache := cache.NewRedisCache(&cache.CacheConfig{
				Addr:         cfg.GetRedisAddr(),
				Password:     cfg.Redis.Password,
				DB:           cfg.Redis.DB,
				PoolSize:     cfg.Redis.PoolSize,
				MinIdleConns: cfg.Redis.MinIdleConns,
				MaxRetries:   cfg.Redis.MaxRetries,
				DialTimeout:  cfg.Redis.DialTimeout,
				ReadTimeout:  cfg.Redis.ReadTimeout,
				WriteTimeout: cfg.Redis.WriteTimeout,
			})
			l2 = redisCache
			health.Register("redis", redisCache.Ping)
		}

		taskCache := cache.NewMultiLevelCache(l2, cache.DefaultMultiLevelConfig(), cache.NewCacheMetrics(prometheus.DefaultRegisterer))
		defer taskCache.Close()
		health.RegisterStats("cache", taskCache.Stats)

		taskService = services.NewCachedTaskService(taskService, taskCache, cfg.Cache.TaskTTL, cfg.Cache.ListTTL)
		log.Info().Bool("redis", cfg.Redis.Enabled).Msg("task cache enabled")
	}

	router := server.NewRouter(server.Deps{
		AuthService:    authService,
		TaskService:    taskService,
		Tokens:         tokens,
		Health:         health,
		Registerer:     prometheus.DefaultRegisterer,
		Gatherer:       prometheus.DefaultGatherer,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("environment", cfg.Server.Environment).
			Str("db_driver", cfg.Database.Driver).
			Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch logger.ParseLevel(level) {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return gormlogger.Info
	case zerolog.ErrorLevel:
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}
