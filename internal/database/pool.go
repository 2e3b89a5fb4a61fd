package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskflow/backend/internal/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var ErrNoConnection = errors.New("database connection not initialized")

type PoolConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	LogLevel        gormlogger.LogLevel
}

func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Driver:          DriverPostgres,
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute * 30,
		LogLevel:        gormlogger.Warn,
	}
}

type DatabasePool struct {
	DB     *gorm.DB
	config *PoolConfig
}

func (c *PoolConfig) validate() error {
	if c.DSN == "" {
		return errors.New("database DSN is required")
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return errors.New("connection limits must not be negative")
	}
	if c.ConnMaxLifetime < 0 || c.ConnMaxIdleTime < 0 {
		return errors.New("connection lifetimes must not be negative")
	}
	return nil
}

func (c *PoolConfig) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case DriverPostgres, "":
		return postgres.Open(c.DSN), nil
	case DriverSQLite:
		return sqlite.Open(sqliteDSN(c.DSN)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// sqliteDSN turns on foreign key enforcement, which sqlite leaves off per
// connection. ON DELETE CASCADE depends on it.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

func NewDatabasePool(config *PoolConfig) (*DatabasePool, error) {
	if config == nil {
		config = DefaultPoolConfig()
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	dialector, err := config.dialector()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(config.LogLevel),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	maxOpen := config.MaxOpenConns
	if config.Driver == DriverSQLite {
		// sqlite has a single writer and in-memory databases are per connection.
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DatabasePool{DB: db, config: config}, nil
}

func (p *DatabasePool) Stats() map[string]interface{} {
	if p.DB == nil {
		return map[string]interface{}{"error": ErrNoConnection.Error()}
	}

	sqlDB, err := p.DB.DB()
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}

	s := sqlDB.Stats()
	return map[string]interface{}{
		"max_open_connections": s.MaxOpenConnections,
		"open_connections":     s.OpenConnections,
		"in_use":               s.InUse,
		"idle":                 s.Idle,
		"wait_count":           s.WaitCount,
		"wait_duration_ms":     s.WaitDuration.Milliseconds(),
		"max_idle_closed":      s.MaxIdleClosed,
		"max_lifetime_closed":  s.MaxLifetimeClosed,
	}
}

func (p *DatabasePool) Ping(ctx context.Context) error {
	if p.DB == nil {
		return ErrNoConnection
	}

	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func (p *DatabasePool) Close() error {
	if p.DB == nil {
		return nil
	}

	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
