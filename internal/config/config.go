package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultJWTSecret = "change-me-in-production"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Auth     AuthConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            string        `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

type DatabaseConfig struct {
	Driver          string        `env:"DB_DRIVER" envDefault:"postgres"`
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            string        `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"postgres"`
	Password        string        `env:"DB_PASSWORD"`
	Name            string        `env:"DB_NAME" envDefault:"taskflow"`
	SSLMode         string        `env:"DB_SSL_MODE" envDefault:"disable"`
	SQLitePath      string        `env:"DB_SQLITE_PATH" envDefault:"taskflow.db"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"30m"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

type RedisConfig struct {
	Enabled      bool          `env:"REDIS_ENABLED" envDefault:"false"`
	Host         string        `env:"REDIS_HOST" envDefault:"localhost"`
	Port         string        `env:"REDIS_PORT" envDefault:"6379"`
	Password     string        `env:"REDIS_PASSWORD"`
	DB           int           `env:"REDIS_DB" envDefault:"0"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"5"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

type CacheConfig struct {
	Enabled bool          `env:"CACHE_ENABLED" envDefault:"true"`
	TaskTTL time.Duration `env:"CACHE_TASK_TTL" envDefault:"30m"`
	ListTTL time.Duration `env:"CACHE_LIST_TTL" envDefault:"5m"`
}

type AuthConfig struct {
	JWTSecret     string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTIssuer     string        `env:"JWT_ISSUER" envDefault:"taskflow-api"`
	JWTExpiration time.Duration `env:"JWT_EXPIRATION" envDefault:"24h"`
	BCryptCost    int           `env:"BCRYPT_COST" envDefault:"10"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Auth.JWTExpiration <= 0 {
		return fmt.Errorf("JWT expiration must be positive")
	}

	if !c.IsProduction() {
		return nil
	}

	if c.Database.Driver == DriverPostgres && c.Database.Password == "" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Auth.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("JWT secret must be set in production")
	}

	return nil
}

func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == DriverSQLite {
		return c.Database.SQLitePath
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
