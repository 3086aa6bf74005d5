package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the storefront. Everything is read from
// environment variables.
type Config struct {
	Env      string
	LogLevel string
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Checkout CheckoutConfig
	Admin    AdminConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	HTTPPort        string
	GRPCPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	Migrate      bool
	Seed         bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CheckoutConfig struct {
	CartTTL time.Duration
	LockTTL time.Duration
	// Coupons is the raw CODE=kind:value list.
	Coupons string
}

type AdminConfig struct {
	Username     string
	PasswordHash string
	JWTSecret    []byte
	TokenTTL     time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// InMemory reports whether orders, products and carts live in process memory
// instead of SQL and Redis.
func (c *Config) InMemory() bool {
	return strings.EqualFold(c.Database.Driver, "memory")
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			HTTPPort:        getEnv("HTTP_PORT", "8080"),
			GRPCPort:        getEnv("GRPC_PORT", "50051"),
			ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "mysql"),
			DSN:          getEnv("DB_DSN", "root:root@tcp(localhost:3306)/storefront?parseTime=true"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			Migrate:      getEnvAsBool("DB_MIGRATE", true),
			Seed:         getEnvAsBool("DB_SEED", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Checkout: CheckoutConfig{
			CartTTL: getEnvAsDuration("CART_TTL", 24*time.Hour),
			LockTTL: getEnvAsDuration("CHECKOUT_LOCK_TTL", 30*time.Second),
			Coupons: getEnv("COUPONS", "SAVE10=percent:10"),
		},
		Admin: AdminConfig{
			Username:     getEnv("ADMIN_USERNAME", "admin"),
			PasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
			JWTSecret:    []byte(os.Getenv("JWT_SECRET")),
			TokenTTL:     getEnvAsDuration("TOKEN_TTL", 12*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ORIGINS", []string{"*"}),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.HTTPPort == "" {
		errs = append(errs, errors.New("HTTP_PORT is required"))
	}
	if c.Server.GRPCPort == "" {
		errs = append(errs, errors.New("GRPC_PORT is required"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}

	switch strings.ToLower(c.Database.Driver) {
	case "mysql", "postgres", "postgresql", "pq", "memory":
	default:
		errs = append(errs, fmt.Errorf("invalid DB_DRIVER: %s (must be mysql, postgres or memory)", c.Database.Driver))
	}
	if !c.InMemory() {
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("DB_DSN is required"))
		}
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required"))
		}
	}

	if c.Checkout.CartTTL <= 0 || c.Checkout.LockTTL <= 0 {
		errs = append(errs, errors.New("CART_TTL and CHECKOUT_LOCK_TTL must be positive"))
	}

	if c.Admin.PasswordHash == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD_HASH is required"))
	}
	if len(c.Admin.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
