// Package config loads process settings from the environment.
// A .env file, when present, is applied by the caller before LoadEnv.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Sales    SalesConfig
	Debts    DebtsConfig
}

type ServerConfig struct {
	AppEnv          string
	HTTPPort        int
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

// DatabaseConfig selects the SQL backend. Driver is "sqlite3" or "mysql".
type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig. An empty Addr disables Redis; caching falls back to memory
// and inventory completion runs without a distributed lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	LockTTL  time.Duration
}

type CacheConfig struct {
	TTL time.Duration
}

type JWTConfig struct {
	SecretKey string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type SalesConfig struct {
	LineTotalPolicy string
}

type DebtsConfig struct {
	PhoneRegion string
}

// IsDevelopment reports whether development-only routes may be mounted.
func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development" || c.Server.AppEnv == "dev"
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:          getEnv("APP_ENV", "development"),
			HTTPPort:        getEnvInt("HTTP_PORT", 8080),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite3"),
			DSN:             getEnv("DB_DSN", "retail.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 20),
			LockTTL:  getEnvDuration("REDIS_LOCK_TTL", 30*time.Second),
		},
		Cache: CacheConfig{
			TTL: getEnvDuration("CACHE_TTL", 5*time.Minute),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", "change-me-in-production"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:8080"}),
		},
		Sales: SalesConfig{
			LineTotalPolicy: getEnv("SALE_LINE_TOTAL_POLICY", "supplied"),
		},
		Debts: DebtsConfig{
			PhoneRegion: getEnv("DEBT_PHONE_REGION", "RU"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
