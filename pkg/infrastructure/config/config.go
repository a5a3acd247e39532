// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite3"

	LockMemory = "memory"
	LockRedis  = "redis"
)

type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Store    StoreConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	Lock     LockConfig
	Redis    RedisConfig
	Engine   EngineConfig
}

type AppConfig struct {
	Env      string
	TenantID string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type StoreConfig struct {
	Driver string
}

type PostgresConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// DSN returns the lib/pq connection string
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type SQLiteConfig struct {
	Path string
}

type LockConfig struct {
	Backend string
	TTL     time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type EngineConfig struct {
	MaxBOMLevel int
}

func LoadEnv() *Config {
	return &Config{
		App: AppConfig{
			Env:      getEnv("APP_ENV", "development"),
			TenantID: getEnv("TENANT_ID", "default"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "info"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", StoreMemory),
		},
		Postgres: PostgresConfig{
			Host:         getEnv("POSTGRES_HOST", "localhost"),
			Port:         getEnv("POSTGRES_PORT", "5432"),
			User:         getEnv("POSTGRES_USER", "mes"),
			Password:     getEnv("POSTGRES_PASSWORD", "mes"),
			DBName:       getEnv("POSTGRES_DB", "mes"),
			SSLMode:      getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "mes.db"),
		},
		Lock: LockConfig{
			Backend: getEnv("LOCK_BACKEND", LockMemory),
			TTL:     time.Duration(getEnvInt("LOCK_TTL_SECONDS", 10)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Engine: EngineConfig{
			MaxBOMLevel: getEnvInt("BOM_MAX_LEVEL", 10),
		},
	}
}

// Validate rejects unknown backends and nonsensical limits
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StorePostgres, StoreSQLite:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want %s)", c.Store.Driver,
			strings.Join([]string{StoreMemory, StorePostgres, StoreSQLite}, ", "))
	}
	switch c.Lock.Backend {
	case LockMemory, LockRedis:
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q (want %s or %s)", c.Lock.Backend, LockMemory, LockRedis)
	}
	if c.Engine.MaxBOMLevel <= 0 {
		return fmt.Errorf("BOM_MAX_LEVEL must be positive, got %d", c.Engine.MaxBOMLevel)
	}
	if c.Lock.TTL <= 0 {
		return fmt.Errorf("LOCK_TTL_SECONDS must be positive")
	}
	if c.App.TenantID == "" {
		return fmt.Errorf("TENANT_ID cannot be empty")
	}
	return nil
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
