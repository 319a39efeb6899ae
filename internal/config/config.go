package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is loaded once at startup via viper, reading process environment
// variables. Driver selection between the SQLite and Postgres Store
// backends follows StoreDriver.
type Config struct {
	AppName string
	Env     string
	Host    string
	Port    int

	StoreDriver string // "sqlite" or "postgres"
	SQLiteDSN   string
	PostgresDSN string

	JWTSecret     string
	EncryptionKey string

	CORSOrigins             []string
	LogLevel                string
	SocketHeartbeatSeconds  int
	EnableRetentionSweep    bool
	RetentionSweepInterval  time.Duration

	ProfileDirectoryURL string

	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string
}

func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", "chatcore")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8000)

	v.SetDefault("STORE_DRIVER", "sqlite")
	v.SetDefault("SQLITE_DSN", "chatcore.db")

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "chatcore")

	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SOCKET_HEARTBEAT_SECONDS", 30)
	v.SetDefault("ENABLE_RETENTION_SWEEP", false)
	v.SetDefault("RETENTION_SWEEP_INTERVAL_HOURS", 24)
	v.SetDefault("PROFILE_DIRECTORY_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "chatcore.message-events")

	postgresDSN := (&url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(v.GetString("POSTGRES_USER"), v.GetString("POSTGRES_PASSWORD")),
		Host:     fmt.Sprintf("%s:%s", v.GetString("POSTGRES_HOST"), v.GetString("POSTGRES_PORT")),
		Path:     v.GetString("POSTGRES_DB"),
		RawQuery: "sslmode=disable",
	}).String()

	cfg := &Config{
		AppName: v.GetString("APP_NAME"),
		Env:     v.GetString("APP_ENV"),
		Host:    v.GetString("HTTP_HOST"),
		Port:    v.GetInt("HTTP_PORT"),

		StoreDriver: v.GetString("STORE_DRIVER"),
		SQLiteDSN:   v.GetString("SQLITE_DSN"),
		PostgresDSN: postgresDSN,

		JWTSecret:     v.GetString("JWT_SECRET"),
		EncryptionKey: v.GetString("ENCRYPTION_KEY"),

		CORSOrigins:            splitAndTrim(v.GetString("CORS_ORIGINS")),
		LogLevel:               v.GetString("LOG_LEVEL"),
		SocketHeartbeatSeconds: v.GetInt("SOCKET_HEARTBEAT_SECONDS"),
		EnableRetentionSweep:   v.GetBool("ENABLE_RETENTION_SWEEP"),
		RetentionSweepInterval: time.Duration(v.GetInt("RETENTION_SWEEP_INTERVAL_HOURS")) * time.Hour,

		ProfileDirectoryURL: v.GetString("PROFILE_DIRECTORY_URL"),

		RedisAddr:    v.GetString("REDIS_ADDR"),
		KafkaBrokers: splitAndTrim(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:   v.GetString("KAFKA_TOPIC"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}

	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
