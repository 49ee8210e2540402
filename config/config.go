package config

import (
	"os"
	"strconv"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	SQLite    SQLiteConfig
	Session   SessionConfig
	ShortCode ShortCodeConfig
}

type ServerConfig struct {
	AppEnv string
	Addr   string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type SQLiteConfig struct {
	Path          string
	MigrationsDir string
}

type SessionConfig struct {
	TTLHours     int
	SecureCookie bool
}

type ShortCodeConfig struct {
	Length   int
	Attempts int
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv: getEnv("APP_ENV", "development"),
			Addr:   getEnv("APP_ADDR", ":8080"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "info"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		SQLite: SQLiteConfig{
			Path:          getEnv("SQLITE_PATH", "fleamarket.db"),
			MigrationsDir: getEnv("MIGRATIONS_DIR", ""),
		},
		Session: SessionConfig{
			TTLHours:     getEnvInt("SESSION_TTL_HOURS", 12),
			SecureCookie: getEnvBool("SESSION_SECURE_COOKIE", false),
		},
		ShortCode: ShortCodeConfig{
			Length:   getEnvInt("SHORT_CODE_LENGTH", 5),
			Attempts: getEnvInt("SHORT_CODE_ATTEMPTS", 60),
		},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development" || c.Server.AppEnv == "dev"
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
