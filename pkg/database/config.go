package database

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds PostgreSQL connection settings. The application role must be
// non-superuser so row-level security applies; the init container uses the
// separate privileged role for migrations.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN returns a keyword/value connection string usable by pgx and the
// database/sql pgx driver alike.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LoadConfigFromEnv loads the application-role database configuration.
func LoadConfigFromEnv() (Config, error) {
	return loadConfig("DB_USER", "DB_PASSWORD", "gamenight")
}

// LoadMigratorConfigFromEnv loads the privileged-role configuration used by
// the init container only. Falls back to the application role when no
// dedicated migrator credentials are set (single-role dev setups).
func LoadMigratorConfigFromEnv() (Config, error) {
	if os.Getenv("DB_MIGRATOR_USER") == "" {
		return LoadConfigFromEnv()
	}
	return loadConfig("DB_MIGRATOR_USER", "DB_MIGRATOR_PASSWORD", "gamenight")
}

func loadConfig(userKey, passwordKey, defaultUser string) (Config, error) {
	port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxConns, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_CONNS", "10"))
	minConns, _ := strconv.Atoi(getEnvOrDefault("DB_MIN_CONNS", "2"))

	return Config{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault(userKey, defaultUser),
		Password:        os.Getenv(passwordKey),
		Database:        getEnvOrDefault("DB_NAME", "gamenight"),
		SSLMode:         getEnvOrDefault("DB_SSLMODE", "disable"),
		MaxConns:        maxConns,
		MinConns:        minConns,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
