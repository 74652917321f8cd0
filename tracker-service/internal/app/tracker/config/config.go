package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all tracker-service settings, loaded from the environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Matching  MatchingConfig
	Ingestion IngestionConfig
	Sources   SourcesConfig
	LogLevel  string
}

type ServerConfig struct {
	Port string
}

// DatabaseConfig selects the storage backend. The default sqlite file
// keeps single-host deployments dependency-free; postgres serves shared
// setups.
type DatabaseConfig struct {
	Driver string // sqlite or postgres

	// sqlite
	Path string

	// postgres
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig fronts the group-listing cache. Disabled by default.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// KafkaConfig controls the optional RUN_COMPLETED event producer.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type MatchingConfig struct {
	// Threshold is the minimum inclusive similarity score for an
	// automatic assignment.
	Threshold int
	// AutoMatch runs a matching pass after each ingestion run.
	AutoMatch bool
}

type IngestionConfig struct {
	// Schedule is a cron expression for unattended daily runs.
	Schedule string
	// RunOnStart triggers one run right after startup, before the first
	// scheduled tick.
	RunOnStart bool
}

// SourcesConfig carries per-retailer collector settings.
type SourcesConfig struct {
	Mercadona MercadonaConfig
	Dia       DiaConfig
}

type MercadonaConfig struct {
	Enabled           bool
	BaseURL           string
	RequestsPerSecond float64
	Timeout           time.Duration
}

type DiaConfig struct {
	Enabled           bool
	BaseURL           string
	SessionCookie     string
	PageSize          int
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Path:     getEnv("DB_PATH", "pricetrack.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "pricetrack"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC", "tracker.runs"),
		},
		Matching: MatchingConfig{
			Threshold: getEnvInt("MATCHING_THRESHOLD", 85),
			AutoMatch: getEnvBool("MATCHING_AUTO", true),
		},
		Ingestion: IngestionConfig{
			Schedule:   getEnv("INGEST_SCHEDULE", "0 7 * * *"),
			RunOnStart: getEnvBool("INGEST_RUN_ON_START", false),
		},
		Sources: SourcesConfig{
			Mercadona: MercadonaConfig{
				Enabled:           getEnvBool("MERCADONA_ENABLED", true),
				BaseURL:           getEnv("MERCADONA_BASE_URL", "https://tienda.mercadona.es"),
				RequestsPerSecond: getEnvFloat("MERCADONA_RPS", 2),
				Timeout:           time.Duration(getEnvInt("MERCADONA_TIMEOUT_SECONDS", 30)) * time.Second,
			},
			Dia: DiaConfig{
				Enabled:           getEnvBool("DIA_ENABLED", false),
				BaseURL:           getEnv("DIA_BASE_URL", "https://www.dia.es"),
				SessionCookie:     getEnv("DIA_SESSION_COOKIE", ""),
				PageSize:          getEnvInt("DIA_PAGE_SIZE", 100),
				RequestsPerSecond: getEnvFloat("DIA_RPS", 1),
				Timeout:           time.Duration(getEnvInt("DIA_TIMEOUT_SECONDS", 30)) * time.Second,
			},
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.Database.Driver != "sqlite" && cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	if cfg.Matching.Threshold < 0 || cfg.Matching.Threshold > 100 {
		return nil, fmt.Errorf("MATCHING_THRESHOLD must be within 0..100, got %d", cfg.Matching.Threshold)
	}
	if cfg.Sources.Dia.Enabled && cfg.Sources.Dia.SessionCookie == "" {
		return nil, fmt.Errorf("DIA_SESSION_COOKIE is required when DIA_ENABLED is set")
	}

	return cfg, nil
}

// DSN returns the postgres connection string in libpq format.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Address returns the redis address as host:port.
func (c *RedisConfig) Address() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
