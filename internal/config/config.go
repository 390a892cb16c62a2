package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full service configuration, read from the environment.
type Config struct {
	Service  ServiceConfig
	Server   ServerConfig
	Database DatabaseConfig
	NATS     NATSConfig
	Device   DeviceConfig
	Importer ImporterConfig
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// DSN renders the connection string for pgxpool.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// NATSConfig holds event publishing settings. An empty URL disables
// publishing.
type NATSConfig struct {
	URL string
}

// DeviceConfig holds access-control device API settings. An empty BaseURL
// disables device sync.
type DeviceConfig struct {
	BaseURL  string
	APIKey   string
	PageSize int
	Timeout  time.Duration
}

// ImporterConfig holds the ingestion pipeline policy knobs.
type ImporterConfig struct {
	BatchSize           int
	PoolSize            int
	WorkerTimeout       time.Duration
	SimilarityThreshold float64
	MaxSuggestions      int
}

// Load reads configuration from the environment, applying production
// defaults for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "attendance-dashboard"),
			Version:     getEnv("SERVICE_VERSION", "dev"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Server: ServerConfig{
			Port:            getEnvInt("PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "attendance"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Device: DeviceConfig{
			BaseURL:  getEnv("DEVICE_API_URL", ""),
			APIKey:   getEnv("DEVICE_API_KEY", ""),
			PageSize: getEnvInt("DEVICE_PAGE_SIZE", 500),
			Timeout:  getEnvDuration("DEVICE_TIMEOUT", 20*time.Second),
		},
		Importer: ImporterConfig{
			BatchSize:           getEnvInt("IMPORT_BATCH_SIZE", 100),
			PoolSize:            getEnvInt("IMPORT_POOL_SIZE", 4),
			WorkerTimeout:       getEnvDuration("IMPORT_WORKER_TIMEOUT", 30*time.Second),
			SimilarityThreshold: getEnvFloat("IMPORT_SIMILARITY_THRESHOLD", 0.6),
			MaxSuggestions:      getEnvInt("IMPORT_MAX_SUGGESTIONS", 3),
		},
	}

	if cfg.Importer.BatchSize < 1 {
		return nil, fmt.Errorf("IMPORT_BATCH_SIZE must be positive, got %d", cfg.Importer.BatchSize)
	}
	if cfg.Importer.PoolSize < 1 {
		return nil, fmt.Errorf("IMPORT_POOL_SIZE must be positive, got %d", cfg.Importer.PoolSize)
	}
	if t := cfg.Importer.SimilarityThreshold; t <= 0 || t >= 1 {
		return nil, fmt.Errorf("IMPORT_SIMILARITY_THRESHOLD must be in (0,1), got %v", t)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseFloat(value, 64); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
