// Package config provides configuration management for the mqpub standalone server.
// Server and database settings come from environment variables; broker
// definitions come from a YAML file because they are structured and per-broker.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coregx/mqpub/model"
)

// Config holds all configuration for the mqpub server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Brokers  []model.BrokerConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver   string // mysql, postgres, sqlite3
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Prefix   string // Table prefix (default: "mqpub_")
}

// EngineConfig holds delivery engine configuration.
type EngineConfig struct {
	RingCapacity        int    // Hot queue capacity (power of two)
	BatchSize           int    // Outbox drain batch size
	WorkerIntervalMs    int    // Drain cycle interval in milliseconds
	RetentionDays       int    // Dead letter retention
	BrokersFile         string // Path to the YAML broker definitions
	EnableNotifications bool   // Enable notification service
}

// brokersFile is the on-disk shape of the broker definitions file.
type brokersFile struct {
	Brokers []model.BrokerConfig `yaml:"brokers"`
}

// Load loads configuration from environment variables and the broker file.
// Follows 12-factor app principles - configuration via environment.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "mysql"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 3306),
			User:     getEnv("DB_USER", "mqpub"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "mqpub"),
			Prefix:   getEnv("DB_PREFIX", "mqpub_"),
		},
		Engine: EngineConfig{
			RingCapacity:        getEnvInt("MQPUB_RING_CAPACITY", 65536),
			BatchSize:           getEnvInt("MQPUB_BATCH_SIZE", 500),
			WorkerIntervalMs:    getEnvInt("MQPUB_WORKER_INTERVAL_MS", 100),
			RetentionDays:       getEnvInt("MQPUB_RETENTION_DAYS", 30),
			BrokersFile:         getEnv("MQPUB_BROKERS_FILE", "brokers.yaml"),
			EnableNotifications: getEnvBool("MQPUB_ENABLE_NOTIFICATIONS", true),
		},
	}

	// Validate required fields
	if cfg.Database.Driver != "sqlite3" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD environment variable is required")
	}

	brokers, err := loadBrokers(cfg.Engine.BrokersFile)
	if err != nil {
		return nil, err
	}
	cfg.Brokers = brokers

	return cfg, nil
}

// loadBrokers reads and validates the YAML broker definitions file.
func loadBrokers(path string) ([]model.BrokerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read brokers file %s: %w", path, err)
	}

	var file brokersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse brokers file %s: %w", path, err)
	}
	if len(file.Brokers) == 0 {
		return nil, fmt.Errorf("brokers file %s defines no brokers", path)
	}
	if len(file.Brokers) > model.MaxBrokers {
		return nil, fmt.Errorf("brokers file %s defines %d brokers (max %d)",
			path, len(file.Brokers), model.MaxBrokers)
	}

	for _, b := range file.Brokers {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("invalid broker %q in %s: %w", b.Name, path, err)
		}
	}

	return file.Brokers, nil
}

// GetDSN returns the database connection string based on driver.
func (c *DatabaseConfig) GetDSN() string {
	switch strings.ToLower(c.Driver) {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.Port, c.Database)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.User, c.Password, c.Database)
	case "sqlite3":
		return c.Database // SQLite uses file path as DSN
	default:
		return ""
	}
}

// getEnv retrieves environment variable or returns default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves environment variable as integer or returns default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves environment variable as boolean or returns default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
