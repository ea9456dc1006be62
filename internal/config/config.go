package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	ServicePort int
	LogLevel    string
	Database    DatabaseConfig
	HTTP        HTTPConfig
	Upload      UploadConfig
	Gemini      GeminiConfig
	RabbitMQ    RabbitMQConfig
	Anomaly     AnomalyConfig
}

// DatabaseConfig holds record store settings
type DatabaseConfig struct {
	Driver     string
	URL        string
	SQLitePath string
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	BodyLimitBytes  int64
	AllowedOrigins  []string
	RateLimitRPS    float64
	RateLimitBurst  int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// UploadConfig holds scratch storage settings for submitted images
type UploadConfig struct {
	TmpDir string
}

// GeminiConfig holds image recognition provider settings
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// RabbitMQConfig holds reading event publishing settings. An empty URL
// disables publishing.
type RabbitMQConfig struct {
	URL                 string
	Exchange            string
	CreatedRoutingKey   string
	ConfirmedRoutingKey string
}

// AnomalyConfig holds anomaly detection settings
type AnomalyConfig struct {
	SpikeThreshold            float64
	MinDataPointsForDetection int
	HistoryLimit              int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "meter-reading-service"),
		ServicePort: getEnvAsInt("SERVICE_PORT", 80),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
			URL:        getEnv("DATABASE_URL", ""),
			SQLitePath: getEnv("SQLITE_PATH", "measures.db"),
		},
		HTTP: HTTPConfig{
			BodyLimitBytes:  getEnvAsInt64("HTTP_BODY_LIMIT_BYTES", 50<<20),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			RateLimitRPS:    getEnvAsFloat("RATE_LIMIT_RPS", 5),
			RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 10),
			ReadTimeout:     getEnvAsSeconds("HTTP_READ_TIMEOUT_SECONDS", 30),
			WriteTimeout:    getEnvAsSeconds("HTTP_WRITE_TIMEOUT_SECONDS", 120),
			ShutdownTimeout: getEnvAsSeconds("HTTP_SHUTDOWN_TIMEOUT_SECONDS", 30),
		},
		Upload: UploadConfig{
			TmpDir: getEnv("UPLOAD_TMP_DIR", "uploads/tmp"),
		},
		Gemini: GeminiConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("GEMINI_MODEL", "gemini-1.5-pro"),
			Timeout: getEnvAsSeconds("RECOGNITION_TIMEOUT_SECONDS", 60),
		},
		RabbitMQ: RabbitMQConfig{
			URL:                 getEnv("RABBITMQ_URL", ""),
			Exchange:            getEnv("RABBITMQ_EXCHANGE", "meter-reading.events.exchange"),
			CreatedRoutingKey:   getEnv("RABBITMQ_CREATED_ROUTING_KEY", "meter.reading.created"),
			ConfirmedRoutingKey: getEnv("RABBITMQ_CONFIRMED_ROUTING_KEY", "meter.reading.confirmed"),
		},
		Anomaly: AnomalyConfig{
			SpikeThreshold:            getEnvAsFloat("ANOMALY_SPIKE_THRESHOLD", 3.0),
			MinDataPointsForDetection: getEnvAsInt("ANOMALY_MIN_DATA_POINTS", 3),
			HistoryLimit:              getEnvAsInt("ANOMALY_HISTORY_LIMIT", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields for the selected store driver
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required but not set in environment variables")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER=sqlite")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (expected postgres, sqlite or memory)", c.Database.Driver)
	}
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required but not set in environment variables")
	}
	if c.Upload.TmpDir == "" {
		return fmt.Errorf("UPLOAD_TMP_DIR must not be empty")
	}
	return nil
}

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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultSeconds)) * time.Second
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
