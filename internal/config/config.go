package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	RabbitMQ   RabbitMQConfig
	Dispatcher DispatcherConfig
	TagAPI     TagAPIConfig
	Scheduling SchedulingConfig
	Env        string
	LogLevel   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// RabbitMQConfig holds RabbitMQ configuration
type RabbitMQConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	TagEffectQueue string
}

// DispatcherConfig points at the external scheduled-send service
type DispatcherConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// TagAPIConfig points at the external contact tag service
type TagAPIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SchedulingConfig holds the campaign engine knobs
type SchedulingConfig struct {
	// SubmitInterval is the pacing between two dispatcher submissions of one campaign.
	SubmitInterval time.Duration
	// TagEffectLead is how long before a step's send time its tag effects fire.
	TagEffectLead time.Duration
	Location      *time.Location
	SweepSchedule string
	SweepBatch    int
	// StaleQueuedAfter is how long an effect may sit in queued before the
	// sweeper assumes its job was lost and publishes it again.
	StaleQueuedAfter time.Duration
	MaxRetries       int
	// RetryBackoff is the wait before the second attempt; it doubles per attempt.
	RetryBackoff time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	timezone := getEnv("TIMEZONE", "UTC")
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", timezone, err)
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "whatsdrip"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "whatsdrip_db"),
		},
		RabbitMQ: RabbitMQConfig{
			Host:           getEnv("RABBITMQ_HOST", "localhost"),
			Port:           getEnv("RABBITMQ_PORT", "5672"),
			User:           getEnv("RABBITMQ_DEFAULT_USER", "guest"),
			Password:       getEnv("RABBITMQ_DEFAULT_PASS", "guest"),
			TagEffectQueue: getEnv("TAG_EFFECT_QUEUE", "tag_effects"),
		},
		Dispatcher: DispatcherConfig{
			BaseURL: getEnv("DISPATCHER_URL", "http://localhost:8443"),
			APIKey:  getEnv("DISPATCHER_API_KEY", ""),
			Timeout: getEnvAsDuration("DISPATCHER_TIMEOUT", 15*time.Second),
		},
		TagAPI: TagAPIConfig{
			BaseURL: getEnv("TAG_API_URL", "http://localhost:8443"),
			Timeout: getEnvAsDuration("TAG_API_TIMEOUT", 10*time.Second),
		},
		Scheduling: SchedulingConfig{
			SubmitInterval:   getEnvAsDuration("SUBMIT_INTERVAL", 500*time.Millisecond),
			TagEffectLead:    getEnvAsDuration("TAG_EFFECT_LEAD", 5*time.Second),
			Location:         loc,
			SweepSchedule:    getEnv("SWEEP_SCHEDULE", "@every 30s"),
			SweepBatch:       getEnvAsInt("SWEEP_BATCH", 100),
			StaleQueuedAfter: getEnvAsDuration("TAG_EFFECT_STALE_AFTER", 10*time.Minute),
			MaxRetries:       getEnvAsInt("TAG_EFFECT_MAX_RETRIES", 3),
			RetryBackoff:     getEnvAsDuration("TAG_EFFECT_RETRY_BACKOFF", 30*time.Second),
		},
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if config.Database.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if config.Dispatcher.BaseURL == "" {
		return nil, fmt.Errorf("DISPATCHER_URL is required")
	}

	return config, nil
}

// GetDatabaseDSN returns PostgreSQL connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// GetRabbitMQURL returns RabbitMQ connection URL
func (c *Config) GetRabbitMQURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		c.RabbitMQ.User,
		c.RabbitMQ.Password,
		c.RabbitMQ.Host,
		c.RabbitMQ.Port,
	)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// getEnv gets environment variable or returns default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer or returns default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("500ms", "15s")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			return d
		}
	}
	return defaultValue
}
