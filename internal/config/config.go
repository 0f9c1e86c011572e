package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is loaded from environment variables.
type Config struct {
	HTTPPort        string
	GRPCPort        string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	DB       DBConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Checkout CheckoutConfig
}

type DBConfig struct {
	Driver       string // postgres, sqlite or memory
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	MaxOpenConns int
	SQLitePath   string
	SeedDemoData bool
}

// RedisConfig with an empty Addr disables the catalog cache.
type RedisConfig struct {
	Addr     string
	Password string
	TTL      time.Duration
}

// KafkaConfig with no brokers disables the outbox relay.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	GroupID      string
	PollInterval time.Duration
}

type CheckoutConfig struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
	CommitTimeout  time.Duration
	PriceTolerance decimal.Decimal
}

func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		GRPCPort:        getEnv("GRPC_PORT", "50057"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second, &errs),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
		CORSOrigins:     getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		DB: DBConfig{
			Driver:       getEnv("DB_DRIVER", "sqlite"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432, &errs),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "lipos"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25, &errs),
			SQLitePath:   getEnv("SQLITE_PATH", "lipos.db"),
			SeedDemoData: getEnvAsBool("SEED_DEMO_DATA", false, &errs),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			TTL:      getEnvAsDuration("CATALOG_CACHE_TTL", 30*time.Second, &errs),
		},
		Kafka: KafkaConfig{
			Brokers:      getEnvAsSlice("KAFKA_BROKERS", nil),
			Topic:        getEnv("KAFKA_TOPIC", "pos-orders"),
			GroupID:      getEnv("KAFKA_GROUP_ID", "lipos-catalog-cache"),
			PollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", time.Second, &errs),
		},
		Checkout: CheckoutConfig{
			MaxRetries:     getEnvAsInt("CHECKOUT_MAX_RETRIES", 2, &errs),
			RetryBaseDelay: getEnvAsDuration("CHECKOUT_RETRY_BASE_DELAY", 20*time.Millisecond, &errs),
			CommitTimeout:  getEnvAsDuration("CHECKOUT_COMMIT_TIMEOUT", 10*time.Second, &errs),
			PriceTolerance: getEnvAsDecimal("CHECKOUT_PRICE_TOLERANCE", decimal.Zero, &errs),
		},
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return errors.New("HTTP_PORT is required")
	}
	if c.GRPCPort == "" {
		return errors.New("GRPC_PORT is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	switch c.DB.Driver {
	case "postgres":
		if c.DB.Host == "" || c.DB.Name == "" {
			return errors.New("DB_HOST and DB_NAME are required for postgres")
		}
	case "sqlite":
		if c.DB.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for sqlite")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid DB_DRIVER: %s (must be postgres, sqlite or memory)", c.DB.Driver)
	}

	if c.Checkout.MaxRetries < 0 {
		return errors.New("CHECKOUT_MAX_RETRIES must not be negative")
	}
	if c.Checkout.CommitTimeout <= 0 {
		return errors.New("CHECKOUT_COMMIT_TIMEOUT must be positive")
	}
	if c.Checkout.PriceTolerance.IsNegative() {
		return errors.New("CHECKOUT_PRICE_TOLERANCE must not be negative")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int, errs *[]error) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool, errs *[]error) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return value
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal, errs *[]error) decimal.Decimal {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
