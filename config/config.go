// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Mpesa     MpesaConfig
	Poller    PollerConfig
	Initiator InitiatorConfig
	Store     StoreConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MpesaConfig struct {
	Environment     string
	ConsumerKey     string
	ConsumerSecret  string
	Passkey         string
	ShortCode       string
	CallbackBaseURL string
}

// GatewayCallTimeout bounds one HTTP call to the payment gateway. The server
// timeout derivation and the gateway client share it.
const GatewayCallTimeout = 30 * time.Second

// PollerConfig bounds the status-query retry loop.
type PollerConfig struct {
	Attempts int
	Delay    time.Duration
}

// Budget is the worst-case wall time of one full status poll: every attempt
// hits its call timeout and waits out the inter-attempt delay. HTTP timeouts
// on the poll endpoint must exceed it or an exhaustion resolution is computed
// but never reaches the caller.
func (p PollerConfig) Budget() time.Duration {
	return time.Duration(p.Attempts) * (GatewayCallTimeout + p.Delay)
}

// InitiatorConfig bounds the push-submit retry loop.
type InitiatorConfig struct {
	Retries int
	Backoff time.Duration
}

// StoreConfig points at the store's internal collaborator endpoints.
type StoreConfig struct {
	FulfillmentURL  string
	ConfirmationURL string
	APIKey          string
	APISecret       string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8030"),
			Env:  getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "dukastore"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "redis:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Mpesa: MpesaConfig{
			Environment:     getEnv("MPESA_ENVIRONMENT", "sandbox"),
			ConsumerKey:     getEnv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret:  getEnv("MPESA_CONSUMER_SECRET", ""),
			Passkey:         getEnv("MPESA_PASSKEY", ""),
			ShortCode:       getEnv("MPESA_SHORT_CODE", ""),
			CallbackBaseURL: getEnv("CALLBACK_BASE_URL", "https://api.dukastore.co.ke"),
		},
		Poller: PollerConfig{
			Attempts: getEnvInt("STATUS_POLL_ATTEMPTS", 5),
			Delay:    getEnvDuration("STATUS_POLL_DELAY", 5*time.Second),
		},
		Initiator: InitiatorConfig{
			Retries: getEnvInt("INITIATE_RETRIES", 2),
			Backoff: getEnvDuration("INITIATE_BACKOFF", 500*time.Millisecond),
		},
		Store: StoreConfig{
			FulfillmentURL:  getEnv("STORE_FULFILLMENT_URL", "http://localhost:8031/internal/orders/process"),
			ConfirmationURL: getEnv("STORE_CONFIRMATION_URL", "http://localhost:8031/internal/notifications/confirmation"),
			APIKey:          getEnv("STORE_API_KEY", ""),
			APISecret:       getEnv("STORE_API_SECRET", ""),
		},
	}

	if cfg.Mpesa.ConsumerKey == "" || cfg.Mpesa.ConsumerSecret == "" {
		return nil, fmt.Errorf("MPESA_CONSUMER_KEY and MPESA_CONSUMER_SECRET are required")
	}
	if cfg.Mpesa.ShortCode == "" || cfg.Mpesa.Passkey == "" {
		return nil, fmt.Errorf("MPESA_SHORT_CODE and MPESA_PASSKEY are required")
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
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
