package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Gateway   GatewayConfig
	Turnstile TurnstileConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
}

// GatewayConfig holds the payment gateway credentials. ServerKey signs the
// webhook callbacks and authenticates the Snap token API; ClientKey is
// handed to the browser widget.
type GatewayConfig struct {
	ServerKey  string
	ClientKey  string
	Production bool
	BaseURL    string // optional override, mainly for tests
}

type TurnstileConfig struct {
	Secret   string
	Endpoint string
}

type AuthConfig struct {
	OIDCIssuer string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8084"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:          getEnv("POSTGRES_DSN", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_ADDR", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
		},
		Gateway: GatewayConfig{
			ServerKey:  getEnv("GATEWAY_SERVER_KEY", ""),
			ClientKey:  getEnv("GATEWAY_CLIENT_KEY", ""),
			Production: getEnvBool("GATEWAY_IS_PROD", false),
			BaseURL:    getEnv("GATEWAY_BASE_URL", ""),
		},
		Turnstile: TurnstileConfig{
			Secret:   getEnv("TURNSTILE_SECRET_KEY", ""),
			Endpoint: getEnv("TURNSTILE_ENDPOINT", "https://challenges.cloudflare.com/turnstile/v0/siteverify"),
		},
		Auth: AuthConfig{
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
		},
	}
}

// Validate fails fast on options the checkout and settlement paths cannot
// run without. Called once at startup, never lazily per-request.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required")
	}
	if c.Gateway.ServerKey == "" {
		return fmt.Errorf("GATEWAY_SERVER_KEY is required")
	}
	if c.Gateway.ClientKey == "" {
		return fmt.Errorf("GATEWAY_CLIENT_KEY is required")
	}
	if c.Turnstile.Secret == "" {
		return fmt.Errorf("TURNSTILE_SECRET_KEY is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
