package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries the knobs for the client engine and the dev backend
// simulator. Everything comes from the environment with sensible defaults so
// a bare `go run` works against a local backend.
type Config struct {
	AppEnv   string
	LogLevel string

	// Client engine.
	BaseURL        string
	RequestTimeout time.Duration
	ReconnectDelay time.Duration

	// Dev backend simulator.
	HTTPPort          int
	HeartbeatInterval time.Duration
	MySQLEnabled      bool
	RedisAddr         string
	AMQPURL           string
}

func Load() Config {
	return Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BaseURL:        getEnv("ORDER_API_URL", "http://localhost:3000"),
		RequestTimeout: getEnvDuration("ORDER_API_TIMEOUT", 10*time.Second),
		ReconnectDelay: getEnvDuration("ORDER_WATCH_RECONNECT", 3*time.Second),

		HTTPPort:          getEnvInt("HTTP_PORT", 3000),
		HeartbeatInterval: getEnvDuration("WATCH_HEARTBEAT", 15*time.Second),
		MySQLEnabled:      getEnvBool("MYSQL_ENABLED", false),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		AMQPURL:           getEnv("RABBITMQ_URL", ""),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
