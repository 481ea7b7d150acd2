// Package config holds the flat, env-sourced connection settings consumed
// by the platform clients (Redis, Postgres). The versioned, hot-reloadable
// Configuration Core described in spec §4.15 lives in internal/config and
// layers on top of these as its initial snapshot.
package config

import (
	"os"
	"strconv"
	"time"
)

// RedisConfig configures the shared cache / durable-queue backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisFromEnv builds a RedisConfig from the environment. An empty URL
// means Redis is not configured; callers treat a nil client as disabled.
func RedisFromEnv() RedisConfig {
	return RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		PoolSize:     envInt("REDIS_POOL_SIZE", 10),
		MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
	}
}

// DBConfig configures the Enhanced DB Client's connection pool (spec §4.10).
type DBConfig struct {
	DSN            string
	MinConns       int32
	MaxConns       int32
	IdleTimeout    time.Duration
	AcquireTimeout time.Duration
	RetryAttempts  int
	SSLMode        string
	SlowQueryMS    int64
}

// DBFromEnv builds a DBConfig from the environment.
func DBFromEnv() DBConfig {
	return DBConfig{
		DSN:            os.Getenv("AUDIT_DATABASE_URL"),
		MinConns:       int32(envInt("AUDIT_DB_MIN_CONNS", 2)),
		MaxConns:       int32(envInt("AUDIT_DB_MAX_CONNS", 20)),
		IdleTimeout:    envDuration("AUDIT_DB_IDLE_TIMEOUT", 5*time.Minute),
		AcquireTimeout: envDuration("AUDIT_DB_ACQUIRE_TIMEOUT", 5*time.Second),
		RetryAttempts:  envInt("AUDIT_DB_RETRY_ATTEMPTS", 3),
		SSLMode:        envOr("AUDIT_DB_SSL_MODE", "disable"),
		SlowQueryMS:    int64(envInt("AUDIT_DB_SLOW_QUERY_MS", 1_000)),
	}
}

// KafkaConfig configures the internal storage->pattern-detector event bus.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaFromEnv builds a KafkaConfig from the environment.
func KafkaFromEnv() KafkaConfig {
	brokers := os.Getenv("AUDIT_KAFKA_BROKERS")
	topic := envOr("AUDIT_KAFKA_TOPIC", "audit.events.persisted")
	if brokers == "" {
		return KafkaConfig{Topic: topic}
	}
	return KafkaConfig{Brokers: []string{brokers}, Topic: topic}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
