package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Server    ServerConfig
	Storage   string
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Fees      FeeConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
	Log       LogConfig

	IdempotencyTTL time.Duration
}

type ServerConfig struct {
	Host string
	Port int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
	MaxConns int32
	Migrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	PurchaseTopic string
	RequiredAcks  int
	RetryMax      int
}

type AuthConfig struct {
	JWTSecret string
}

type FeeConfig struct {
	ServiceRate decimal.Decimal
}

type NotifyConfig struct {
	Timeout time.Duration
}

type RateLimitConfig struct {
	Purchases int
	Window    time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// New reads .env when present, then the process environment.
func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	var cfg Config
	var err error

	cfg.Server.Host = getenv("SERVER_HOST", "localhost")
	if cfg.Server.Port, err = intEnv("SERVER_PORT", 8080); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg.Storage = strings.ToLower(getenv("STORAGE_DRIVER", StoragePostgres))
	switch cfg.Storage {
	case StoragePostgres:
		if cfg.Postgres, err = postgresConfig(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	case StorageMemory:
	default:
		return nil, fmt.Errorf("%s: STORAGE_DRIVER must be %q or %q, got %q", op, StoragePostgres, StorageMemory, cfg.Storage)
	}

	if cfg.Redis, err = redisConfig(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.Kafka, err = kafkaConfig(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("%s: missing JWT_SECRET", op)
	}

	rate, err := decimal.NewFromString(getenv("SERVICE_FEE_RATE", "0.05"))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SERVICE_FEE_RATE: %w", op, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%s: SERVICE_FEE_RATE must be in [0, 1), got %s", op, rate)
	}
	cfg.Fees.ServiceRate = rate

	if cfg.Notify.Timeout, err = durationEnv("NOTIFY_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.RateLimit.Purchases, err = intEnv("RATE_LIMIT_PURCHASES", 10); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.RateLimit.Window, err = durationEnv("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", 2*time.Hour); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg.Log.Level = strings.ToLower(getenv("LOG_LEVEL", "info"))
	cfg.Log.Format = strings.ToLower(getenv("LOG_FORMAT", "text"))

	return &cfg, nil
}

func postgresConfig() (PostgresConfig, error) {
	port, err := intEnv("POSTGRES_PORT", 5432)
	if err != nil {
		return PostgresConfig{}, err
	}
	maxConns, err := intEnv("POSTGRES_MAX_CONNS", 0)
	if err != nil {
		return PostgresConfig{}, err
	}
	migrate, err := boolEnv("POSTGRES_MIGRATE", true)
	if err != nil {
		return PostgresConfig{}, err
	}

	cfg := PostgresConfig{
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Name:     os.Getenv("POSTGRES_DB"),
		Host:     getenv("POSTGRES_HOST", "localhost"),
		Port:     port,
		SSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
		MaxConns: int32(maxConns),
		Migrate:  migrate,
	}

	if cfg.User == "" {
		return cfg, fmt.Errorf("missing POSTGRES_USER")
	}
	if cfg.Password == "" {
		return cfg, fmt.Errorf("missing POSTGRES_PASSWORD")
	}
	if cfg.Name == "" {
		return cfg, fmt.Errorf("missing POSTGRES_DB")
	}

	return cfg, nil
}

func redisConfig() (RedisConfig, error) {
	enabled, err := boolEnv("REDIS_ENABLED", true)
	if err != nil {
		return RedisConfig{}, err
	}
	db, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return RedisConfig{}, err
	}

	return RedisConfig{
		Enabled:  enabled,
		Addr:     getenv("REDIS_ADDR", "localhost:6380"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

func kafkaConfig() (KafkaConfig, error) {
	enabled, err := boolEnv("KAFKA_ENABLED", false)
	if err != nil {
		return KafkaConfig{}, err
	}
	acks, err := intEnv("KAFKA_REQUIRED_ACKS", 1)
	if err != nil {
		return KafkaConfig{}, err
	}
	retries, err := intEnv("KAFKA_RETRY_MAX", 3)
	if err != nil {
		return KafkaConfig{}, err
	}

	cfg := KafkaConfig{
		Enabled:       enabled,
		PurchaseTopic: getenv("KAFKA_TOPIC_PURCHASE", "PURCHASE_CONFIRMED"),
		RequiredAcks:  acks,
		RetryMax:      retries,
	}
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.Brokers = append(cfg.Brokers, b)
		}
	}

	if cfg.Enabled && len(cfg.Brokers) == 0 {
		return cfg, fmt.Errorf("KAFKA_ENABLED requires KAFKA_BROKERS")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
