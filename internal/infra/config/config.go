package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	PipelineMemory = "memory"
	PipelineKafka  = "kafka"
	PipelineAMQP   = "amqp"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	HTTPAddr string

	StoreDriver  string
	DatabaseURL  string
	LockTimeout  time.Duration
	StoreBackoff []time.Duration

	PipelineDriver       string
	KafkaBrokers         []string
	KafkaTopicPrefix     string
	AMQPURL              string
	AMQPExchange         string
	ConsumerBackoff      []time.Duration
	ConsumerMaxAttempts  int
	PublishBuffer        int
	DecisionMode         string
	RunWorkers           bool
	WorkerGRPCAddr       string
	CancellationLeadTime time.Duration

	MongoURI string
	MongoDB  string

	ScyllaHosts    []string
	ScyllaKeyspace string
	ScyllaTimeout  time.Duration

	JWTSecret          string
	IdempotencyTTL     time.Duration
	PropertyCacheTTL   time.Duration
	PropertiesFixtures string
}

// Load parses configuration from the current environment. A .env file in the
// working directory is read first when present; real environment values win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		PipelineDriver:     strings.ToLower(getEnv("PIPELINE_DRIVER", PipelineMemory)),
		KafkaTopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", ""),
		AMQPURL:            os.Getenv("AMQP_URL"),
		AMQPExchange:       getEnv("AMQP_EXCHANGE", "bookings"),
		DecisionMode:       strings.ToLower(getEnv("DECISION_MODE", "auto")),
		WorkerGRPCAddr:     getEnv("WORKER_GRPC_ADDR", ":9090"),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", "reservations"),
		ScyllaKeyspace:     getEnv("SCYLLA_KEYSPACE", "reservations"),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret"),
		PropertiesFixtures: getEnv("PROPERTIES_FIXTURES", "data/properties.json"),
	}
	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.ScyllaHosts = splitList(os.Getenv("SCYLLA_HOSTS"))

	var err error
	if cfg.LockTimeout, err = parseDurationEnv("LOCK_TIMEOUT", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.StoreBackoff, err = parseDurationList("STORE_RETRY_BACKOFF", "50ms,200ms,800ms"); err != nil {
		return Config{}, err
	}
	if cfg.ConsumerBackoff, err = parseDurationList("CONSUMER_RETRY_BACKOFF", "1s,5s,30s"); err != nil {
		return Config{}, err
	}
	if cfg.ConsumerMaxAttempts, err = parseIntEnv("CONSUMER_MAX_ATTEMPTS", 4); err != nil {
		return Config{}, err
	}
	if cfg.PublishBuffer, err = parseIntEnv("PUBLISH_BUFFER", 1024); err != nil {
		return Config{}, err
	}
	if cfg.RunWorkers, err = parseBoolEnv("RUN_WORKERS", true); err != nil {
		return Config{}, err
	}
	if cfg.CancellationLeadTime, err = parseDurationEnv("CANCELLATION_LEAD_TIME", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ScyllaTimeout, err = parseDurationEnv("SCYLLA_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.PropertyCacheTTL, err = parseDurationEnv("PROPERTY_CACHE_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.PipelineDriver {
	case PipelineMemory:
	case PipelineKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for PIPELINE_DRIVER=kafka")
		}
	case PipelineAMQP:
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required for PIPELINE_DRIVER=amqp")
		}
	default:
		return fmt.Errorf("unknown PIPELINE_DRIVER %q", c.PipelineDriver)
	}
	if c.DecisionMode != "auto" && c.DecisionMode != "manual" {
		return fmt.Errorf("invalid DECISION_MODE %q", c.DecisionMode)
	}
	if c.ConsumerMaxAttempts < 1 {
		return fmt.Errorf("CONSUMER_MAX_ATTEMPTS must be at least 1")
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("LOCK_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseDurationList(key, def string) ([]time.Duration, error) {
	var out []time.Duration
	for _, raw := range strings.Split(getEnv(key, def), ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid %s component %q: %w", key, raw, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
