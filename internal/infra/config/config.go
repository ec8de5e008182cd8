package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	HTTPAddr string
	Storage  string

	MongoURI string
	MongoDB  string

	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaClientID      string
	EmailTopic         string
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	IdempotencyTTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	CheckoutSessionTTL  time.Duration
	PendingTTL          time.Duration
	EnforceAvailability bool

	FeedTimeout    time.Duration
	SyncInterval   time.Duration
	ExpiryInterval time.Duration
	CalendarDomain string

	S3Endpoint       string
	S3PublicEndpoint string
	S3AccessKey      string
	S3SecretKey      string
	S3Bucket         string
	S3UseSSL         bool

	OperatorKeyHash    string
	PropertiesFixtures string
	CORSOrigins        []string
	ShutdownTimeout    time.Duration
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:                 getEnv("APP_ENV", "dev"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		Storage:             strings.ToLower(getEnv("STORAGE", StorageMemory)),
		MongoURI:            os.Getenv("MONGO_URI"),
		MongoDB:             getEnv("MONGO_DB", "realty"),
		KafkaTopicPrefix:    getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaClientID:       getEnv("KAFKA_CLIENT_ID", "realty"),
		EmailTopic:          getEnv("EMAIL_TOPIC", "notifications.email.v1"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/booking/success?session_id={CHECKOUT_SESSION_ID}"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/booking/cancelled"),
		CalendarDomain:      getEnv("CALENDAR_DOMAIN", "realty.local"),
		S3Endpoint:          os.Getenv("S3_ENDPOINT"),
		S3PublicEndpoint:    os.Getenv("S3_PUBLIC_ENDPOINT"),
		S3AccessKey:         getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:         getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:            getEnv("S3_BUCKET", "realty-calendars"),
		OperatorKeyHash:     os.Getenv("OPERATOR_KEY_HASH"),
		PropertiesFixtures:  os.Getenv("PROPERTIES_FIXTURES"),
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "*")),
		KafkaBrokers:        splitList(os.Getenv("KAFKA_BROKERS")),
	}

	var err error
	if cfg.RedisDB, err = parseIntEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.CheckoutSessionTTL, err = parseDurationEnv("CHECKOUT_SESSION_TTL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.PendingTTL, err = parseDurationEnv("PENDING_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.FeedTimeout, err = parseDurationEnv("FEED_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SyncInterval, err = parseDurationEnv("SYNC_INTERVAL", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ExpiryInterval, err = parseDurationEnv("EXPIRY_INTERVAL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = parseDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.EnforceAvailability, err = parseBoolEnv("ENFORCE_AVAILABILITY", true); err != nil {
		return Config{}, err
	}
	if cfg.S3UseSSL, err = parseBoolEnv("S3_USE_SSL", false); err != nil {
		return Config{}, err
	}

	for _, raw := range strings.Split(getEnv("RETRY_BACKOFF", "1s,5s,30s"), ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}
	if cfg.S3PublicEndpoint == "" {
		cfg.S3PublicEndpoint = cfg.S3Endpoint
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	switch c.Storage {
	case StorageMemory:
	case StorageMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when STORAGE=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE must be %q or %q, got %q", StorageMemory, StorageMongo, c.Storage))
	}
	// Stripe accepts session expiries between 30 minutes and 24 hours.
	if c.CheckoutSessionTTL < 30*time.Minute || c.CheckoutSessionTTL > 24*time.Hour {
		errs = append(errs, fmt.Errorf("CHECKOUT_SESSION_TTL must be between 30m and 24h, got %s", c.CheckoutSessionTTL))
	}
	if c.PendingTTL <= 0 {
		errs = append(errs, errors.New("PENDING_TTL must be positive"))
	}
	if c.IsProduction() {
		if c.StripeSecretKey == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY is required in production"))
		}
		if c.StripeWebhookSecret == "" {
			errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required in production"))
		}
	}
	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
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
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
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

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
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
