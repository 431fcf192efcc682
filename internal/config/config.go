// Package config reads process settings from the environment, after
// loading any .env file found in the working directory.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env               string
	Port              string
	PostgresURL       string
	KafkaBrokers      []string
	NotificationTopic string
	ConsumerGroup     string
	OTLPEndpoint      string
	LogLevel          slog.Level
	MediaBucket       string
	MediaRegion       string
	MediaEndpoint     string
	MediaAccessKey    string
	MediaSecretKey    string
	WebhookURL        string
	WebhookTimeout    time.Duration
	WebhookRetries    int
	SweepInterval     time.Duration
}

// Load reads .env.<APP_ENV> and then .env when present. Variables already
// set in the environment win over file values.
func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")
	_ = godotenv.Load(".env." + env)
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching
// the filesystem.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		PostgresURL:       os.Getenv("POSTGRES_URL"),
		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		NotificationTopic: getEnv("NOTIFICATION_TOPIC", "assetflow.notifications"),
		ConsumerGroup:     getEnv("NOTIFIER_GROUP_ID", "assetflow-notifier"),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MediaBucket:       os.Getenv("MEDIA_BUCKET"),
		MediaRegion:       getEnv("MEDIA_REGION", "us-east-1"),
		MediaEndpoint:     os.Getenv("MEDIA_ENDPOINT"),
		MediaAccessKey:    os.Getenv("MEDIA_ACCESS_KEY_ID"),
		MediaSecretKey:    os.Getenv("MEDIA_SECRET_ACCESS_KEY"),
		WebhookURL:        os.Getenv("NOTIFY_WEBHOOK_URL"),
	}

	var err error
	if cfg.LogLevel, err = parseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	if cfg.WebhookTimeout, err = parseDuration("NOTIFY_WEBHOOK_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = parseDuration("SWEEP_INTERVAL", "0s"); err != nil {
		return nil, err
	}
	if cfg.WebhookRetries, err = strconv.Atoi(getEnv("NOTIFY_WEBHOOK_RETRIES", "3")); err != nil {
		return nil, fmt.Errorf("NOTIFY_WEBHOOK_RETRIES: %w", err)
	}
	return cfg, nil
}

// RequirePostgres is checked by binaries that open the database.
func (c *Config) RequirePostgres() error {
	if c.PostgresURL == "" {
		return errors.New("POSTGRES_URL is required")
	}
	return nil
}

func (c *Config) RequireKafka() error {
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	return nil
}

func (c *Config) MediaEnabled() bool {
	return c.MediaBucket != ""
}

// Logger returns the JSON logger every binary writes to stdout.
func (c *Config) Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.LogLevel}))
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		if secs, convErr := strconv.Atoi(raw); convErr == nil {
			return time.Duration(secs) * time.Second, nil
		}
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s cannot be negative", key)
	}
	return d, nil
}
