// Package config loads and validates process config from env and an optional .env file using Viper.
// Runtime policy settings (refresh interval, default-block, messages) live in the settings store, not here.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds process configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the Postgres DSN. Required by every binary except the worker.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// LogLevel is a zerolog level name (trace, debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogOutput is stdout or stderr.
	LogOutput string `mapstructure:"LOG_OUTPUT"`
	// Debug forces debug level regardless of LogLevel.
	Debug bool `mapstructure:"DEBUG"`

	// OTLPEndpoint is the OTLP gRPC collector (e.g. http://localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// ProviderTimeout bounds every call to the media server (e.g. "15s").
	ProviderTimeout string `mapstructure:"PROVIDER_TIMEOUT"`
	// SettingsTimeout bounds every read/write against the settings store (e.g. "10s").
	SettingsTimeout string `mapstructure:"SETTINGS_TIMEOUT"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses. Empty disables the Kafka notifier.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// NotifyKafkaTopic is the topic stream-blocked notifications are written to.
	NotifyKafkaTopic string `mapstructure:"NOTIFY_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group of the notification worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// NATSURL enables the JetStream notifier when set (e.g. nats://localhost:4222).
	NATSURL string `mapstructure:"NATS_URL"`
	// NotifyNATSStream is the JetStream stream that holds notifications.
	NotifyNATSStream string `mapstructure:"NOTIFY_NATS_STREAM"`
	// NotifyNATSSubject is the subject stream-blocked notifications are published on.
	NotifyNATSSubject string `mapstructure:"NOTIFY_NATS_SUBJECT"`

	// Worker-only: Loki URL the notification worker pushes to (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// Seed-only: provider connection written into the settings store by cmd/seed.
	ProviderType  string `mapstructure:"PROVIDER_TYPE"`
	ProviderURL   string `mapstructure:"PROVIDER_URL"`
	ProviderToken string `mapstructure:"PROVIDER_TOKEN"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_OUTPUT", "stdout")
	v.SetDefault("DEBUG", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "streamguard")
	v.SetDefault("PROVIDER_TIMEOUT", "15s")
	v.SetDefault("SETTINGS_TIMEOUT", "10s")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("NOTIFY_KAFKA_TOPIC", "streamguard-notifications")
	v.SetDefault("KAFKA_GROUP_ID", "streamguard-notify-worker")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("NOTIFY_NATS_STREAM", "STREAMGUARD")
	v.SetDefault("NOTIFY_NATS_SUBJECT", "streamguard.stream.blocked")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("PROVIDER_TYPE", "")
	v.SetDefault("PROVIDER_URL", "")
	v.SetDefault("PROVIDER_TOKEN", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.LogOutput) {
	case "", "stdout", "stderr":
	default:
		return nil, errors.New("config: LOG_OUTPUT must be stdout or stderr")
	}

	if d, err := time.ParseDuration(cfg.ProviderTimeout); err != nil || d < time.Second || d > time.Minute {
		return nil, errors.New("config: PROVIDER_TIMEOUT must be a duration between 1s and 60s")
	}
	if d, err := time.ParseDuration(cfg.SettingsTimeout); err != nil || d < time.Second || d > time.Minute {
		return nil, errors.New("config: SETTINGS_TIMEOUT must be a duration between 1s and 60s")
	}

	if cfg.NATSURL != "" && cfg.NotifyNATSSubject == "" {
		return nil, errors.New("config: NOTIFY_NATS_SUBJECT must be set when NATS_URL is set")
	}

	return &cfg, nil
}

// ProviderTimeoutDuration parses ProviderTimeout. Returns 15s if unset or invalid.
func (c *Config) ProviderTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ProviderTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// SettingsTimeoutDuration parses SettingsTimeout. Returns 10s if unset or invalid.
func (c *Config) SettingsTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.SettingsTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list means the Kafka notifier is disabled.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
