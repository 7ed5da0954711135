package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.LogOutput != "stdout" {
		t.Errorf("LogOutput = %q, want %q", cfg.LogOutput, "stdout")
	}
	if cfg.ServiceName != "streamguard" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "streamguard")
	}
	if cfg.ProviderTimeout != "15s" {
		t.Errorf("ProviderTimeout = %q, want %q", cfg.ProviderTimeout, "15s")
	}
	if cfg.SettingsTimeout != "10s" {
		t.Errorf("SettingsTimeout = %q, want %q", cfg.SettingsTimeout, "10s")
	}
	if cfg.NotifyKafkaTopic != "streamguard-notifications" {
		t.Errorf("NotifyKafkaTopic = %q, want default", cfg.NotifyKafkaTopic)
	}
	if cfg.KafkaGroupID != "streamguard-notify-worker" {
		t.Errorf("KafkaGroupID = %q, want default", cfg.KafkaGroupID)
	}
	if cfg.NotifyNATSSubject != "streamguard.stream.blocked" {
		t.Errorf("NotifyNATSSubject = %q, want default", cfg.NotifyNATSSubject)
	}
	if cfg.Debug {
		t.Error("Debug should default to false")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/streamguard")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("PROVIDER_TIMEOUT", "12s")
	os.Setenv("PROVIDER_TYPE", "jellyfin")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://u:p@localhost:5432/streamguard" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.ProviderTimeoutDuration() != 12*time.Second {
		t.Errorf("ProviderTimeoutDuration = %v, want 12s", cfg.ProviderTimeoutDuration())
	}
	if cfg.ProviderType != "jellyfin" {
		t.Errorf("ProviderType = %q, want %q", cfg.ProviderType, "jellyfin")
	}
}

func TestLoad_TimeoutRange(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value string
		err   bool
	}{
		{"provider valid", "PROVIDER_TIMEOUT", "10s", false},
		{"provider max", "PROVIDER_TIMEOUT", "60s", false},
		{"provider too low", "PROVIDER_TIMEOUT", "500ms", true},
		{"provider too high", "PROVIDER_TIMEOUT", "2m", true},
		{"provider garbage", "PROVIDER_TIMEOUT", "soon", true},
		{"settings valid", "SETTINGS_TIMEOUT", "15s", false},
		{"settings too low", "SETTINGS_TIMEOUT", "0s", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv(tc.key, tc.value)

			_, err := Load()
			if tc.err && err == nil {
				t.Fatal("Load should return error")
			}
			if !tc.err && err != nil {
				t.Fatalf("Load: %v", err)
			}
		})
	}
}

func TestLoad_InvalidLogOutput(t *testing.T) {
	os.Clearenv()
	os.Setenv("LOG_OUTPUT", "file")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should reject LOG_OUTPUT=file")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
}

func TestLoad_NATSSubjectRequired(t *testing.T) {
	os.Clearenv()
	os.Setenv("NATS_URL", "nats://localhost:4222")
	os.Setenv("NOTIFY_NATS_SUBJECT", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load should require NOTIFY_NATS_SUBJECT when NATS_URL is set")
	}
}

func TestSettingsTimeoutDuration_Fallback(t *testing.T) {
	cfg := &Config{SettingsTimeout: "invalid"}
	if got := cfg.SettingsTimeoutDuration(); got != 10*time.Second {
		t.Errorf("SettingsTimeoutDuration = %v, want 10s", got)
	}
	cfg = &Config{ProviderTimeout: "-1s"}
	if got := cfg.ProviderTimeoutDuration(); got != 15*time.Second {
		t.Errorf("ProviderTimeoutDuration = %v, want 15s", got)
	}
}

func TestKafkaBrokersList(t *testing.T) {
	testCases := []struct {
		name    string
		brokers string
		want    []string
	}{
		{"empty", "", nil},
		{"single", "localhost:9092", []string{"localhost:9092"}},
		{"multiple with spaces", " a:9092 , b:9092,,", []string{"a:9092", "b:9092"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{KafkaBrokers: tc.brokers}
			got := cfg.KafkaBrokersList()
			if len(got) != len(tc.want) {
				t.Fatalf("KafkaBrokersList = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("KafkaBrokersList[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}

	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil {
		t.Error("nil config should return nil brokers")
	}
}
