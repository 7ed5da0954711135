// seed writes the default runtime settings into the settings store and, when PROVIDER_TYPE,
// PROVIDER_URL or PROVIDER_TOKEN are set, the media server connection.
// Idempotent: existing settings are left alone; provider values from the environment always win.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"streamguard/internal/config"
	"streamguard/internal/db"
	"streamguard/internal/logger"
	"streamguard/internal/settings"
	settingsdomain "streamguard/internal/settings/domain"
	settingsrepo "streamguard/internal/settings/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env or set DATABASE_URL")
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Debug: cfg.Debug, Output: cfg.LogOutput})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	log = log.WithComponent("seed")

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error().Err(err).Msg("open database")
		os.Exit(1)
	}
	defer conn.Close()

	ctx := context.Background()
	store := settings.NewStore(settingsrepo.NewPostgresRepository(conn), nil, log, cfg.SettingsTimeoutDuration())

	inserted, err := store.SeedDefaults(ctx)
	if err != nil {
		log.Error().Err(err).Msg("seed defaults")
		os.Exit(1)
	}
	if len(inserted) == 0 {
		log.Info().Msg("settings already seeded")
	} else {
		log.Info().Str("keys", strings.Join(inserted, ",")).Msg("seeded default settings")
	}

	for _, kv := range []struct{ key, value string }{
		{settingsdomain.KeyProviderType, cfg.ProviderType},
		{settingsdomain.KeyProviderURL, cfg.ProviderURL},
		{settingsdomain.KeyProviderToken, cfg.ProviderToken},
	} {
		if kv.value == "" {
			continue
		}
		if err := store.Set(ctx, kv.key, kv.value); err != nil {
			log.Error().Err(err).Str("key", kv.key).Msg("set provider setting")
			os.Exit(1)
		}
		log.Info().Str("key", kv.key).Msg("provider setting written")
	}
}
