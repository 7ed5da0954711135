package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"

	"streamguard/internal/audit"
	auditrepo "streamguard/internal/audit/repository"
	"streamguard/internal/config"
	"streamguard/internal/db"
	devicerepo "streamguard/internal/device/repository"
	deviceservice "streamguard/internal/device/service"
	"streamguard/internal/logger"
	"streamguard/internal/provider/source"
	sessionrepo "streamguard/internal/session/repository"
	"streamguard/internal/settings"
	settingsrepo "streamguard/internal/settings/repository"
	timerulerepo "streamguard/internal/timerule/repository"
	timeruleservice "streamguard/internal/timerule/service"
	userprefrepo "streamguard/internal/userpref/repository"
	userprefservice "streamguard/internal/userpref/service"
)

// app holds the services a command works against. They are built on first use so help output
// never needs a database.
type app struct {
	out io.Writer

	conn     *sql.DB
	store    *settings.Store
	registry *deviceservice.Registry
	prefs    *userprefservice.Service
	rules    *timeruleservice.Service
	sessions sessionrepo.Repository
	source   *source.Source
	cfg      *config.Config
}

func newApp(out io.Writer) *app {
	return &app{out: out}
}

// open connects to the database and loads settings. ctx carries the audit actor.
func (a *app) open(ctx context.Context) error {
	if a.conn != nil {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}
	// Only warnings reach the terminal; command output goes to a.out.
	log, err := logger.New(logger.Config{Level: "warn", Output: "stderr"})
	if err != nil {
		return err
	}
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn), log)
	store := settings.NewStore(settingsrepo.NewPostgresRepository(conn), auditLogger, log, cfg.SettingsTimeoutDuration())
	if err := store.Load(ctx); err != nil {
		conn.Close()
		return err
	}

	a.cfg = cfg
	a.conn = conn
	a.store = store
	a.registry = deviceservice.NewRegistry(devicerepo.NewPostgresRepository(conn), auditLogger, log)
	a.prefs = userprefservice.NewService(userprefrepo.NewPostgresRepository(conn), store, auditLogger)
	a.rules = timeruleservice.NewService(timerulerepo.NewPostgresRepository(conn), auditLogger)
	a.sessions = sessionrepo.NewPostgresRepository(conn)
	a.source = source.New(store, cfg.ProviderTimeoutDuration(), source.DefaultFactories(log))
	return nil
}

func (a *app) close() {
	if a.conn != nil {
		_ = a.conn.Close()
	}
}

// actor names the operator in audit entries: GUARDCTL_ACTOR, else cli:<login>.
func actor() string {
	if v := os.Getenv("GUARDCTL_ACTOR"); v != "" {
		return v
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return "cli:" + u.Username
	}
	return "cli"
}
