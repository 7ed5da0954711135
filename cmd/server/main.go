// server is the streamguard daemon: it polls the media server, reconciles session history and
// terminates sessions that policy blocks.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"streamguard/internal/audit"
	auditrepo "streamguard/internal/audit/repository"
	"streamguard/internal/config"
	"streamguard/internal/db"
	devicerepo "streamguard/internal/device/repository"
	deviceservice "streamguard/internal/device/service"
	"streamguard/internal/logger"
	"streamguard/internal/monitor"
	"streamguard/internal/notify"
	"streamguard/internal/policy/engine"
	"streamguard/internal/provider/source"
	"streamguard/internal/scheduler"
	sessionrepo "streamguard/internal/session/repository"
	sessionservice "streamguard/internal/session/service"
	"streamguard/internal/settings"
	settingsdomain "streamguard/internal/settings/domain"
	settingsrepo "streamguard/internal/settings/repository"
	otelsetup "streamguard/internal/telemetry/otel"
	"streamguard/internal/termination"
	timerulerepo "streamguard/internal/timerule/repository"
	timeruleservice "streamguard/internal/timerule/service"
	userprefrepo "streamguard/internal/userpref/repository"
	userprefservice "streamguard/internal/userpref/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Debug: cfg.Debug, Output: cfg.LogOutput})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer conn.Close()

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn), log)

	store := settings.NewStore(settingsrepo.NewPostgresRepository(conn), auditLogger, log, cfg.SettingsTimeoutDuration())
	if err := store.Load(ctx); err != nil {
		return err
	}
	go func() {
		if err := store.Listen(ctx, cfg.DatabaseURL); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("settings listener stopped")
		}
	}()

	src := source.New(store, cfg.ProviderTimeoutDuration(), source.DefaultFactories(log))
	store.Subscribe(src.OnSettingsChanged)

	registry := deviceservice.NewRegistry(devicerepo.NewPostgresRepository(conn), auditLogger, log)
	prefs := userprefservice.NewService(userprefrepo.NewPostgresRepository(conn), store, auditLogger)
	rules := timeruleservice.NewService(timerulerepo.NewPostgresRepository(conn), auditLogger)

	evaluator := engine.NewEvaluator(registry, prefs, rules, store, log)
	if decider, err := engine.NewRegoDecider(ctx, log); err != nil {
		log.Warn().Err(err).Msg("rego policy unavailable, using built-in rules")
	} else if err := decider.HealthCheck(ctx); err != nil {
		log.Warn().Err(err).Msg("rego policy health check failed, using built-in rules")
	} else {
		evaluator.WithRego(decider)
	}

	notifier, closeNotifier := buildNotifier(ctx, cfg, providers, log)
	defer closeNotifier()
	deliveries := &notify.Dispatcher{}

	mon := monitor.New(monitor.Config{
		Source:          src,
		Reconciler:      sessionservice.NewReconciler(sessionrepo.NewPostgresRepository(conn), registry, prefs, log),
		Evaluator:       evaluator,
		Terminator:      termination.NewExecutor(store, cfg.ProviderTimeoutDuration(), log),
		Notifier:        notifier,
		ProviderTimeout: cfg.ProviderTimeoutDuration(),
		Dispatcher:      deliveries,
	}, log)

	sched := scheduler.New(mon.Run, store.RefreshInterval(), log)
	store.Subscribe(func(changed []string) {
		if slices.Contains(changed, settingsdomain.KeyRefreshInterval) {
			sched.Reschedule(store.RefreshInterval())
		}
	})

	log.Info().Str("env", cfg.Env).Dur("interval", sched.Interval()).Msg("streamguard starting")
	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info().Msg("shutting down")
	// In-flight notifications run detached from ctx.
	if !deliveries.Wait(notify.ShutdownDrainTimeout) {
		log.Warn().Dur("timeout", notify.ShutdownDrainTimeout).Msg("notifications still in flight at shutdown")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("stopped")
	return nil
}
