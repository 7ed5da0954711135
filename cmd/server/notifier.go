package main

import (
	"context"

	"streamguard/internal/config"
	"streamguard/internal/logger"
	"streamguard/internal/notify"
	otelsetup "streamguard/internal/telemetry/otel"
)

// buildNotifier fans stream-blocked events out to OTel logs and, when configured, Kafka and JetStream.
// A sink that cannot be set up is logged and skipped.
func buildNotifier(ctx context.Context, cfg *config.Config, providers *otelsetup.Providers, log logger.Logger) (notify.Notifier, func()) {
	sinks := notify.Multi{otelsetup.NewLogNotifier(providers.LoggerProvider)}
	var closers []func() error

	if k := notify.NewKafkaNotifier(cfg.KafkaBrokersList(), cfg.NotifyKafkaTopic); k != nil {
		sinks = append(sinks, k)
		closers = append(closers, k.Close)
		log.Info().Str("topic", cfg.NotifyKafkaTopic).Msg("kafka notifications enabled")
	}

	if cfg.NATSURL != "" {
		js, err := notify.NewJetStreamNotifier(ctx, cfg.NATSURL, cfg.NotifyNATSStream, cfg.NotifyNATSSubject)
		if err != nil {
			log.Warn().Err(err).Msg("jetstream notifications disabled")
		} else {
			sinks = append(sinks, js)
			closers = append(closers, js.Close)
			log.Info().Str("subject", cfg.NotifyNATSSubject).Msg("jetstream notifications enabled")
		}
	}

	return sinks, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn().Err(err).Msg("close notifier")
			}
		}
	}
}
