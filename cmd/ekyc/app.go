package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"ekyc/internal/audit"
	"ekyc/internal/decision"
	"ekyc/internal/orchestrator"
	orchmetrics "ekyc/internal/orchestrator/metrics"
	"ekyc/internal/platform/config"
	platformmetrics "ekyc/internal/platform/metrics"
	platformredis "ekyc/internal/platform/redis"
	"ekyc/internal/providers"
	"ekyc/internal/ratelimit"
	rlmetrics "ekyc/internal/ratelimit/metrics"
	"ekyc/internal/ratelimit/store/bucket"
	ratelimitredis "ekyc/internal/ratelimit/store/redis"
	"ekyc/internal/retry"
)

const auditInboxSize = 256

// app holds everything one CLI invocation wires together.
type app struct {
	service  *orchestrator.Service
	registry *prometheus.Registry
	redis    *platformredis.Client
	store    ratelimit.Store
	logger   *slog.Logger
	closers  []func()
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{registry: platformmetrics.NewRegistry(), logger: logger}

	limiter, err := a.buildLimiter(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	deps := providers.Deps{
		Limiter: limiter,
		Retrier: retry.New(
			retry.WithMaxAttempts(cfg.Retry.MaxAttempts),
			retry.WithInitialBackoff(cfg.Retry.InitialBackoff),
			retry.WithMultiplier(cfg.Retry.Multiplier),
			retry.WithLogger(logger),
			retry.WithMetrics(retry.NewMetrics(a.registry)),
		),
		Transport: providers.NewHTTPTransport(nil),
	}
	verifiers, err := buildProviders(deps, cfg.Providers, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	publisher, err := a.buildAudit(ctx, cfg.Kafka)
	if err != nil {
		a.close()
		return nil, err
	}

	engine := decision.NewEngine(thresholds(cfg.Thresholds))
	a.service, err = orchestrator.New(verifiers, engine,
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(orchmetrics.New(a.registry)),
		orchestrator.WithAuditPublisher(publisher),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// buildLimiter keeps admission state in memory unless Redis is configured,
// in which case Redis is primary and memory takes over while it is down.
func (a *app) buildLimiter(ctx context.Context, cfg config.Config) (*ratelimit.Limiter, error) {
	m := rlmetrics.New(a.registry)
	var store ratelimit.Store = bucket.New()

	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect rate limit store: %w", err)
	}
	if client != nil {
		a.redis = client
		a.closers = append(a.closers, func() { _ = client.Close() })
		store = ratelimit.NewFallbackStore(ratelimitredis.New(client.Client), store,
			ratelimit.WithFallbackLogger(a.logger),
			ratelimit.WithFallbackMetrics(m),
		)
		a.logger.InfoContext(ctx, "rate limiter using redis", "url", redactURL(cfg.Redis.URL))
	}
	a.store = store

	return ratelimit.New(store,
		ratelimit.WithQuota(cfg.RateLimit.Quota),
		ratelimit.WithWindow(cfg.RateLimit.Window),
		ratelimit.WithPollInterval(cfg.RateLimit.PollInterval),
		ratelimit.WithLogger(a.logger),
		ratelimit.WithMetrics(m),
	)
}

// buildAudit sends decisions to Kafka through a background worker when
// brokers are configured, and to the log otherwise.
func (a *app) buildAudit(ctx context.Context, cfg config.KafkaConfig) (*audit.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return audit.NewPublisher(audit.NewLogStore(a.logger), audit.WithLogger(a.logger))
	}

	sink, err := audit.NewKafkaStore(cfg.Brokers, cfg.AuditTopic)
	if err != nil {
		return nil, err
	}
	inbox := make(chan audit.Event, auditInboxSize)
	worker := audit.NewWorker(sink, inbox, a.logger)

	var wg sync.WaitGroup
	wg.Go(func() {
		_ = worker.Run(context.WithoutCancel(ctx))
	})
	a.closers = append(a.closers, func() {
		close(inbox)
		wg.Wait()
		sink.Close()
	})
	a.logger.InfoContext(ctx, "audit events published to kafka",
		"brokers", cfg.Brokers,
		"topic", cfg.AuditTopic,
	)
	return audit.NewPublisher(audit.NewChannelStore(inbox), audit.WithLogger(a.logger))
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func buildProviders(deps providers.Deps, cfg config.ProvidersConfig, logger *slog.Logger) (orchestrator.Providers, error) {
	ep := func(name string, c config.EndpointConfig) providers.Endpoint {
		return providers.Endpoint{Name: name, URL: c.URL, Timeout: c.Timeout}
	}
	opt := providers.WithLogger(logger)

	document, err := providers.NewDocumentProvider(deps, ep(providers.DocumentService, cfg.Document), opt)
	if err != nil {
		return orchestrator.Providers{}, fmt.Errorf("document provider: %w", err)
	}
	biometric, err := providers.NewBiometricProvider(deps, ep(providers.BiometricService, cfg.Biometric), opt)
	if err != nil {
		return orchestrator.Providers{}, fmt.Errorf("biometric provider: %w", err)
	}
	address, err := providers.NewAddressProvider(deps, ep(providers.AddressService, cfg.Address), opt)
	if err != nil {
		return orchestrator.Providers{}, fmt.Errorf("address provider: %w", err)
	}
	sanctions, err := providers.NewSanctionsProvider(deps, ep(providers.SanctionsService, cfg.Sanctions), opt)
	if err != nil {
		return orchestrator.Providers{}, fmt.Errorf("sanctions provider: %w", err)
	}
	return orchestrator.Providers{
		Document:  document,
		Biometric: biometric,
		Address:   address,
		Sanctions: sanctions,
	}, nil
}

func thresholds(c config.ThresholdConfig) decision.Thresholds {
	return decision.Thresholds{
		DocumentConfidence:  c.DocumentConfidence,
		BiometricConfidence: c.BiometricConfidence,
		BiometricSimilarity: c.BiometricSimilarity,
		AddressConfidence:   c.AddressConfidence,
	}
}
