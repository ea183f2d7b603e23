// Package providers adapts the four outbound verification services onto the
// canonical VerificationResult. Each call is admitted by the rate limiter and
// wrapped in the retry handler.
package providers

//go:generate mockgen -source=providers.go -destination=mocks/mocks.go -package=mocks Limiter,Retrier,Transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ekyc/internal/kyc/models"
	"ekyc/internal/retry"
	"ekyc/pkg/platform/sentinel"
	"ekyc/pkg/requestcontext"
)

// Service names double as rate-limit bucket names.
const (
	DocumentService  = "DocumentVerificationService"
	BiometricService = "BiometricService"
	AddressService   = "AddressVerificationService"
	SanctionsService = "SanctionsScreeningService"
)

// Limiter admits outbound calls per service.
type Limiter interface {
	Acquire(ctx context.Context, service string) error
}

// Retrier runs an operation under a retry budget.
type Retrier interface {
	Execute(ctx context.Context, op retry.Operation, service, correlationID string) error
}

// Transport performs one synchronous call to a provider endpoint.
type Transport interface {
	Call(ctx context.Context, ep Endpoint, payload, out any, correlationID string) error
}

// Deps are the collaborators shared by every provider variant.
type Deps struct {
	Limiter   Limiter
	Retrier   Retrier
	Transport Transport
}

func (d Deps) validate() error {
	var errs []error
	if d.Limiter == nil {
		errs = append(errs, errors.New("limiter is required"))
	}
	if d.Retrier == nil {
		errs = append(errs, errors.New("retrier is required"))
	}
	if d.Transport == nil {
		errs = append(errs, errors.New("transport is required"))
	}
	return errors.Join(errs...)
}

// Option configures a provider variant.
type Option func(*base)

func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// base holds what the four variants share: the outbound call path and the
// unavailable-result synthesis.
type base struct {
	checkType models.CheckType
	service   string
	endpoint  Endpoint
	deps      Deps
	logger    *slog.Logger
}

func newBase(checkType models.CheckType, service string, deps Deps, ep Endpoint, opts []Option) (base, error) {
	if err := deps.validate(); err != nil {
		return base{}, fmt.Errorf("%s: %w", service, err)
	}
	if ep.URL == "" {
		return base{}, fmt.Errorf("%s: endpoint URL is required", service)
	}
	if ep.Name == "" {
		ep.Name = service
	}
	b := base{
		checkType: checkType,
		service:   service,
		endpoint:  ep,
		deps:      deps,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b, nil
}

// Type reports which check the provider performs.
func (b *base) Type() models.CheckType {
	return b.checkType
}

// invoke waits for admission and then calls the endpoint under the retry
// budget. Each attempt decodes into a fresh response value.
func invoke[Resp any](ctx context.Context, b *base, payload any, correlationID string) (Resp, error) {
	if err := b.deps.Limiter.Acquire(ctx, b.service); err != nil {
		var zero Resp
		return zero, err
	}

	return retry.Do(ctx, b.deps.Retrier, func(ctx context.Context) (Resp, error) {
		var attempt Resp
		err := b.deps.Transport.Call(ctx, b.endpoint, payload, &attempt, correlationID)
		return attempt, err
	}, b.service, correlationID)
}

// parseStatus maps a wire status, reporting unmapped values as a contract
// mismatch.
func (b *base) parseStatus(wire string) (models.Status, error) {
	status, err := models.ParseStatus(b.checkType, wire)
	if err != nil {
		return "", NewProviderError(ErrorContractMismatch, b.service, "unmapped status", err)
	}
	return status, nil
}

// checked validates a mapped result before it leaves the provider.
func (b *base) checked(result models.VerificationResult) (models.VerificationResult, error) {
	if err := result.Validate(); err != nil {
		return models.VerificationResult{}, NewProviderError(ErrorBadData, b.service, "invalid result", err)
	}
	return result, nil
}

// unavailable absorbs err into the synthetic FAIL result.
func (b *base) unavailable(ctx context.Context, correlationID string, err error) models.VerificationResult {
	level := slog.LevelError
	if errors.Is(err, sentinel.ErrInterrupted) {
		level = slog.LevelWarn
	}
	b.logger.Log(ctx, level, "verification check unavailable",
		"service", b.service,
		"check", b.checkType,
		"correlation_id", correlationID,
		"category", GetCategory(err),
		"retryable", IsRetryable(err),
		"error", err,
	)
	return models.Unavailable(b.checkType, "Service unavailable: "+err.Error(), b.now(ctx))
}

func (b *base) now(ctx context.Context) time.Time {
	return requestcontext.Now(ctx)
}

func nonNil(reasons []string) []string {
	if reasons == nil {
		return []string{}
	}
	return reasons
}
