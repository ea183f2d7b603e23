package orchestrator

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Verifier,AuditPublisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ekyc/internal/audit"
	"ekyc/internal/decision"
	"ekyc/internal/kyc/models"
	"ekyc/internal/orchestrator/metrics"
	"ekyc/pkg/requestcontext"
)

const (
	tracerName = "ekyc/orchestrator"

	sanctionsUnavailableReason = "Sanctions service unavailable"
	unavailablePrefix          = "Service unavailable: "
)

// Verifier is one verification check. The provider variants satisfy it.
type Verifier interface {
	Type() models.CheckType
	Verify(ctx context.Context, customer models.Customer, req models.VerificationRequest, correlationID string) (models.VerificationResult, error)
}

// AuditPublisher records the decision of a run.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Providers holds one Verifier per check type.
type Providers struct {
	Document  Verifier
	Biometric Verifier
	Address   Verifier
	Sanctions Verifier
}

func (p Providers) validate() error {
	var errs []error
	if p.Document == nil {
		errs = append(errs, errors.New("document verifier is required"))
	}
	if p.Biometric == nil {
		errs = append(errs, errors.New("biometric verifier is required"))
	}
	if p.Address == nil {
		errs = append(errs, errors.New("address verifier is required"))
	}
	if p.Sanctions == nil {
		errs = append(errs, errors.New("sanctions verifier is required"))
	}
	return errors.Join(errs...)
}

// Service runs verification checks in a fixed order and reduces their
// results to a decision.
type Service struct {
	providers Providers
	engine    *decision.Engine
	logger    *slog.Logger
	metrics   *metrics.Metrics
	auditor   AuditPublisher
	tracer    trace.Tracer
	newID     func() string
	now       func(ctx context.Context) time.Time
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAuditPublisher emits one decision event per completed run.
func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithIDGenerator replaces the correlation id source used when a request
// carries no RequestID.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithClock sets the run time source. Every result of one run shares the
// time it returns.
func WithClock(fn func(ctx context.Context) time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// New wires the orchestrator. Every verifier and the engine are required.
func New(providers Providers, engine *decision.Engine, opts ...Option) (*Service, error) {
	if err := providers.validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, errors.New("decision engine is required")
	}
	s := &Service{
		providers: providers,
		engine:    engine,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		newID:     uuid.NewString,
		now:       requestcontext.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PerformVerification runs the requested checks and decides. The error is
// non-nil only for a malformed request, in which case no provider is called.
func (s *Service) PerformVerification(ctx context.Context, customer models.Customer, req models.VerificationRequest) (*models.DecisionResult, error) {
	start := time.Now()

	correlationID := req.RequestID
	if correlationID == "" {
		correlationID = s.newID()
	}
	runAt := s.now(ctx)
	ctx = requestcontext.WithTime(ctx, runAt)
	ctx = requestcontext.WithCorrelationID(ctx, correlationID)
	ctx = requestcontext.WithCustomerID(ctx, customer.ID)

	ctx, span := s.tracer.Start(ctx, "ekyc.verification", trace.WithAttributes(
		attribute.String("ekyc.correlation_id", correlationID),
		attribute.Int("ekyc.requested_checks", len(req.Types)),
	))
	defer span.End()

	if err := validateRequest(customer, req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		s.logger.WarnContext(ctx, "verification request rejected",
			"correlation_id", correlationID,
			"customer_id", customer.ID,
			"error", err,
		)
		return nil, err
	}

	s.logger.InfoContext(ctx, "verification started",
		"correlation_id", correlationID,
		"customer_id", customer.ID,
		"types", req.Types,
	)

	results := s.runChecks(ctx, customer, req, correlationID)
	outcome := s.engine.Evaluate(results)

	result := &models.DecisionResult{
		Decision:      outcome.Decision,
		Reason:        string(outcome.Reason),
		Results:       results,
		Timestamp:     runAt,
		RequestID:     req.RequestID,
		CustomerID:    customer.ID,
		CorrelationID: correlationID,
	}

	span.SetAttributes(
		attribute.String("ekyc.decision", string(result.Decision)),
		attribute.String("ekyc.reason", result.Reason),
	)
	s.metrics.IncrementOutcome(string(result.Decision), result.Reason)
	s.metrics.ObserveRunLatency(time.Since(start))
	s.emitAudit(ctx, result)
	s.logSummary(ctx, result)

	return result, nil
}

func validateRequest(customer models.Customer, req models.VerificationRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid verification request: %w", err)
	}
	if req.CustomerID != "" && req.CustomerID != customer.ID {
		return fmt.Errorf("invalid verification request: customer %q does not match request customer %q",
			customer.ID, req.CustomerID)
	}
	return nil
}

// runChecks executes sanctions first, then document, biometric and address.
// Anything but a CLEAR screening ends the run.
func (s *Service) runChecks(ctx context.Context, customer models.Customer, req models.VerificationRequest, correlationID string) []models.VerificationResult {
	results := make([]models.VerificationResult, 0, len(req.Types))

	if req.Requests(models.CheckSanctions) {
		screening, err := s.runCheck(ctx, s.providers.Sanctions, customer, req, correlationID)
		if err != nil {
			s.logger.ErrorContext(ctx, "sanctions screening unavailable, ending run",
				"correlation_id", correlationID,
				"error", err,
			)
			screening = models.Unavailable(models.CheckSanctions, sanctionsUnavailableReason, requestcontext.Now(ctx))
		}
		s.record(screening)
		results = append(results, screening)
		if screening.Status != models.StatusClear {
			s.metrics.IncrementShortCircuit()
			s.logger.InfoContext(ctx, "run stopped after sanctions screening",
				"correlation_id", correlationID,
				"status", screening.Status,
			)
			return results
		}
	}

	for _, v := range []Verifier{s.providers.Document, s.providers.Biometric, s.providers.Address} {
		if !req.Requests(v.Type()) {
			continue
		}
		result, err := s.runCheck(ctx, v, customer, req, correlationID)
		if err != nil {
			s.logger.ErrorContext(ctx, "verification check failed",
				"correlation_id", correlationID,
				"type", v.Type(),
				"error", err,
			)
			result = models.Unavailable(v.Type(), unavailablePrefix+err.Error(), requestcontext.Now(ctx))
		}
		s.record(result)
		results = append(results, result)
	}
	return results
}

// runCheck calls one verifier inside its own span. Panics and results that
// do not belong to the check are reported as errors.
func (s *Service) runCheck(ctx context.Context, v Verifier, customer models.Customer, req models.VerificationRequest, correlationID string) (result models.VerificationResult, err error) {
	checkType := v.Type()
	ctx, span := s.tracer.Start(ctx, "ekyc.check", trace.WithAttributes(
		attribute.String("ekyc.check_type", checkType.String()),
	))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s verifier panicked: %v", checkType, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "check failed")
		} else {
			span.SetAttributes(attribute.String("ekyc.status", string(result.Status)))
		}
		s.metrics.ObserveCheckLatency(checkType.String(), time.Since(start))
		span.End()
	}()

	result, err = v.Verify(ctx, customer, req, correlationID)
	if err != nil {
		return models.VerificationResult{}, err
	}
	if result.Type != checkType {
		return models.VerificationResult{}, fmt.Errorf("%s verifier returned a %s result", checkType, result.Type)
	}
	if err := result.Validate(); err != nil {
		return models.VerificationResult{}, err
	}
	if result.Reasons == nil {
		result.Reasons = []string{}
	}
	return result, nil
}

func (s *Service) record(result models.VerificationResult) {
	s.metrics.IncrementCheckResult(result.Type.String(), string(result.Status))
}

// emitAudit is best effort: a failing sink never changes the decision. The
// event is sent even when the caller's context is already cancelled.
func (s *Service) emitAudit(ctx context.Context, result *models.DecisionResult) {
	if s.auditor == nil {
		return
	}
	checks := make([]audit.CheckSummary, 0, len(result.Results))
	for _, r := range result.Results {
		checks = append(checks, audit.CheckSummary{
			Type:       r.Type.String(),
			Status:     string(r.Status),
			Confidence: r.Confidence,
		})
	}
	event := audit.Event{
		Timestamp:     result.Timestamp,
		Action:        audit.ActionDecisionMade,
		CustomerID:    result.CustomerID,
		RequestID:     result.RequestID,
		CorrelationID: result.CorrelationID,
		Decision:      string(result.Decision),
		Reason:        result.Reason,
		Checks:        checks,
	}
	if err := s.auditor.Emit(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WarnContext(ctx, "audit event not recorded",
			"correlation_id", result.CorrelationID,
			"error", err,
		)
	}
}

func (s *Service) logSummary(ctx context.Context, result *models.DecisionResult) {
	checks := make([]any, 0, len(result.Results))
	for _, r := range result.Results {
		attrs := []any{"status", r.Status}
		if r.Confidence != nil {
			attrs = append(attrs, "confidence", *r.Confidence)
		}
		checks = append(checks, slog.Group(r.Type.String(), attrs...))
	}
	s.logger.InfoContext(ctx, "verification completed",
		"correlation_id", result.CorrelationID,
		"customer_id", result.CustomerID,
		"decision", result.Decision,
		"reason", result.Reason,
		slog.Group("checks", checks...),
	)
}
