package orchestrator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ekyc/internal/audit"
	"ekyc/internal/decision"
	"ekyc/internal/kyc/models"
	"ekyc/internal/orchestrator"
	"ekyc/internal/orchestrator/metrics"
	"ekyc/internal/orchestrator/mocks"
	"ekyc/pkg/platform/sentinel"
	"ekyc/pkg/requestcontext"
)

var runTime = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	document  *mocks.MockVerifier
	biometric *mocks.MockVerifier
	address   *mocks.MockVerifier
	sanctions *mocks.MockVerifier
	auditLog  *audit.InMemoryStore
	metrics   *metrics.Metrics
	service   *orchestrator.Service
	ctx       context.Context
	customer  models.Customer
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.document = s.verifier(models.CheckDocument)
	s.biometric = s.verifier(models.CheckBiometric)
	s.address = s.verifier(models.CheckAddress)
	s.sanctions = s.verifier(models.CheckSanctions)

	s.auditLog = audit.NewInMemoryStore()
	publisher, err := audit.NewPublisher(s.auditLog)
	s.Require().NoError(err)
	s.metrics = metrics.New(prometheus.NewRegistry())

	s.service = s.newService(
		orchestrator.WithAuditPublisher(publisher),
		orchestrator.WithMetrics(s.metrics),
	)
	s.ctx = requestcontext.WithTime(context.Background(), runTime)
	s.customer = models.Customer{ID: "cust-1", FullName: "Ada Lovelace", DateOfBirth: "1815-12-10"}
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) verifier(t models.CheckType) *mocks.MockVerifier {
	v := mocks.NewMockVerifier(s.ctrl)
	v.EXPECT().Type().Return(t).AnyTimes()
	return v
}

func (s *ServiceSuite) newService(opts ...orchestrator.Option) *orchestrator.Service {
	svc, err := orchestrator.New(orchestrator.Providers{
		Document:  s.document,
		Biometric: s.biometric,
		Address:   s.address,
		Sanctions: s.sanctions,
	}, decision.NewEngine(decision.DefaultThresholds()), opts...)
	s.Require().NoError(err)
	return svc
}

func request(types ...models.CheckType) models.VerificationRequest {
	return models.VerificationRequest{RequestID: "req-1", CustomerID: "cust-1", Types: types}
}

func pass(t models.CheckType, confidence int) models.VerificationResult {
	return models.VerificationResult{
		Type:       t,
		Status:     models.StatusPass,
		Confidence: models.IntPtr(confidence),
		Reasons:    []string{},
		Timestamp:  runTime,
	}
}

func screening(status models.Status, matches ...string) models.VerificationResult {
	return models.VerificationResult{
		Type:       models.CheckSanctions,
		Status:     status,
		Confidence: models.IntPtr(100),
		Reasons:    append([]string{}, matches...),
		Timestamp:  runTime,
		MatchCount: models.IntPtr(len(matches)),
	}
}

func types(results []models.VerificationResult) []models.CheckType {
	out := make([]models.CheckType, 0, len(results))
	for _, r := range results {
		out = append(out, r.Type)
	}
	return out
}

// =============================================================================
// Construction
// =============================================================================

func (s *ServiceSuite) TestNewRequiresEveryDependency() {
	_, err := orchestrator.New(orchestrator.Providers{}, decision.NewEngine(decision.DefaultThresholds()))
	s.Require().Error(err)
	s.Contains(err.Error(), "document verifier is required")
	s.Contains(err.Error(), "sanctions verifier is required")

	_, err = orchestrator.New(orchestrator.Providers{
		Document: s.document, Biometric: s.biometric, Address: s.address, Sanctions: s.sanctions,
	}, nil)
	s.ErrorContains(err, "decision engine is required")
}

// =============================================================================
// Sanctions critical path
// =============================================================================

func (s *ServiceSuite) TestSanctionsHitShortCircuits() {
	s.sanctions.EXPECT().Verify(gomock.Any(), s.customer, gomock.Any(), "req-1").
		Return(screening(models.StatusHit, "OFAC SDN: ADA LOVELACE"), nil)
	// document, biometric and address carry no Verify expectation: any call fails the test

	result, err := s.service.PerformVerification(s.ctx, s.customer,
		request(models.CheckDocument, models.CheckBiometric, models.CheckAddress, models.CheckSanctions))
	s.Require().NoError(err)

	s.Equal(models.DecisionRejected, result.Decision)
	s.Equal(string(decision.ReasonSanctionsHit), result.Reason)
	s.Equal([]models.CheckType{models.CheckSanctions}, types(result.Results))
	s.Equal([]string{"OFAC SDN: ADA LOVELACE"}, result.Results[0].Reasons)
	s.InDelta(1, testutil.ToFloat64(s.metrics.ShortCircuits), 0)
}

func (s *ServiceSuite) TestSanctionsFailureEndsRunForReview() {
	s.sanctions.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.VerificationResult{}, sentinel.ErrUnavailable)

	result, err := s.service.PerformVerification(s.ctx, s.customer,
		request(models.CheckSanctions, models.CheckDocument))
	s.Require().NoError(err)

	s.Equal(models.DecisionManualReview, result.Decision)
	s.Equal(string(decision.ReasonSanctionsUnavailable), result.Reason)
	s.Require().Len(result.Results, 1)
	synthetic := result.Results[0]
	s.Equal(models.CheckSanctions, synthetic.Type)
	s.Equal(models.StatusFail, synthetic.Status)
	s.Equal(0, *synthetic.Confidence)
	s.Equal([]string{"Sanctions service unavailable"}, synthetic.Reasons)
	s.Equal(runTime, synthetic.Timestamp)
}

func (s *ServiceSuite) TestSanctionsPanicEndsRunForReview() {
	s.sanctions.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, models.Customer, models.VerificationRequest, string) (models.VerificationResult, error) {
			panic("screening list not loaded")
		})

	result, err := s.service.PerformVerification(s.ctx, s.customer,
		request(models.CheckSanctions, models.CheckAddress))
	s.Require().NoError(err)

	s.Equal(models.DecisionManualReview, result.Decision)
	s.Equal([]string{"Sanctions service unavailable"}, result.Results[0].Reasons)
}

// A screening answered with PASS or FAIL is kept as the provider sent it and
// still ends the run.
func (s *ServiceSuite) TestNonScreeningStatusIsKeptAndEndsRun() {
	cases := []struct {
		status models.Status
		reason decision.Reason
	}{
		{status: models.StatusFail, reason: decision.ReasonSanctionsUnavailable},
		{status: models.StatusPass, reason: decision.ReasonNotAllPassed},
	}
	for _, tc := range cases {
		s.Run(string(tc.status), func() {
			s.sanctions.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Return(screening(tc.status, "screening incomplete: ambiguous name"), nil)

			result, err := s.service.PerformVerification(s.ctx, s.customer,
				request(models.CheckSanctions, models.CheckDocument))
			s.Require().NoError(err)

			s.Equal(models.DecisionManualReview, result.Decision)
			s.Equal(string(tc.reason), result.Reason)
			s.Require().Len(result.Results, 1)
			s.Equal(tc.status, result.Results[0].Status)
			s.Equal([]string{"screening incomplete: ambiguous name"}, result.Results[0].Reasons)
		})
	}

	events, err := s.auditLog.ListAll(context.Background())
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(models.StatusFail), events[0].Checks[0].Status)
	s.Equal(string(models.StatusPass), events[1].Checks[0].Status)
}

// =============================================================================
// Ordering and failure absorption
// =============================================================================

func (s *ServiceSuite) TestChecksRunInFixedOrder() {
	gomock.InOrder(
		s.sanctions.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(screening(models.StatusClear), nil),
		s.document.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pass(models.CheckDocument, 95), nil),
		s.biometric.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pass(models.CheckBiometric, 92), nil),
		s.address.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pass(models.CheckAddress, 88), nil),
	)

	result, err := s.service.PerformVerification(s.ctx, s.customer,
		request(models.CheckAddress, models.CheckDocument, models.CheckSanctions, models.CheckBiometric))
	s.Require().NoError(err)

	s.Equal(models.DecisionApproved, result.Decision)
	s.Equal(string(decision.ReasonAllChecksPassed), result.Reason)
	s.Equal([]models.CheckType{
		models.CheckSanctions, models.CheckDocument, models.CheckBiometric, models.CheckAddress,
	}, types(result.Results))
	s.InDelta(1, testutil.ToFloat64(s.metrics.DecisionOutcome.WithLabelValues("APPROVED", "all_checks_passed")), 0)
	s.InDelta(1, testutil.ToFloat64(s.metrics.CheckResults.WithLabelValues("ADDRESS", "PASS")), 0)
}

func (s *ServiceSuite) TestOnlyRequestedChecksRun() {
	s.address.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(pass(models.CheckAddress, 70), nil)

	result, err := s.service.PerformVerification(s.ctx, s.customer, request(models.CheckAddress))
	s.Require().NoError(err)

	s.Equal(models.DecisionManualReview, result.Decision)
	s.Equal(string(decision.ReasonManualReview), result.Reason)
	s.Equal([]models.CheckType{models.CheckAddress}, types(result.Results))
}

func (s *ServiceSuite) TestVerifierErrorBecomesSyntheticFailure() {
	s.document.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(pass(models.CheckDocument, 95), nil)
	s.biometric.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.VerificationResult{}, errors.New("connection reset"))
	s.address.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(pass(models.CheckAddress, 90), nil)

	result, err := s.service.PerformVerification(s.ctx, s.customer,
		request(models.CheckDocument, models.CheckBiometric, models.CheckAddress))
	s.Require().NoError(err)

	s.Require().Len(result.Results, 3)
	failed := result.Results[1]
	s.Equal(models.CheckBiometric, failed.Type)
	s.Equal(models.StatusFail, failed.Status)
	s.Equal(0, *failed.Confidence)
	s.Equal([]string{"Service unavailable: connection reset"}, failed.Reasons)
	s.Equal(models.DecisionManualReview, result.Decision)
}

func (s *ServiceSuite) TestVerifierPanicIsAbsorbed() {
	s.document.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, models.Customer, models.VerificationRequest, string) (models.VerificationResult, error) {
			panic(errors.New("decoder state corrupted"))
		})
	s.address.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(pass(models.CheckAddress, 90), nil)

	result, err := s.service.PerformVerification(s.ctx, s.customer,
		request(models.CheckDocument, models.CheckAddress))
	s.Require().NoError(err)

	s.Require().Len(result.Results, 2)
	s.Equal(models.StatusFail, result.Results[0].Status)
	s.Contains(result.Results[0].Reasons[0], "ID_DOCUMENT verifier panicked")
	s.Equal(models.StatusPass, result.Results[1].Status)
	s.Equal(models.DecisionManualReview, result.Decision)
}

func (s *ServiceSuite) TestInvalidVerifierResultIsRejected() {
	s.document.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(pass(models.CheckAddress, 99), nil)
	s.biometric.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(pass(models.CheckBiometric, 140), nil)

	result, err := s.service.PerformVerification(s.ctx, s.customer,
		request(models.CheckDocument, models.CheckBiometric))
	s.Require().NoError(err)

	s.Equal([]models.CheckType{models.CheckDocument, models.CheckBiometric}, types(result.Results))
	for _, r := range result.Results {
		s.Equal(models.StatusFail, r.Status)
	}
	s.NotEqual(models.DecisionApproved, result.Decision)
}

// =============================================================================
// Request handling
// =============================================================================

func (s *ServiceSuite) TestMalformedRequestCallsNoProvider() {
	tests := []struct {
		name string
		req  models.VerificationRequest
	}{
		{name: "no types", req: request()},
		{name: "unknown type", req: request(models.CheckType("CREDIT_SCORE"))},
		{name: "duplicate type", req: request(models.CheckAddress, models.CheckAddress)},
		{name: "customer mismatch", req: models.VerificationRequest{CustomerID: "someone-else", Types: []models.CheckType{models.CheckAddress}}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			result, err := s.service.PerformVerification(s.ctx, s.customer, tt.req)
			s.Require().Error(err)
			s.Nil(result)
			s.Contains(err.Error(), "invalid verification request")
		})
	}

	events, err := s.auditLog.ListAll(context.Background())
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *ServiceSuite) TestMalformedRequestWrapsInvalidInput() {
	_, err := s.service.PerformVerification(s.ctx, s.customer, request())
	s.ErrorIs(err, sentinel.ErrInvalidInput)
}

func (s *ServiceSuite) TestCorrelationIDPropagates() {
	s.Run("request id is used", func() {
		s.address.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), "req-1").
			DoAndReturn(func(ctx context.Context, _ models.Customer, _ models.VerificationRequest, _ string) (models.VerificationResult, error) {
				s.Equal("req-1", requestcontext.CorrelationID(ctx))
				s.Equal("cust-1", requestcontext.CustomerID(ctx))
				return pass(models.CheckAddress, 90), nil
			})

		result, err := s.service.PerformVerification(s.ctx, s.customer, request(models.CheckAddress))
		s.Require().NoError(err)
		s.Equal("req-1", result.CorrelationID)
		s.Equal("req-1", result.RequestID)
	})

	s.Run("generated when request id is empty", func() {
		svc := s.newService(orchestrator.WithIDGenerator(func() string { return "generated-id" }))
		s.address.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), "generated-id").
			Return(pass(models.CheckAddress, 90), nil)

		req := request(models.CheckAddress)
		req.RequestID = ""
		result, err := svc.PerformVerification(s.ctx, s.customer, req)
		s.Require().NoError(err)
		s.Equal("generated-id", result.CorrelationID)
		s.Empty(result.RequestID)
	})
}

func (s *ServiceSuite) TestClockPinsRunTime() {
	pinned := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := s.newService(orchestrator.WithClock(func(context.Context) time.Time { return pinned }))
	s.document.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.VerificationResult{}, errors.New("down"))

	result, err := svc.PerformVerification(context.Background(), s.customer, request(models.CheckDocument))
	s.Require().NoError(err)

	s.Equal(pinned, result.Timestamp)
	s.Equal(pinned, result.Results[0].Timestamp)
}

// =============================================================================
// Audit
// =============================================================================

func (s *ServiceSuite) TestAuditEventEmittedOncePerRun() {
	s.sanctions.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(screening(models.StatusClear), nil)
	s.document.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(pass(models.CheckDocument, 91), nil)

	_, err := s.service.PerformVerification(s.ctx, s.customer,
		request(models.CheckSanctions, models.CheckDocument))
	s.Require().NoError(err)

	events, err := s.auditLog.ListByCustomer(context.Background(), "cust-1")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	event := events[0]
	s.Equal(audit.ActionDecisionMade, event.Action)
	s.Equal("APPROVED", event.Decision)
	s.Equal("all_checks_passed", event.Reason)
	s.Equal("req-1", event.CorrelationID)
	s.Equal(runTime, event.Timestamp)
	s.Equal([]audit.CheckSummary{
		{Type: "SANCTIONS", Status: "CLEAR", Confidence: models.IntPtr(100)},
		{Type: "ID_DOCUMENT", Status: "PASS", Confidence: models.IntPtr(91)},
	}, event.Checks)
}

func (s *ServiceSuite) TestAuditFailureDoesNotChangeDecision() {
	publisher := mocks.NewMockAuditPublisher(s.ctrl)
	publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("broker unreachable")).Times(1)
	svc := s.newService(orchestrator.WithAuditPublisher(publisher))
	s.sanctions.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(screening(models.StatusHit, "EU list"), nil)

	result, err := svc.PerformVerification(s.ctx, s.customer, request(models.CheckSanctions))
	s.Require().NoError(err)
	s.Equal(models.DecisionRejected, result.Decision)
}

func (s *ServiceSuite) TestAuditSurvivesCancelledContext() {
	publisher := mocks.NewMockAuditPublisher(s.ctrl)
	publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ audit.Event) error {
			s.NoError(ctx.Err())
			return nil
		})
	svc := s.newService(orchestrator.WithAuditPublisher(publisher))
	s.sanctions.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.VerificationResult{}, sentinel.ErrInterrupted)

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	result, err := svc.PerformVerification(ctx, s.customer, request(models.CheckSanctions))
	s.Require().NoError(err)
	s.Equal(models.DecisionManualReview, result.Decision)
}
