package providers

import (
	"context"
	"fmt"

	"ekyc/internal/kyc/models"
	"ekyc/pkg/platform/sentinel"
)

// sanctionsConfidence is fixed: screening is a list lookup, not a score.
const sanctionsConfidence = 100

// SanctionsProvider screens the customer against sanctions lists.
type SanctionsProvider struct {
	base
}

func NewSanctionsProvider(deps Deps, ep Endpoint, opts ...Option) (*SanctionsProvider, error) {
	b, err := newBase(models.CheckSanctions, SanctionsService, deps, ep, opts)
	if err != nil {
		return nil, err
	}
	return &SanctionsProvider{base: b}, nil
}

// Verify returns the screening result, or an error wrapping
// sentinel.ErrUnavailable when no mappable answer could be obtained. Unlike
// the other checks the failure is not absorbed here; the caller decides how
// to end the run.
func (p *SanctionsProvider) Verify(ctx context.Context, customer models.Customer, _ models.VerificationRequest, correlationID string) (models.VerificationResult, error) {
	payload := sanctionsRequest{
		CustomerID:  customer.ID,
		FullName:    customer.FullName,
		DateOfBirth: customer.DateOfBirth,
		Nationality: customer.Nationality,
	}

	resp, err := invoke[sanctionsResponse](ctx, &p.base, payload, correlationID)
	if err != nil {
		return models.VerificationResult{}, p.failure(ctx, correlationID, err)
	}

	status, err := p.parseStatus(resp.Status)
	if err != nil {
		return models.VerificationResult{}, p.failure(ctx, correlationID, err)
	}

	result, err := p.checked(models.VerificationResult{
		Type:       models.CheckSanctions,
		Status:     status,
		Confidence: models.IntPtr(sanctionsConfidence),
		Reasons:    nonNil(resp.Matches),
		Timestamp:  p.now(ctx),
		MatchCount: models.IntPtr(resp.MatchCount),
	})
	if err != nil {
		return models.VerificationResult{}, p.failure(ctx, correlationID, err)
	}
	return result, nil
}

func (p *SanctionsProvider) failure(ctx context.Context, correlationID string, err error) error {
	p.logger.ErrorContext(ctx, "sanctions screening failed",
		"service", p.service,
		"correlation_id", correlationID,
		"category", GetCategory(err),
		"error", err,
	)
	return fmt.Errorf("%w: sanctions screening: %w", sentinel.ErrUnavailable, err)
}
