package providers

import (
	"context"

	"ekyc/internal/kyc/models"
)

// BiometricProvider matches a selfie against the ID document photo.
type BiometricProvider struct {
	base
}

func NewBiometricProvider(deps Deps, ep Endpoint, opts ...Option) (*BiometricProvider, error) {
	b, err := newBase(models.CheckBiometric, BiometricService, deps, ep, opts)
	if err != nil {
		return nil, err
	}
	return &BiometricProvider{base: b}, nil
}

// Verify never returns an error: failures become an unavailable result.
// The face-match service sends no reasons, so Reasons is always empty.
func (p *BiometricProvider) Verify(ctx context.Context, customer models.Customer, req models.VerificationRequest, correlationID string) (models.VerificationResult, error) {
	payload := biometricRequest{
		CustomerID: customer.ID,
		SelfieURL:  req.Biometric.SelfieURL,
		IDPhotoURL: req.Biometric.IDPhotoURL,
	}

	resp, err := invoke[biometricResponse](ctx, &p.base, payload, correlationID)
	if err != nil {
		return p.unavailable(ctx, correlationID, err), nil
	}

	status, err := p.parseStatus(resp.Status)
	if err != nil {
		return p.unavailable(ctx, correlationID, err), nil
	}

	result, err := p.checked(models.VerificationResult{
		Type:            models.CheckBiometric,
		Status:          status,
		Confidence:      resp.Confidence,
		Reasons:         []string{},
		Timestamp:       p.now(ctx),
		SimilarityScore: resp.SimilarityScore,
	})
	if err != nil {
		return p.unavailable(ctx, correlationID, err), nil
	}
	return result, nil
}
