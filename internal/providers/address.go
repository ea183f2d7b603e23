package providers

import (
	"context"

	"ekyc/internal/kyc/models"
)

// AddressProvider checks proof-of-address documents.
type AddressProvider struct {
	base
}

func NewAddressProvider(deps Deps, ep Endpoint, opts ...Option) (*AddressProvider, error) {
	b, err := newBase(models.CheckAddress, AddressService, deps, ep, opts)
	if err != nil {
		return nil, err
	}
	return &AddressProvider{base: b}, nil
}

// Verify never returns an error: failures become an unavailable result.
func (p *AddressProvider) Verify(ctx context.Context, customer models.Customer, req models.VerificationRequest, correlationID string) (models.VerificationResult, error) {
	payload := addressRequest{
		CustomerID: customer.ID,
		Address:    customer.Address,
		ProofType:  req.Address.ProofType,
		ProofDate:  req.Address.ProofDate,
		ProofURL:   req.Address.ProofURL,
	}

	resp, err := invoke[addressResponse](ctx, &p.base, payload, correlationID)
	if err != nil {
		return p.unavailable(ctx, correlationID, err), nil
	}

	status, err := p.parseStatus(resp.Status)
	if err != nil {
		return p.unavailable(ctx, correlationID, err), nil
	}

	result, err := p.checked(models.VerificationResult{
		Type:       models.CheckAddress,
		Status:     status,
		Confidence: resp.Confidence,
		Reasons:    nonNil(resp.Reasons),
		Timestamp:  p.now(ctx),
	})
	if err != nil {
		return p.unavailable(ctx, correlationID, err), nil
	}
	return result, nil
}
