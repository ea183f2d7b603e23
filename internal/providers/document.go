package providers

import (
	"context"

	"ekyc/internal/kyc/models"
)

// DocumentProvider checks identity document authenticity.
type DocumentProvider struct {
	base
}

func NewDocumentProvider(deps Deps, ep Endpoint, opts ...Option) (*DocumentProvider, error) {
	b, err := newBase(models.CheckDocument, DocumentService, deps, ep, opts)
	if err != nil {
		return nil, err
	}
	return &DocumentProvider{base: b}, nil
}

// Verify never returns an error: failures become an unavailable result.
func (p *DocumentProvider) Verify(ctx context.Context, customer models.Customer, req models.VerificationRequest, correlationID string) (models.VerificationResult, error) {
	payload := documentRequest{
		CustomerID:       customer.ID,
		DocumentType:     req.Document.DocumentType,
		DocumentNumber:   req.Document.DocumentNumber,
		ExpiryDate:       req.Document.ExpiryDate,
		DocumentImageURL: req.Document.ImageURL,
	}

	resp, err := invoke[documentResponse](ctx, &p.base, payload, correlationID)
	if err != nil {
		return p.unavailable(ctx, correlationID, err), nil
	}

	status, err := p.parseStatus(resp.Status)
	if err != nil {
		return p.unavailable(ctx, correlationID, err), nil
	}

	result, err := p.checked(models.VerificationResult{
		Type:       models.CheckDocument,
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
