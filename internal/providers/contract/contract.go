// Package contract checks that provider variants honour the canonical result
// shape whatever their upstream returns.
package contract

import (
	"context"
	"testing"

	"ekyc/internal/kyc/models"
)

// Verifier is the provider surface under contract.
type Verifier interface {
	Type() models.CheckType
	Verify(ctx context.Context, customer models.Customer, req models.VerificationRequest, correlationID string) (models.VerificationResult, error)
}

// ContractTest defines a test case for provider contract validation
type ContractTest struct {
	Name           string
	Provider       Verifier
	Customer       models.Customer
	Request        models.VerificationRequest
	ExpectedStatus models.Status
	// ExpectError is set for variants that report failure instead of absorbing it.
	ExpectError  bool
	ValidateFunc func(result models.VerificationResult) error
}

// ContractSuite is a collection of contract tests for one service
type ContractSuite struct {
	Service string
	Tests   []ContractTest
}

// Run executes all contract tests in the suite
func (s *ContractSuite) Run(t *testing.T) {
	for _, test := range s.Tests {
		t.Run(s.Service+"/"+test.Name, func(t *testing.T) {
			result, err := test.Provider.Verify(context.Background(), test.Customer, test.Request, "contract-"+test.Name)
			if test.ExpectError {
				if err == nil {
					t.Fatalf("expected an error, got result %+v", result)
				}
				return
			}
			if err != nil {
				t.Fatalf("verify failed: %v", err)
			}

			if result.Type != test.Provider.Type() {
				t.Errorf("expected type %s, got %s", test.Provider.Type(), result.Type)
			}
			if result.Status != test.ExpectedStatus {
				t.Errorf("expected status %s, got %s", test.ExpectedStatus, result.Status)
			}
			if err := result.Validate(); err != nil {
				t.Errorf("result violates invariants: %v", err)
			}
			if result.Timestamp.IsZero() {
				t.Error("Timestamp not set")
			}
			if result.Reasons == nil {
				t.Error("Reasons must be a list, got nil")
			}
			if result.Status == models.StatusFail && result.Confidence == nil {
				t.Error("FAIL result without confidence")
			}

			if test.ValidateFunc != nil {
				if err := test.ValidateFunc(result); err != nil {
					t.Errorf("custom validation failed: %v", err)
				}
			}
		})
	}
}
