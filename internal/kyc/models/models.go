package models

import (
	"fmt"
	"slices"
	"time"

	"ekyc/pkg/platform/sentinel"
)

// CheckType identifies an independent verification dimension.
type CheckType string

const (
	// CheckDocument: identity document authenticity
	CheckDocument CheckType = "ID_DOCUMENT"
	// CheckBiometric: selfie to ID photo face match
	CheckBiometric CheckType = "FACE_MATCH"
	// CheckAddress: proof of address
	CheckAddress CheckType = "ADDRESS"
	// CheckSanctions: sanctions list screening (critical path)
	CheckSanctions CheckType = "SANCTIONS"
)

// IsValid checks if the check type is one of the supported enum values.
func (t CheckType) IsValid() bool {
	switch t {
	case CheckDocument, CheckBiometric, CheckAddress, CheckSanctions:
		return true
	}
	return false
}

// String returns the string representation.
func (t CheckType) String() string {
	return string(t)
}

// Status is the canonical outcome of a single check.
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusHit   Status = "HIT"
	StatusClear Status = "CLEAR"
)

// ValidFor reports whether the status may appear on a result of the given type.
// HIT and CLEAR only make sense for sanctions screening.
func (s Status) ValidFor(t CheckType) bool {
	switch s {
	case StatusPass, StatusFail:
		return true
	case StatusHit, StatusClear:
		return t == CheckSanctions
	}
	return false
}

// Decision is the final disposition of a verification run.
type Decision string

const (
	DecisionApproved     Decision = "APPROVED"
	DecisionRejected     Decision = "REJECTED"
	DecisionManualReview Decision = "MANUAL_REVIEW"
)

// Customer holds the identity attributes under verification.
type Customer struct {
	ID          string `json:"customer_id"`
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	Nationality string `json:"nationality,omitempty"`
}

// DocumentInput carries the fields sent to the document verification service.
type DocumentInput struct {
	DocumentType   string `json:"document_type,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
	ImageURL       string `json:"document_image_url,omitempty"`
}

// BiometricInput carries the image references for face matching.
type BiometricInput struct {
	SelfieURL  string `json:"selfie_url,omitempty"`
	IDPhotoURL string `json:"id_photo_url,omitempty"`
}

// AddressInput carries proof-of-address metadata.
type AddressInput struct {
	ProofType string `json:"proof_type,omitempty"`
	ProofDate string `json:"proof_date,omitempty"`
	ProofURL  string `json:"proof_url,omitempty"`
}

// VerificationRequest asks for a subset of checks on one customer.
type VerificationRequest struct {
	RequestID  string         `json:"request_id,omitempty"`
	CustomerID string         `json:"customer_id"`
	Types      []CheckType    `json:"verification_types"`
	Document   DocumentInput  `json:"document"`
	Biometric  BiometricInput `json:"biometric"`
	Address    AddressInput   `json:"address"`
}

// Requests reports whether the request includes the given check type.
func (r VerificationRequest) Requests(t CheckType) bool {
	return slices.Contains(r.Types, t)
}

// Validate enforces the request shape: at least one type, only known types,
// no duplicates.
func (r VerificationRequest) Validate() error {
	if len(r.Types) == 0 {
		return fmt.Errorf("%w: at least one verification type is required", sentinel.ErrInvalidInput)
	}
	seen := make(map[CheckType]struct{}, len(r.Types))
	for _, t := range r.Types {
		if !t.IsValid() {
			return fmt.Errorf("%w: unknown verification type %q", sentinel.ErrInvalidInput, t)
		}
		if _, dup := seen[t]; dup {
			return fmt.Errorf("%w: verification type %s requested twice", sentinel.ErrInvalidInput, t)
		}
		seen[t] = struct{}{}
	}
	return nil
}

// VerificationResult is the canonical result shape shared by every provider.
type VerificationResult struct {
	Type            CheckType `json:"verification_type"`
	Status          Status    `json:"status"`
	Confidence      *int      `json:"confidence,omitempty"`
	Reasons         []string  `json:"reasons"`
	Timestamp       time.Time `json:"timestamp"`
	SimilarityScore *float64  `json:"similarity_score,omitempty"` // biometric only
	MatchCount      *int      `json:"match_count,omitempty"`      // sanctions only
}

// Validate checks the result invariants: confidence in [0,100] when present and
// a status that is legal for the check type.
func (r VerificationResult) Validate() error {
	if !r.Type.IsValid() {
		return fmt.Errorf("%w: unknown verification type %q", sentinel.ErrInvalidInput, r.Type)
	}
	if !r.Status.ValidFor(r.Type) {
		return fmt.Errorf("%w: status %q is not valid for %s", sentinel.ErrInvalidInput, r.Status, r.Type)
	}
	if r.Confidence != nil && (*r.Confidence < 0 || *r.Confidence > 100) {
		return fmt.Errorf("%w: confidence %d out of range [0, 100]", sentinel.ErrInvalidInput, *r.Confidence)
	}
	return nil
}

// Unavailable builds the synthetic result recorded when a check could not be
// performed.
func Unavailable(t CheckType, reason string, at time.Time) VerificationResult {
	return VerificationResult{
		Type:       t,
		Status:     StatusFail,
		Confidence: IntPtr(0),
		Reasons:    []string{reason},
		Timestamp:  at,
	}
}

// DecisionResult is what a verification run hands back to its caller.
type DecisionResult struct {
	Decision      Decision             `json:"decision"`
	Reason        string               `json:"reason"`
	Results       []VerificationResult `json:"verification_results"`
	Timestamp     time.Time            `json:"timestamp"`
	RequestID     string               `json:"request_id,omitempty"`
	CustomerID    string               `json:"customer_id"`
	CorrelationID string               `json:"correlation_id"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 {
	return &v
}
