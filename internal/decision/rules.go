package decision

import (
	"fmt"
	"strings"

	"ekyc/internal/kyc/models"
)

// Reason explains which rule settled the decision.
type Reason string

const (
	ReasonSanctionsHit         Reason = "sanctions_hit"
	ReasonSanctionsUnavailable Reason = "sanctions_unavailable"
	ReasonDocumentExpired      Reason = "document_expired"
	ReasonManualReview         Reason = "manual_review_required"
	ReasonNotAllPassed         Reason = "not_all_passed"
	ReasonNoResults            Reason = "no_results"
	ReasonAllChecksPassed      Reason = "all_checks_passed"
)

// Verdict is a per-check sub-rule outcome.
type Verdict string

const (
	VerdictEligible Verdict = "eligible"
	VerdictReview   Verdict = "review"
	VerdictReject   Verdict = "reject"
	// VerdictNone: the check neither passed nor asked for review
	VerdictNone Verdict = "none"
)

// Finding records how one result was judged.
type Finding struct {
	Type    models.CheckType `json:"verification_type"`
	Verdict Verdict          `json:"verdict"`
	Reason  Reason           `json:"reason,omitempty"`
	Detail  string           `json:"detail"`
}

// Outcome is the explained result of Evaluate.
type Outcome struct {
	Decision models.Decision `json:"decision"`
	Reason   Reason          `json:"reason"`
	Findings []Finding       `json:"findings"`
}

// expiredMarker in a FAIL reason means the document is out of date, which is
// terminal rather than reviewable.
const expiredMarker = "expired"

func evaluateDocument(r models.VerificationResult, minConfidence int) Finding {
	f := Finding{Type: models.CheckDocument}
	if r.Status == models.StatusFail {
		for _, reason := range r.Reasons {
			if strings.Contains(strings.ToLower(reason), expiredMarker) {
				f.Verdict, f.Reason, f.Detail = VerdictReject, ReasonDocumentExpired, reason
				return f
			}
		}
		f.Verdict, f.Detail = VerdictReview, "document check failed"
		return f
	}
	if low, detail := belowConfidence(r.Confidence, minConfidence); low {
		f.Verdict, f.Detail = VerdictReview, detail
		return f
	}
	return passed(f, r.Status)
}

func evaluateBiometric(r models.VerificationResult, minConfidence int, minSimilarity float64) Finding {
	f := Finding{Type: models.CheckBiometric}
	if r.Status == models.StatusFail {
		f.Verdict, f.Detail = VerdictReview, "face match failed"
		return f
	}
	if low, detail := belowConfidence(r.Confidence, minConfidence); low {
		f.Verdict, f.Detail = VerdictReview, detail
		return f
	}
	if r.SimilarityScore != nil && *r.SimilarityScore < minSimilarity {
		f.Verdict = VerdictReview
		f.Detail = fmt.Sprintf("similarity %.1f below %.1f", *r.SimilarityScore, minSimilarity)
		return f
	}
	return passed(f, r.Status)
}

func evaluateAddress(r models.VerificationResult, minConfidence int) Finding {
	f := Finding{Type: models.CheckAddress}
	if r.Status == models.StatusFail {
		f.Verdict, f.Detail = VerdictReview, "address check failed"
		return f
	}
	if low, detail := belowConfidence(r.Confidence, minConfidence); low {
		f.Verdict, f.Detail = VerdictReview, detail
		return f
	}
	return passed(f, r.Status)
}

func belowConfidence(confidence *int, minimum int) (bool, string) {
	if confidence == nil || *confidence >= minimum {
		return false, ""
	}
	return true, fmt.Sprintf("confidence %d below %d", *confidence, minimum)
}

// passed closes a sub-rule: PASS is eligible, anything else needs review.
func passed(f Finding, status models.Status) Finding {
	if status == models.StatusPass {
		f.Verdict, f.Detail = VerdictEligible, "passed"
		return f
	}
	f.Verdict, f.Detail = VerdictReview, "status "+string(status)
	return f
}
