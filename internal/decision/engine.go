package decision

import (
	"ekyc/internal/kyc/models"
)

// Thresholds are the minimum confidence (and similarity) a passing check
// needs to count toward approval.
type Thresholds struct {
	DocumentConfidence  int
	BiometricConfidence int
	BiometricSimilarity float64
	AddressConfidence   int
}

// DefaultThresholds returns 85/85/85.0/80.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DocumentConfidence:  85,
		BiometricConfidence: 85,
		BiometricSimilarity: 85.0,
		AddressConfidence:   80,
	}
}

// Engine reduces verification results to a final decision. It holds only
// immutable thresholds and is safe for concurrent use.
type Engine struct {
	thresholds Thresholds
}

func NewEngine(thresholds Thresholds) *Engine {
	return &Engine{thresholds: thresholds}
}

// MakeDecision returns the decision for results.
func (e *Engine) MakeDecision(results []models.VerificationResult) models.Decision {
	return e.Evaluate(results).Decision
}

// Evaluate applies the rule chain and explains the outcome.
// Rule priority (first terminal rule wins):
//  1. Sanctions HIT - reject
//  2. Sanctions FAIL - manual review, nothing is approved without clearance
//  3. Per-check sub-rules in list order, any reject ends evaluation
//  4. Approve only when every check is eligible and sanctions is absent or CLEAR
func (e *Engine) Evaluate(results []models.VerificationResult) Outcome {
	if len(results) == 0 {
		return Outcome{Decision: models.DecisionManualReview, Reason: ReasonNoResults}
	}

	sanctions, screened := findResult(results, models.CheckSanctions)
	if screened {
		switch sanctions.Status {
		case models.StatusHit:
			return Outcome{
				Decision: models.DecisionRejected,
				Reason:   ReasonSanctionsHit,
				Findings: []Finding{{Type: models.CheckSanctions, Verdict: VerdictReject, Detail: "sanctions list match"}},
			}
		case models.StatusFail:
			return Outcome{
				Decision: models.DecisionManualReview,
				Reason:   ReasonSanctionsUnavailable,
				Findings: []Finding{{Type: models.CheckSanctions, Verdict: VerdictReview, Detail: "no sanctions clearance"}},
			}
		}
	}

	findings := make([]Finding, 0, len(results))
	allEligible := true
	needsReview := false
	for _, r := range results {
		if r.Type == models.CheckSanctions {
			continue
		}
		f := e.evaluateCheck(r)
		findings = append(findings, f)

		switch f.Verdict {
		case VerdictReject:
			return Outcome{Decision: models.DecisionRejected, Reason: f.Reason, Findings: findings}
		case VerdictReview:
			allEligible = false
			needsReview = true
		case VerdictEligible:
		default:
			allEligible = false
		}
	}

	if screened {
		if sanctions.Status == models.StatusClear {
			findings = append(findings, Finding{Type: models.CheckSanctions, Verdict: VerdictEligible, Detail: "cleared"})
		} else {
			allEligible = false
			findings = append(findings, Finding{Type: models.CheckSanctions, Verdict: VerdictReview, Detail: "status " + string(sanctions.Status)})
		}
	}

	switch {
	case allEligible:
		return Outcome{Decision: models.DecisionApproved, Reason: ReasonAllChecksPassed, Findings: findings}
	case needsReview:
		return Outcome{Decision: models.DecisionManualReview, Reason: ReasonManualReview, Findings: findings}
	default:
		return Outcome{Decision: models.DecisionManualReview, Reason: ReasonNotAllPassed, Findings: findings}
	}
}

func (e *Engine) evaluateCheck(r models.VerificationResult) Finding {
	switch r.Type {
	case models.CheckDocument:
		return evaluateDocument(r, e.thresholds.DocumentConfidence)
	case models.CheckBiometric:
		return evaluateBiometric(r, e.thresholds.BiometricConfidence, e.thresholds.BiometricSimilarity)
	case models.CheckAddress:
		return evaluateAddress(r, e.thresholds.AddressConfidence)
	default:
		return Finding{Type: r.Type, Verdict: VerdictNone, Detail: "unknown check type"}
	}
}

func findResult(results []models.VerificationResult, t models.CheckType) (models.VerificationResult, bool) {
	for _, r := range results {
		if r.Type == t {
			return r, true
		}
	}
	return models.VerificationResult{}, false
}
