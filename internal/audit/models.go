package audit

import "time"

// ActionDecisionMade is recorded once per verification run.
const ActionDecisionMade = "kyc_decision_made"

// Event is emitted from the orchestrator to capture a decision. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp     time.Time      `json:"timestamp"`
	Action        string         `json:"action"`
	CustomerID    string         `json:"customer_id"`
	RequestID     string         `json:"request_id,omitempty"`
	CorrelationID string         `json:"correlation_id"`
	Decision      string         `json:"decision"`
	Reason        string         `json:"reason"`
	Checks        []CheckSummary `json:"checks"`
}

// CheckSummary is the audit view of one verification result. Reasons are left
// out: they can carry provider detail that does not belong in the trail.
type CheckSummary struct {
	Type       string `json:"verification_type"`
	Status     string `json:"status"`
	Confidence *int   `json:"confidence,omitempty"`
}
