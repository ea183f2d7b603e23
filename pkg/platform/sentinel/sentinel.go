package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Providers, the limiter and the retry
// handler return these (optionally wrapped) so the orchestrator can decide how a
// failed check contributes to the final decision.
//
// These represent factual states, not business outcomes:
// - ErrUnavailable: a verification service could not produce an answer
// - ErrInterrupted: a wait (admission poll or backoff) was cancelled
// - ErrInvalidInput: a request or result violates its own shape
// - ErrUnknownStatus: a provider returned a status we do not map
var (
	ErrUnavailable   = errors.New("unavailable")
	ErrInterrupted   = errors.New("interrupted")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnknownStatus = errors.New("unknown status")
)
