package models

import (
	"fmt"
	"strings"

	"ekyc/pkg/platform/sentinel"
)

// Wire status tables. PASS and FAIL are accepted from every provider; HIT and
// CLEAR only from sanctions screening. Anything else is a mapping error.
var (
	verdictStatuses = map[string]Status{
		"PASS": StatusPass,
		"FAIL": StatusFail,
	}
	screeningStatuses = map[string]Status{
		"HIT":   StatusHit,
		"CLEAR": StatusClear,
		"PASS":  StatusPass,
		"FAIL":  StatusFail,
	}
	wireStatuses = map[CheckType]map[string]Status{
		CheckDocument:  verdictStatuses,
		CheckBiometric: verdictStatuses,
		CheckAddress:   verdictStatuses,
		CheckSanctions: screeningStatuses,
	}
)

// ParseStatus maps a provider wire status onto the canonical Status for the
// given check type. Unknown or type-invalid values return ErrUnknownStatus.
func ParseStatus(t CheckType, wire string) (Status, error) {
	table, ok := wireStatuses[t]
	if !ok {
		return "", fmt.Errorf("%w: unknown verification type %q", sentinel.ErrInvalidInput, t)
	}
	status, ok := table[strings.TrimSpace(wire)]
	if !ok {
		return "", fmt.Errorf("%w: %q from %s provider", sentinel.ErrUnknownStatus, wire, t)
	}
	return status, nil
}
