package models

import "time"

// KeyPrefix namespaces admission buckets in shared stores.
const KeyPrefix = "ekyc:ratelimit:"

// Key returns the bucket key for a service name.
func Key(service string) string {
	return KeyPrefix + service
}

// Result is the outcome of one admission attempt against a bucket.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the oldest recorded admission leaves the window.
	ResetAt time.Time
}
