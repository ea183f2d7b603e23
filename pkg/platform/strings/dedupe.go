// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// SplitList splits a separated list such as a broker or host list, trimming
// each element and dropping empties and repeats. Order is preserved.
//
// Example:
//
//	SplitList(" kafka-1:9092,kafka-2:9092,, kafka-1:9092", ",")
//	// Returns: []string{"kafka-1:9092", "kafka-2:9092"}
func SplitList(v, sep string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(v, sep))
}

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	var result []string
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}
	return result
}
