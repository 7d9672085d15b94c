// Package routing is the traffic cop: a pure partition of classified events
// into trusted and quarantined sets. It carries no state and no side effects.
package routing

import (
	"fmt"

	"github.com/nkapur/unipipe/internal/domain"
)

// DefaultConfidenceThreshold is the inclusive trust bar for unverified events.
const DefaultConfidenceThreshold = 0.85

// Trusted reports whether an event goes to the main ledger: human verification
// always wins, otherwise the confidence score must reach the threshold.
func Trusted(event *domain.UniversalEvent, threshold float64) bool {
	if event.Verified {
		return true
	}
	return event.ConfidenceScore >= threshold
}

// Route partitions events. A threshold at or below zero falls back to the
// default.
func Route(events []*domain.UniversalEvent, threshold float64) (trusted, quarantined []*domain.UniversalEvent) {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	for _, event := range events {
		if Trusted(event, threshold) {
			trusted = append(trusted, event)
		} else {
			quarantined = append(quarantined, event)
		}
	}
	return trusted, quarantined
}

// QuarantineReason explains why an event failed the trust bar, for the
// quarantine record handed to human review.
func QuarantineReason(event *domain.UniversalEvent, threshold float64) string {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	if event.Category == "" || event.Category == "UNKNOWN" {
		return "classification unavailable"
	}
	return fmt.Sprintf("confidence %.2f below threshold %.2f", event.ConfidenceScore, threshold)
}
