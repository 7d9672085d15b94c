package routing

import (
	"testing"

	"github.com/google/uuid"

	"github.com/nkapur/unipipe/internal/domain"
)

func eventWith(confidence float64, verified bool) *domain.UniversalEvent {
	event := domain.NewUniversalEvent(uuid.New(), "test", "fp")
	event.Category = "MISC"
	event.ConfidenceScore = confidence
	event.Verified = verified
	return event
}

func TestRouteBoundary(t *testing.T) {
	cases := []struct {
		name       string
		confidence float64
		verified   bool
		trusted    bool
	}{
		{"exactly at threshold", 0.85, false, true},
		{"just below threshold", 0.8499, false, false},
		{"well above threshold", 0.99, false, true},
		{"zero confidence", 0.0, false, false},
		{"verified overrides zero confidence", 0.0, true, true},
		{"verified and confident", 0.95, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			trusted, quarantined := Route([]*domain.UniversalEvent{eventWith(tc.confidence, tc.verified)}, DefaultConfidenceThreshold)
			if tc.trusted && (len(trusted) != 1 || len(quarantined) != 0) {
				t.Fatalf("expected trusted, got trusted=%d quarantined=%d", len(trusted), len(quarantined))
			}
			if !tc.trusted && (len(trusted) != 0 || len(quarantined) != 1) {
				t.Fatalf("expected quarantined, got trusted=%d quarantined=%d", len(trusted), len(quarantined))
			}
		})
	}
}

func TestRouteIsAPurePartition(t *testing.T) {
	events := []*domain.UniversalEvent{
		eventWith(0.9, false),
		eventWith(0.1, false),
		eventWith(0.85, false),
		eventWith(0.0, true),
	}

	trusted, quarantined := Route(events, 0)

	if len(trusted)+len(quarantined) != len(events) {
		t.Fatalf("partition lost events: %d + %d != %d", len(trusted), len(quarantined), len(events))
	}
	if len(trusted) != 3 || len(quarantined) != 1 {
		t.Fatalf("unexpected partition: trusted=%d quarantined=%d", len(trusted), len(quarantined))
	}
}

func TestQuarantineReason(t *testing.T) {
	unknown := eventWith(0.0, false)
	unknown.Category = "UNKNOWN"
	if got := QuarantineReason(unknown, 0.85); got != "classification unavailable" {
		t.Fatalf("unexpected reason: %s", got)
	}

	lowConfidence := eventWith(0.42, false)
	if got := QuarantineReason(lowConfidence, 0.85); got != "confidence 0.42 below threshold 0.85" {
		t.Fatalf("unexpected reason: %s", got)
	}
}
