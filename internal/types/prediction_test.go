package types

import (
	"testing"
	"time"
)

func TestPredictionExpiry(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		age  time.Duration
		want bool
	}{
		{"fresh", time.Minute, false},
		{"at the ttl boundary", PredictionTTL, false},
		{"just past the ttl", PredictionTTL + time.Second, true},
		{"long expired", 2 * time.Hour, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &PredictionResult{Timestamp: now.Add(-tc.age)}
			if got := p.expiredAt(now); got != tc.want {
				t.Fatalf("expiredAt = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPredictionHasError(t *testing.T) {
	ok := &PredictionResult{RiskScore: 40}
	if ok.HasError() {
		t.Fatal("result without message must not report an error")
	}
	failed := &PredictionResult{ErrorMessage: "model unavailable"}
	if !failed.HasError() {
		t.Fatal("result with message must report an error")
	}
}

func TestToFeatureArrayOrder(t *testing.T) {
	f := &ExitRiskFeatures{
		StruggleSignalCount7d:         1,
		VideoEngagementScore:          2,
		FeatureCompletionRate:         3,
		SessionFrequencyTrend:         4,
		SupportInteractionCount:       5,
		DaysSinceLastLogin:            6,
		ApplicationProgressPercentage: 7,
		AvgSessionDuration:            8,
		TotalSessions:                 9,
		ErrorRate:                     10,
		HelpSeekingBehavior:           11,
		ContentEngagementScore:        12,
		PlatformUsagePattern:          PlatformPatternMixed,
	}

	got := f.ToFeatureArray()
	want := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 3}
	if len(got) != len(want) {
		t.Fatalf("feature array length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("feature %d = %v, want %v", i, got[i], want[i])
		}
	}
	if len(FeatureNames()) != len(got) {
		t.Fatal("FeatureNames out of sync with ToFeatureArray")
	}
}

func TestEncodePlatformUsage(t *testing.T) {
	cases := map[string]float64{
		PlatformPatternWebOnly:    1,
		PlatformPatternMobileOnly: 2,
		PlatformPatternMixed:      3,
		PlatformPatternUnknown:    0,
		"garbage":                 0,
	}
	for pattern, want := range cases {
		if got := encodePlatformUsage(pattern); got != want {
			t.Fatalf("encodePlatformUsage(%q) = %v, want %v", pattern, got, want)
		}
	}
}
