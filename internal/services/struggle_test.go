package services

import (
	"testing"

	"github.com/yungbote/journeylens-backend/internal/types"
)

func featureEvent(feature string, ts int64) *types.Event {
	return &types.Event{
		EventType: types.EventFeatureInteraction,
		UserID:    "user-1",
		SessionID: "sess-1",
		Timestamp: ts,
		EventData: &types.EventData{Feature: feature},
	}
}

func TestDetectStruggleThreshold(t *testing.T) {
	svc := NewStruggleService(testLogger(t))
	base := int64(1_000_000)

	cases := []struct {
		name         string
		history      []*types.Event
		event        *types.Event
		wantStruggle bool
		wantAttempts int
	}{
		{
			name:         "first interaction is never a struggle",
			history:      nil,
			event:        featureEvent("upload", base),
			wantStruggle: false,
			wantAttempts: 1,
		},
		{
			name:         "one prior is below threshold",
			history:      []*types.Event{featureEvent("upload", base)},
			event:        featureEvent("upload", base+60_000),
			wantStruggle: false,
			wantAttempts: 2,
		},
		{
			name: "two priors trip the threshold",
			history: []*types.Event{
				featureEvent("upload", base),
				featureEvent("upload", base+60_000),
			},
			event:        featureEvent("upload", base+120_000),
			wantStruggle: true,
			wantAttempts: 3,
		},
		{
			name: "priors outside the five minute window do not count",
			history: []*types.Event{
				featureEvent("upload", base-400_000),
				featureEvent("upload", base-350_000),
			},
			event:        featureEvent("upload", base),
			wantStruggle: false,
			wantAttempts: 1,
		},
		{
			name: "different feature priors do not count",
			history: []*types.Event{
				featureEvent("search", base),
				featureEvent("search", base+10_000),
			},
			event:        featureEvent("upload", base+20_000),
			wantStruggle: false,
			wantAttempts: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.Detect(tc.event, tc.history)
			if got.IsStruggle != tc.wantStruggle {
				t.Fatalf("IsStruggle = %v, want %v", got.IsStruggle, tc.wantStruggle)
			}
			if got.AttemptCount != tc.wantAttempts {
				t.Fatalf("AttemptCount = %d, want %d", got.AttemptCount, tc.wantAttempts)
			}
		})
	}
}

func TestDetectIgnoresNonFeatureEvents(t *testing.T) {
	svc := NewStruggleService(testLogger(t))
	base := int64(1_000_000)

	history := []*types.Event{
		featureEvent("upload", base),
		featureEvent("upload", base+10_000),
	}

	pageView := &types.Event{
		EventType: types.EventPageView,
		UserID:    "user-1",
		SessionID: "sess-1",
		Timestamp: base + 20_000,
		EventData: &types.EventData{Feature: "upload"},
	}
	if got := svc.Detect(pageView, history); got.IsStruggle {
		t.Fatal("page_view must never be a struggle")
	}
}

func TestDetectNilFeatureNeverStruggles(t *testing.T) {
	svc := NewStruggleService(testLogger(t))
	base := int64(1_000_000)

	history := []*types.Event{
		featureEvent("upload", base),
		featureEvent("upload", base+10_000),
	}

	noFeature := &types.Event{
		EventType: types.EventFeatureInteraction,
		UserID:    "user-1",
		SessionID: "sess-1",
		Timestamp: base + 20_000,
	}
	if got := svc.Detect(noFeature, history); got.IsStruggle {
		t.Fatal("event without a feature must never be a struggle")
	}
	if got := svc.Detect(nil, history); got.IsStruggle || got.AttemptCount != 0 {
		t.Fatal("nil event must produce a zero result")
	}
}

func TestDetectCountsStruggleSignalPriors(t *testing.T) {
	svc := NewStruggleService(testLogger(t))
	base := int64(1_000_000)

	history := []*types.Event{
		{
			EventType: types.EventStruggleSignal,
			UserID:    "user-1",
			SessionID: "sess-1",
			Timestamp: base,
			EventData: &types.EventData{Feature: "upload"},
		},
		featureEvent("upload", base+10_000),
	}

	got := svc.Detect(featureEvent("upload", base+20_000), history)
	if !got.IsStruggle {
		t.Fatal("struggle_signal priors must count toward the threshold")
	}
	if got.AttemptCount != 3 {
		t.Fatalf("AttemptCount = %d, want 3", got.AttemptCount)
	}
}
