package services

import (
	"reflect"
	"testing"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func floatPtr(v float64) *float64 { return &v }

func TestEnrichAppliesDefaults(t *testing.T) {
	svc := NewEnrichmentService(testLogger(t))

	event := &types.Event{
		EventType: types.EventPageView,
		UserID:    "user-1",
		SessionID: "sess-1",
		Timestamp: 1000,
	}
	enriched := svc.Enrich(event, nil)

	if enriched.DeviceInfo == nil {
		t.Fatal("expected device info to be populated")
	}
	if enriched.DeviceInfo.Platform != "Web" {
		t.Fatalf("platform = %q, want Web", enriched.DeviceInfo.Platform)
	}
	if enriched.DeviceInfo.AppVersion != "1.0.0" {
		t.Fatalf("app version = %q, want 1.0.0", enriched.DeviceInfo.AppVersion)
	}
	if enriched.DeviceInfo.DeviceModel != "Unknown" {
		t.Fatalf("device model = %q, want Unknown", enriched.DeviceInfo.DeviceModel)
	}
	if enriched.UserContext == nil {
		t.Fatal("expected user context to be populated")
	}
	if enriched.UserContext.UserSegment != SegmentNewUser {
		t.Fatalf("segment = %q, want %q", enriched.UserContext.UserSegment, SegmentNewUser)
	}
	if enriched.UserContext.SessionStage != "exploration" {
		t.Fatalf("session stage = %q, want exploration", enriched.UserContext.SessionStage)
	}
	if event.DeviceInfo != nil {
		t.Fatal("input event must not be mutated")
	}
}

func TestEnrichIsIdempotent(t *testing.T) {
	svc := NewEnrichmentService(testLogger(t))

	full := &types.Event{
		EventType: types.EventVideoEngagement,
		UserID:    "user-1",
		SessionID: "sess-1",
		Timestamp: 1000,
		EventData: &types.EventData{
			VideoID:        "vid-1",
			Duration:       floatPtr(100),
			WatchDuration:  floatPtr(90),
			CompletionRate: floatPtr(90),
		},
		DeviceInfo: &types.DeviceInfo{Platform: "iOS", AppVersion: "2.0.0", DeviceModel: "iPhone"},
		UserContext: &types.UserContext{
			UserSegment:     SegmentEngagedUser,
			SessionStage:    "checkout",
			PreviousActions: []string{"page_view:unknown"},
		},
	}

	once := svc.Enrich(full, nil)
	twice := svc.Enrich(once, nil)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("enrichment not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
	if !reflect.DeepEqual(once, full) {
		t.Fatalf("fully-populated event changed:\ngot:  %+v\nwant: %+v", once, full)
	}
}

func TestEnrichUserSegmentThresholds(t *testing.T) {
	cases := []struct {
		name     string
		sessions int
		want     string
	}{
		{"no sessions", 0, SegmentNewUser},
		{"one session", 1, SegmentActiveUser},
		{"five sessions", 5, SegmentActiveUser},
		{"six sessions", 6, SegmentEngagedUser},
	}

	svc := NewEnrichmentService(testLogger(t))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			history := make([]*types.Event, 0, tc.sessions)
			for i := 0; i < tc.sessions; i++ {
				history = append(history, &types.Event{
					EventType: types.EventPageView,
					UserID:    "user-1",
					SessionID: "sess-" + string(rune('a'+i)),
					Timestamp: int64(i + 1),
				})
			}
			enriched := svc.Enrich(&types.Event{
				EventType: types.EventPageView,
				UserID:    "user-1",
				SessionID: "sess-current",
				Timestamp: 10000,
			}, history)
			if enriched.UserContext.UserSegment != tc.want {
				t.Fatalf("segment = %q, want %q", enriched.UserContext.UserSegment, tc.want)
			}
		})
	}
}

func TestEnrichPreviousActions(t *testing.T) {
	svc := NewEnrichmentService(testLogger(t))

	history := []*types.Event{
		{EventType: types.EventPageView, UserID: "u", SessionID: "s", Timestamp: 1},
		{EventType: types.EventFeatureInteraction, UserID: "u", SessionID: "s", Timestamp: 2,
			EventData: &types.EventData{Feature: "search"}},
		{EventType: types.EventVideoEngagement, UserID: "u", SessionID: "s", Timestamp: 3,
			EventData: &types.EventData{VideoID: "vid-9"}},
		{EventType: types.EventPageView, UserID: "u", SessionID: "s", Timestamp: 4},
		{EventType: types.EventPageView, UserID: "u", SessionID: "s", Timestamp: 5},
		{EventType: types.EventHelpRequest, UserID: "u", SessionID: "s", Timestamp: 6,
			EventData: &types.EventData{Feature: "help_center"}},
	}

	enriched := svc.Enrich(&types.Event{
		EventType: types.EventPageView,
		UserID:    "u",
		SessionID: "s",
		Timestamp: 7,
	}, history)

	want := []string{
		"feature_interaction:search",
		"video_engagement:vid-9",
		"page_view:unknown",
		"page_view:unknown",
		"help_request:help_center",
	}
	if !reflect.DeepEqual(enriched.UserContext.PreviousActions, want) {
		t.Fatalf("previous actions = %v, want %v", enriched.UserContext.PreviousActions, want)
	}
}

func TestEnrichVideoCompletionRate(t *testing.T) {
	cases := []struct {
		name string
		data *types.EventData
		want *float64
	}{
		{
			name: "computed from watch and duration",
			data: &types.EventData{Duration: floatPtr(200), WatchDuration: floatPtr(150)},
			want: floatPtr(75),
		},
		{
			name: "existing rate untouched",
			data: &types.EventData{Duration: floatPtr(200), WatchDuration: floatPtr(150), CompletionRate: floatPtr(10)},
			want: floatPtr(10),
		},
		{
			name: "zero duration skipped",
			data: &types.EventData{Duration: floatPtr(0), WatchDuration: floatPtr(150)},
			want: nil,
		},
		{
			name: "missing watch duration skipped",
			data: &types.EventData{Duration: floatPtr(200)},
			want: nil,
		},
	}

	svc := NewEnrichmentService(testLogger(t))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enriched := svc.Enrich(&types.Event{
				EventType: types.EventVideoEngagement,
				UserID:    "u",
				SessionID: "s",
				Timestamp: 1,
				EventData: tc.data,
			}, nil)
			got := enriched.EventData.CompletionRate
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("completion rate = %v, want %v", got, tc.want)
			}
			if got != nil && *got != *tc.want {
				t.Fatalf("completion rate = %v, want %v", *got, *tc.want)
			}
		})
	}
}
