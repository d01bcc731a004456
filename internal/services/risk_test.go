package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/journeylens-backend/internal/observability"
	"github.com/yungbote/journeylens-backend/internal/types"
)

type fakeModelClient struct {
	result *types.PredictionResult
	err    error
	calls  atomic.Int64
}

func (f *fakeModelClient) Predict(ctx context.Context, features *types.ExitRiskFeatures) (*types.PredictionResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := *f.result
	return &out, nil
}

func (f *fakeModelClient) Health(ctx context.Context) *types.ModelHealthStatus {
	return &types.ModelHealthStatus{Healthy: true, Message: "ok", CheckTime: time.Now()}
}

func newRiskFixture(t *testing.T, model RiskModelClient) (*riskService, HistoryService, InsightsService, *MemoryPredictionCache) {
	t.Helper()
	log := testLogger(t)
	history := NewHistoryService()
	insights := NewInsightsService()
	cache := NewMemoryPredictionCache()
	svc := NewRiskService(history, insights, NewFeatureService(log), model, cache, observability.NewMetrics(nil), log)
	return svc.(*riskService), history, insights, cache
}

func TestRuleScore(t *testing.T) {
	svc, _, _, _ := newRiskFixture(t, nil)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		metrics     types.BehaviorMetrics
		lastEventAt int64
		want        float64
	}{
		{
			name:        "active engaged user scores zero",
			metrics:     types.BehaviorMetrics{VideoEngagementScore: 100, VideoCompletionSamples: 2},
			lastEventAt: now.Add(-time.Hour).UnixMilli(),
			want:        0,
		},
		{
			name:        "struggles and idleness accumulate",
			metrics:     types.BehaviorMetrics{StruggleSignalCount: 2},
			lastEventAt: now.Add(-4 * 24 * time.Hour).UnixMilli(),
			want:        20 + 20 + 15, // two struggles, >3d idle, default 50% completion penalty
		},
		{
			name:        "struggle contribution caps at forty",
			metrics:     types.BehaviorMetrics{StruggleSignalCount: 10, VideoEngagementScore: 100, VideoCompletionSamples: 1},
			lastEventAt: now.Add(-time.Hour).UnixMilli(),
			want:        40,
		},
		{
			name:        "long idle with low video engagement",
			metrics:     types.BehaviorMetrics{StruggleSignalCount: 10, VideoEngagementScore: 10, VideoCompletionSamples: 1},
			lastEventAt: now.Add(-8 * 24 * time.Hour).UnixMilli(),
			want:        40 + 30 + 27,
		},
		{
			name:        "all-zero completion keeps the full penalty",
			metrics:     types.BehaviorMetrics{VideoEngagementScore: 0, VideoCompletionSamples: 2},
			lastEventAt: now.Add(-time.Hour).UnixMilli(),
			want:        30, // real average of 0, not the 50% no-video default
		},
		{
			name:        "no history skips recency bucket",
			metrics:     types.BehaviorMetrics{},
			lastEventAt: 0,
			want:        15,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.RuleScore(tc.metrics, tc.lastEventAt, now)
			if got != tc.want {
				t.Fatalf("RuleScore = %v, want %v", got, tc.want)
			}
			if got < 0 || got > 100 {
				t.Fatalf("RuleScore = %v outside [0,100]", got)
			}
		})
	}
}

func TestRuleScoreZeroCompletionVideos(t *testing.T) {
	svc, _, _, _ := newRiskFixture(t, nil)
	agg := NewAggregationService(testLogger(t))
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	history := []*types.Event{
		{EventType: types.EventVideoEngagement, UserID: "u", SessionID: "s",
			Timestamp: now.Add(-time.Hour).UnixMilli(),
			EventData: &types.EventData{CompletionRate: floatPtr(0)}},
		{EventType: types.EventVideoEngagement, UserID: "u", SessionID: "s",
			Timestamp: now.Add(-30 * time.Minute).UnixMilli(),
			EventData: &types.EventData{CompletionRate: floatPtr(0)}},
	}

	metrics := agg.ComputeMetrics(history)
	got := svc.RuleScore(metrics, history[1].Timestamp, now)
	if got != 30 {
		t.Fatalf("RuleScore = %v, want 30 (avg completion is 0, default must not apply)", got)
	}
}

func TestCategorizeLevel(t *testing.T) {
	svc, _, _, _ := newRiskFixture(t, nil)

	cases := []struct {
		score float64
		want  string
	}{
		{0, types.RiskLevelLow},
		{29.99, types.RiskLevelLow},
		{30, types.RiskLevelMedium},
		{59.99, types.RiskLevelMedium},
		{60, types.RiskLevelHigh},
		{100, types.RiskLevelHigh},
	}
	for _, tc := range cases {
		if got := svc.CategorizeLevel(tc.score); got != tc.want {
			t.Fatalf("CategorizeLevel(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestPredictionBlendAndIntervention(t *testing.T) {
	model := &fakeModelClient{result: &types.PredictionResult{
		RiskScore:       80,
		RiskLevel:       types.RiskLevelHigh,
		Recommendations: []string{"Reduce onboarding friction"},
	}}
	svc, _, insights, cache := newRiskFixture(t, model)

	insights.Update("user-1", func(u *types.UserInsights) {
		u.RiskScore = 50
		u.RiskLevel = types.RiskLevelMedium
	})

	fired := make(chan *types.Event, 1)
	svc.SetInterventionHook(func(event *types.Event) { fired <- event })

	svc.runPrediction("user-1")

	stored := insights.Get("user-1")
	if stored.RiskScore != 71 { // 80*0.7 + 50*0.3
		t.Fatalf("blended RiskScore = %v, want 71", stored.RiskScore)
	}
	if stored.RiskLevel != types.RiskLevelHigh {
		t.Fatalf("blended RiskLevel = %q, want HIGH", stored.RiskLevel)
	}
	found := false
	for _, rec := range stored.Recommendations {
		if rec == "ML Insight: Reduce onboarding friction" {
			found = true
		}
		if strings.HasPrefix(rec, "Reduce") {
			t.Fatalf("model recommendation stored without prefix: %q", rec)
		}
	}
	if !found {
		t.Fatalf("prefixed model recommendation missing: %v", stored.Recommendations)
	}

	cached, ok := cache.Get("user-1")
	if !ok {
		t.Fatal("prediction not cached")
	}
	if cached.RiskScore != 71 || cached.HasError() {
		t.Fatalf("cached prediction = %+v, want blended success", cached)
	}

	select {
	case event := <-fired:
		if event.EventType != types.EventInterventionTrigger {
			t.Fatalf("intervention event type = %q", event.EventType)
		}
		if event.EventData == nil || event.EventData.Feature != "exit_risk_intervention" {
			t.Fatalf("intervention feature = %+v", event.EventData)
		}
		if event.UserID != "user-1" {
			t.Fatalf("intervention user = %q", event.UserID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("intervention hook never fired")
	}
}

func TestPredictionBlendBelowThresholdNoIntervention(t *testing.T) {
	model := &fakeModelClient{result: &types.PredictionResult{
		RiskScore: 60,
		RiskLevel: types.RiskLevelHigh,
	}}
	svc, _, insights, _ := newRiskFixture(t, model)

	insights.Update("user-1", func(u *types.UserInsights) { u.RiskScore = 50 })

	fired := make(chan *types.Event, 1)
	svc.SetInterventionHook(func(event *types.Event) { fired <- event })

	svc.runPrediction("user-1")

	// 60*0.7 + 50*0.3 = 57: MEDIUM, below the intervention floor.
	select {
	case <-fired:
		t.Fatal("intervention fired below threshold")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPredictionFallbackOnModelFailure(t *testing.T) {
	model := &fakeModelClient{err: errors.New("endpoint unavailable")}
	svc, _, insights, cache := newRiskFixture(t, model)

	insights.Update("user-1", func(u *types.UserInsights) {
		u.RiskScore = 35
		u.RiskLevel = types.RiskLevelMedium
		u.Recommendations = []string{"existing"}
	})

	svc.runPrediction("user-1")

	cached, ok := cache.Get("user-1")
	if !ok {
		t.Fatal("fallback prediction not cached")
	}
	if cached.RiskScore != 50 || cached.RiskLevel != types.RiskLevelMedium {
		t.Fatalf("fallback = %v/%q, want 50/MEDIUM", cached.RiskScore, cached.RiskLevel)
	}
	if !cached.HasError() {
		t.Fatal("fallback must carry an error message")
	}

	stored := insights.Get("user-1")
	if stored.RiskScore != 35 || len(stored.Recommendations) != 1 {
		t.Fatalf("insights mutated on fallback: %+v", stored)
	}
}

func TestRequestPredictionCacheHitIsNoOp(t *testing.T) {
	model := &fakeModelClient{result: &types.PredictionResult{RiskScore: 80}}
	svc, _, _, cache := newRiskFixture(t, model)

	cache.Set(&types.PredictionResult{
		UserID:    "user-1",
		RiskScore: 42,
		RiskLevel: types.RiskLevelMedium,
		Timestamp: time.Now(),
	})

	svc.RequestPrediction("user-1")
	if calls := model.calls.Load(); calls != 0 {
		t.Fatalf("model called %d times on cache hit, want 0", calls)
	}
}

func TestCurrentPredictionWithoutModel(t *testing.T) {
	svc, _, _, _ := newRiskFixture(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result := svc.CurrentPrediction(ctx, "user-1")
	if result == nil {
		t.Fatal("expected a fallback result")
	}
	if result.RiskScore != 50 || result.RiskLevel != types.RiskLevelMedium {
		t.Fatalf("fallback = %v/%q, want 50/MEDIUM", result.RiskScore, result.RiskLevel)
	}
	if !result.HasError() {
		t.Fatal("fallback must carry an error message")
	}
}

func TestPredictionExpiry(t *testing.T) {
	model := &fakeModelClient{result: &types.PredictionResult{RiskScore: 80}}
	svc, _, _, cache := newRiskFixture(t, model)

	cache.Set(&types.PredictionResult{
		UserID:    "user-1",
		RiskScore: 42,
		Timestamp: time.Now().Add(-types.PredictionTTL - time.Minute),
	})

	svc.RequestPrediction("user-1")

	deadline := time.After(2 * time.Second)
	for model.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("expired cache entry did not trigger a fresh prediction")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
