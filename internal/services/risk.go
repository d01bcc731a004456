package services

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/observability"
	"github.com/yungbote/journeylens-backend/internal/types"
)

const (
	riskMLWeight   = 0.7
	riskRuleWeight = 0.3

	interventionScoreFloor = 70.0
	interventionFeature    = "exit_risk_intervention"

	predictionDeadline = 30 * time.Second
	fallbackRiskScore  = 50.0
)

// RiskModelClient is the remote exit-risk model. Any failure maps to the
// rule-based fallback; the scorer never propagates model errors.
type RiskModelClient interface {
	Predict(ctx context.Context, features *types.ExitRiskFeatures) (*types.PredictionResult, error)
	Health(ctx context.Context) *types.ModelHealthStatus
}

// PredictionCache holds model results until they expire. Implementations must
// be safe for concurrent use.
type PredictionCache interface {
	Get(userID string) (*types.PredictionResult, bool)
	Set(result *types.PredictionResult)
}

// InterventionHook receives the synthesized intervention event. The scorer
// fires it in a goroutine and only logs failures.
type InterventionHook func(event *types.Event)

// RiskService computes rule-based exit-risk scores synchronously and blends
// in asynchronous model predictions. One in-flight prediction per user;
// concurrent requests coalesce onto the cached or pending result.
type RiskService interface {
	RuleScore(metrics types.BehaviorMetrics, lastEventAt int64, now time.Time) float64
	CategorizeLevel(score float64) string
	Recommendations(insights *types.UserInsights) []string
	RequestPrediction(userID string)
	CurrentPrediction(ctx context.Context, userID string) *types.PredictionResult
	ModelHealth(ctx context.Context) *types.ModelHealthStatus
	SetInterventionHook(hook InterventionHook)
}

type riskService struct {
	history  HistoryService
	insights InsightsService
	features FeatureService
	model    RiskModelClient
	cache    PredictionCache
	metrics  *observability.Metrics
	log      *logger.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	hook    InterventionHook
	nowFunc func() time.Time
}

func NewRiskService(
	history HistoryService,
	insights InsightsService,
	features FeatureService,
	model RiskModelClient,
	cache PredictionCache,
	metrics *observability.Metrics,
	baseLog *logger.Logger,
) RiskService {
	return &riskService{
		history:  history,
		insights: insights,
		features: features,
		model:    model,
		cache:    cache,
		metrics:  metrics,
		log:      baseLog.With("service", "RiskService"),
		pending:  map[string]struct{}{},
		nowFunc:  time.Now,
	}
}

func (s *riskService) SetInterventionHook(hook InterventionHook) {
	s.mu.Lock()
	s.hook = hook
	s.mu.Unlock()
}

// RuleScore is the always-available synchronous score. Struggles, recency and
// low video engagement each contribute; the result is clamped to [0,100].
func (s *riskService) RuleScore(metrics types.BehaviorMetrics, lastEventAt int64, now time.Time) float64 {
	score := float64(metrics.StruggleSignalCount) * 10.0
	if score > 40 {
		score = 40
	}

	if lastEventAt > 0 {
		idle := now.Sub(time.UnixMilli(lastEventAt))
		switch {
		case idle > 7*24*time.Hour:
			score += 30
		case idle > 3*24*time.Hour:
			score += 20
		case idle > 24*time.Hour:
			score += 10
		}
	}

	// The 50% default stands in only when the user has no completion-rated
	// video events; an all-zero average is a real signal and keeps the full
	// penalty.
	avgCompletion := fallbackRiskScore
	if metrics.VideoCompletionSamples > 0 {
		avgCompletion = metrics.VideoEngagementScore
	}
	if penalty := 30.0 - avgCompletion*0.3; penalty > 0 {
		score += penalty
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func (s *riskService) CategorizeLevel(score float64) string {
	switch {
	case score >= 60:
		return types.RiskLevelHigh
	case score >= 30:
		return types.RiskLevelMedium
	default:
		return types.RiskLevelLow
	}
}

// Rule-based recommendation catalog. Kept as named values so re-aggregation
// can tell rule output apart from accumulated model and AI recommendations.
const (
	recHighRisk        = "High exit risk detected - consider immediate intervention"
	recLowVideo        = "Low video engagement - recommend shorter or more interactive content"
	recManyStruggles   = "Multiple struggle signals detected - provide additional support"
	recLowAdoption     = "Low feature adoption - consider guided onboarding"
	recHealthyBaseline = "User engagement is healthy - continue current experience"
)

func isRuleRecommendation(rec string) bool {
	switch rec {
	case recHighRisk, recLowVideo, recManyStruggles, recLowAdoption, recHealthyBaseline:
		return true
	default:
		return false
	}
}

// Recommendations derives rule-based guidance from the current insights.
// Model-provided recommendations are appended separately during the blend.
func (s *riskService) Recommendations(insights *types.UserInsights) []string {
	if insights == nil {
		return nil
	}
	var out []string
	if insights.RiskScore > 60 {
		out = append(out, recHighRisk)
	}
	if insights.BehaviorMetrics.VideoEngagementScore < 30 {
		out = append(out, recLowVideo)
	}
	if insights.BehaviorMetrics.StruggleSignalCount > 3 {
		out = append(out, recManyStruggles)
	}
	if insights.BehaviorMetrics.FeatureAdoptionRate < 20 {
		out = append(out, recLowAdoption)
	}
	if len(out) == 0 {
		out = append(out, recHealthyBaseline)
	}
	return out
}

// RequestPrediction kicks off an asynchronous model invocation for the user.
// A fresh cache entry or an already-pending request makes this a no-op, which
// also keeps intervention feedback events from re-triggering predictions.
func (s *riskService) RequestPrediction(userID string) {
	if userID == "" || s.model == nil {
		return
	}
	if cached, ok := s.cache.Get(userID); ok && !cached.IsExpired() {
		return
	}

	s.mu.Lock()
	if _, inFlight := s.pending[userID]; inFlight {
		s.mu.Unlock()
		return
	}
	s.pending[userID] = struct{}{}
	s.mu.Unlock()

	go s.runPrediction(userID)
}

func (s *riskService) runPrediction(userID string) {
	defer func() {
		s.mu.Lock()
		delete(s.pending, userID)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), predictionDeadline)
	defer cancel()

	now := s.nowFunc()
	events := s.history.Events(userID)
	features := s.features.Extract(userID, events, now)

	if !s.features.Validate(features) {
		s.storeFallback(userID, "feature validation failed")
		return
	}

	s.metrics.IncModelPrediction()
	result, err := s.model.Predict(ctx, features)
	if err != nil || result == nil {
		s.metrics.IncAIServiceError("risk_model", "predict")
		s.log.Warn("Model prediction failed, using fallback", "user_id", userID, "error", err)
		s.storeFallback(userID, errString(err))
		return
	}

	result.UserID = userID
	result.Timestamp = now
	s.blend(userID, result)
	s.cache.Set(result)
}

// blend merges the model score into the stored insights and fires the
// intervention hook when warranted.
func (s *riskService) blend(userID string, result *types.PredictionResult) {
	var blendedScore float64
	var blendedLevel string

	s.insights.Update(userID, func(insights *types.UserInsights) {
		blendedScore = result.RiskScore*riskMLWeight + insights.RiskScore*riskRuleWeight
		blendedLevel = s.CategorizeLevel(blendedScore)
		insights.RiskScore = blendedScore
		insights.RiskLevel = blendedLevel
		for _, rec := range result.Recommendations {
			insights.Recommendations = append(insights.Recommendations, "ML Insight: "+rec)
		}
	})

	result.RiskScore = blendedScore
	result.RiskLevel = blendedLevel

	if blendedLevel == types.RiskLevelHigh && blendedScore > interventionScoreFloor {
		s.triggerIntervention(userID, blendedScore)
	}
}

func (s *riskService) triggerIntervention(userID string, score float64) {
	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()
	if hook == nil {
		return
	}

	event := &types.Event{
		EventType: types.EventInterventionTrigger,
		UserID:    userID,
		Timestamp: s.nowFunc().UnixMilli(),
		EventData: &types.EventData{Feature: interventionFeature},
	}

	s.metrics.IncInterventionExecuted(interventionFeature)
	s.log.Info("Triggering exit-risk intervention", "user_id", userID, "risk_score", score)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("Intervention hook panicked", "user_id", userID, "panic", r)
			}
		}()
		hook(event)
	}()
}

func (s *riskService) storeFallback(userID, reason string) {
	s.cache.Set(&types.PredictionResult{
		UserID:    userID,
		RiskScore: fallbackRiskScore,
		RiskLevel: types.RiskLevelMedium,
		Recommendations: []string{
			"Prediction service unavailable, using rule-based assessment",
			"Review user activity manually if risk is suspected",
		},
		Timestamp:    s.nowFunc(),
		ErrorMessage: reason,
	})
}

// CurrentPrediction serves the cached result, requesting a fresh one first if
// nothing usable is cached. It waits briefly for an in-flight prediction but
// never blocks past the caller's context.
func (s *riskService) CurrentPrediction(ctx context.Context, userID string) *types.PredictionResult {
	if cached, ok := s.cache.Get(userID); ok && !cached.IsExpired() {
		return cached
	}

	s.RequestPrediction(userID)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return s.cachedOrFallback(userID)
		case <-ticker.C:
			if cached, ok := s.cache.Get(userID); ok && !cached.IsExpired() {
				return cached
			}
			s.mu.Lock()
			_, inFlight := s.pending[userID]
			s.mu.Unlock()
			if !inFlight {
				return s.cachedOrFallback(userID)
			}
		}
	}
}

func (s *riskService) cachedOrFallback(userID string) *types.PredictionResult {
	if cached, ok := s.cache.Get(userID); ok {
		return cached
	}
	return &types.PredictionResult{
		UserID:       userID,
		RiskScore:    fallbackRiskScore,
		RiskLevel:    types.RiskLevelMedium,
		Timestamp:    s.nowFunc(),
		ErrorMessage: "no prediction available",
	}
}

func (s *riskService) ModelHealth(ctx context.Context) *types.ModelHealthStatus {
	if s.model == nil {
		return &types.ModelHealthStatus{
			Healthy:   false,
			Message:   "model client not configured",
			CheckTime: s.nowFunc(),
		}
	}
	return s.model.Health(ctx)
}

func errString(err error) string {
	if err == nil {
		return "empty model response"
	}
	return err.Error()
}

// MemoryPredictionCache is the default in-process PredictionCache. Entries
// expire by TTL on read; no background sweeper.
type MemoryPredictionCache struct {
	mu      sync.RWMutex
	entries map[string]*types.PredictionResult
}

func NewMemoryPredictionCache() *MemoryPredictionCache {
	return &MemoryPredictionCache{entries: map[string]*types.PredictionResult{}}
}

func (c *MemoryPredictionCache) Get(userID string) (*types.PredictionResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	copied := *entry
	copied.Recommendations = append([]string(nil), entry.Recommendations...)
	return &copied, true
}

func (c *MemoryPredictionCache) Set(result *types.PredictionResult) {
	if result == nil || result.UserID == "" {
		return
	}
	copied := *result
	copied.Recommendations = append([]string(nil), result.Recommendations...)
	c.mu.Lock()
	c.entries[result.UserID] = &copied
	c.mu.Unlock()
}
