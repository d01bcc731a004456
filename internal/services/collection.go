package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/observability"
	"github.com/yungbote/journeylens-backend/internal/repos"
	"github.com/yungbote/journeylens-backend/internal/types"
)

var (
	ErrMissingUserID = errors.New("event is missing userId")
	ErrInvalidType   = errors.New("event type is invalid")
	ErrNilEvent      = errors.New("event is nil")
)

var eventTypePattern = regexp.MustCompile(`^[a-z0-9_\.]{3,64}$`)

// StreamPublisher pushes processed events to downstream consumers.
// Best-effort: a publish failure never fails event processing.
type StreamPublisher interface {
	Publish(ctx context.Context, event *types.Event) error
}

// TextAnalysisClient generates natural-language guidance for struggling
// users. Failures are non-fatal and simply omit the generated text.
type TextAnalysisClient interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

// CollectionService runs the full per-event pipeline: validate, enrich,
// detect struggles, retain, archive, publish, re-aggregate insights and
// kick off the asynchronous risk prediction.
type CollectionService interface {
	ProcessEvent(ctx context.Context, event *types.Event) (*types.EventResponse, error)
	ProcessBatch(ctx context.Context, events []*types.Event) []*types.EventResponse
	UserInsights(userID string) *types.UserInsights
	UserEvents(ctx context.Context, userID string, limit int, startTime, endTime *int64) ([]*types.Event, error)
	UserEventCount(ctx context.Context, userID string) int64
	StruggleEvents(userID string) []*types.Event
	Dashboard(hours int) *types.DashboardAnalytics
}

type collectionService struct {
	history     HistoryService
	insights    InsightsService
	enrichment  EnrichmentService
	struggle    StruggleService
	aggregation AggregationService
	risk        RiskService
	archive     repos.UserEventRepo
	publisher   StreamPublisher
	textClient  TextAnalysisClient
	metrics     *observability.Metrics
	log         *logger.Logger
	nowFunc     func() time.Time
}

func NewCollectionService(
	history HistoryService,
	insights InsightsService,
	enrichment EnrichmentService,
	struggle StruggleService,
	aggregation AggregationService,
	risk RiskService,
	archive repos.UserEventRepo,
	publisher StreamPublisher,
	textClient TextAnalysisClient,
	metrics *observability.Metrics,
	baseLog *logger.Logger,
) CollectionService {
	s := &collectionService{
		history:     history,
		insights:    insights,
		enrichment:  enrichment,
		struggle:    struggle,
		aggregation: aggregation,
		risk:        risk,
		archive:     archive,
		publisher:   publisher,
		textClient:  textClient,
		metrics:     metrics,
		log:         baseLog.With("service", "CollectionService"),
		nowFunc:     time.Now,
	}
	// Intervention events feed back through the same pipeline.
	risk.SetInterventionHook(func(event *types.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.ProcessEvent(ctx, event); err != nil {
			s.log.Error("Intervention event processing failed", "user_id", event.UserID, "error", err)
		}
	})
	return s
}

func (s *collectionService) ProcessEvent(ctx context.Context, event *types.Event) (*types.EventResponse, error) {
	started := s.nowFunc()

	if err := validateEvent(event); err != nil {
		s.metrics.ObserveProcessing("rejected", s.nowFunc().Sub(started))
		return nil, err
	}

	working := event.Clone()
	if working.Timestamp == 0 {
		working.Timestamp = s.nowFunc().UnixMilli()
	}

	priorHistory := s.history.Events(working.UserID)
	enriched := s.enrichment.Enrich(working, priorHistory)

	result := s.struggle.Detect(enriched, priorHistory)
	if result.IsStruggle {
		enriched.EventType = types.EventStruggleSignal
		if enriched.EventData == nil {
			enriched.EventData = &types.EventData{}
		}
		attempts := result.AttemptCount
		enriched.EventData.AttemptCount = &attempts
		s.metrics.IncStruggleDetected(enriched.EventData.Feature)
	}

	if enriched.EventType == types.EventVideoEngagement &&
		enriched.EventData != nil &&
		enriched.EventData.CompletionRate != nil &&
		*enriched.EventData.CompletionRate > highEngagementThresholdRate {
		s.metrics.IncHighVideoEngagement()
	}

	eventID := buildEventID(enriched)
	s.history.Append(enriched)
	s.metrics.SetTrackedUsers(s.history.UserCount())

	s.archiveEvent(ctx, eventID, enriched)
	s.publishEvent(ctx, enriched)
	s.updateInsights(enriched)

	s.risk.RequestPrediction(enriched.UserID)
	if result.IsStruggle {
		go s.analyzeStruggle(enriched)
	}

	s.metrics.IncEventProcessed(enriched.EventType)
	s.metrics.ObserveProcessing("ok", s.nowFunc().Sub(started))

	return &types.EventResponse{
		EventID:   eventID,
		Message:   "Event processed successfully",
		Timestamp: s.nowFunc().UnixMilli(),
	}, nil
}

func (s *collectionService) ProcessBatch(ctx context.Context, events []*types.Event) []*types.EventResponse {
	responses := make([]*types.EventResponse, 0, len(events))
	for _, event := range events {
		resp, err := s.ProcessEvent(ctx, event)
		if err != nil {
			responses = append(responses, &types.EventResponse{
				Message:   fmt.Sprintf("Event rejected: %v", err),
				Timestamp: s.nowFunc().UnixMilli(),
			})
			continue
		}
		responses = append(responses, resp)
	}
	return responses
}

func (s *collectionService) UserInsights(userID string) *types.UserInsights {
	return s.insights.Get(userID)
}

// UserEvents prefers the durable archive when configured and falls back to
// the in-memory history; reads are best-effort snapshots either way.
func (s *collectionService) UserEvents(ctx context.Context, userID string, limit int, startTime, endTime *int64) ([]*types.Event, error) {
	if s.archive != nil {
		records, err := s.archive.GetByUserID(ctx, nil, userID, limit, startTime, endTime)
		if err == nil {
			events := make([]*types.Event, 0, len(records))
			for _, record := range records {
				var ev types.Event
				if jsonErr := json.Unmarshal(record.Payload, &ev); jsonErr != nil {
					continue
				}
				events = append(events, &ev)
			}
			return events, nil
		}
		s.log.Warn("Archive read failed, serving in-memory history", "user_id", userID, "error", err)
	}

	events := s.history.Events(userID)
	filtered := events[:0]
	for _, ev := range events {
		if startTime != nil && ev.Timestamp < *startTime {
			continue
		}
		if endTime != nil && ev.Timestamp > *endTime {
			continue
		}
		filtered = append(filtered, ev)
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

// UserEventCount reports the archived event total for a user so windowed or
// limited reads can be put in proportion. Falls back to the retained
// in-memory history when the archive is unavailable.
func (s *collectionService) UserEventCount(ctx context.Context, userID string) int64 {
	if s.archive != nil {
		count, err := s.archive.CountByUserID(ctx, nil, userID)
		if err == nil {
			return count
		}
		s.log.Warn("Archive count failed, serving in-memory history size", "user_id", userID, "error", err)
	}
	return int64(len(s.history.Events(userID)))
}

func (s *collectionService) StruggleEvents(userID string) []*types.Event {
	var out []*types.Event
	for _, ev := range s.history.Events(userID) {
		if ev.EventType == types.EventStruggleSignal {
			out = append(out, ev)
		}
	}
	return out
}

// Dashboard aggregates over the trailing window; hours <= 0 covers all
// retained history.
func (s *collectionService) Dashboard(hours int) *types.DashboardAnalytics {
	now := s.nowFunc()
	var windowStart int64
	if hours > 0 {
		windowStart = now.Add(-time.Duration(hours) * time.Hour).UnixMilli()
	}

	dashboard := &types.DashboardAnalytics{
		EventTypeBreakdown: map[string]int{},
		PlatformBreakdown:  map[string]int{},
		Timestamp:          now.UnixMilli(),
	}
	activeUsers := map[string]struct{}{}
	for _, ev := range s.history.AllEvents() {
		if ev.Timestamp < windowStart {
			continue
		}
		dashboard.TotalEvents++
		activeUsers[ev.UserID] = struct{}{}
		dashboard.EventTypeBreakdown[ev.EventType]++
		if ev.DeviceInfo != nil && ev.DeviceInfo.Platform != "" {
			dashboard.PlatformBreakdown[ev.DeviceInfo.Platform]++
		}
		switch ev.EventType {
		case types.EventStruggleSignal:
			dashboard.StruggleSignals++
		case types.EventVideoEngagement:
			dashboard.VideoEngagements++
		}
	}
	dashboard.ActiveUsers = len(activeUsers)
	return dashboard
}

func (s *collectionService) archiveEvent(ctx context.Context, eventID string, event *types.Event) {
	if s.archive == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.metrics.IncArchiveFailure()
		s.log.Error("Event payload marshal failed", "user_id", event.UserID, "error", err)
		return
	}
	record := &types.EventRecord{
		EventID:    eventID,
		UserID:     event.UserID,
		SessionID:  event.SessionID,
		EventType:  event.EventType,
		OccurredAt: event.Timestamp,
		Payload:    datatypes.JSON(payload),
	}
	if _, err := s.archive.Create(ctx, nil, []*types.EventRecord{record}); err != nil {
		s.metrics.IncArchiveFailure()
		s.log.Warn("Event archive write failed", "user_id", event.UserID, "event_id", eventID, "error", err)
	}
}

func (s *collectionService) publishEvent(ctx context.Context, event *types.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.IncPublishFailure()
		s.log.Warn("Event publish failed", "user_id", event.UserID, "event_type", event.EventType, "error", err)
	}
}

// updateInsights re-aggregates the user's full history under the insights
// store's per-user lock, so concurrent events for one user never interleave.
func (s *collectionService) updateInsights(event *types.Event) {
	history := s.history.Events(event.UserID)
	metrics := s.aggregation.ComputeMetrics(history)
	signals := s.aggregation.StruggleSignals(history)

	var lastEventAt int64
	for _, ev := range history {
		if ev.Timestamp > lastEventAt {
			lastEventAt = ev.Timestamp
		}
	}
	score := s.risk.RuleScore(metrics, lastEventAt, s.nowFunc())
	level := s.risk.CategorizeLevel(score)

	s.insights.Update(event.UserID, func(insights *types.UserInsights) {
		if event.UserContext != nil && event.UserContext.UserSegment != "" {
			insights.UserSegment = event.UserContext.UserSegment
		}
		insights.BehaviorMetrics = metrics
		insights.StruggleSignals = signals
		insights.RiskScore = score
		insights.RiskLevel = level

		// Rule recommendations are recomputed each event; model and AI
		// recommendations accumulate until they are recomputed upstream.
		var preserved []string
		for _, rec := range insights.Recommendations {
			if !isRuleRecommendation(rec) {
				preserved = append(preserved, rec)
			}
		}
		insights.Recommendations = append(s.risk.Recommendations(insights), preserved...)
	})
}

// analyzeStruggle asks the text-analysis collaborator for guidance on a
// detected struggle and appends it to the user's recommendations.
func (s *collectionService) analyzeStruggle(event *types.Event) {
	if s.textClient == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), predictionDeadline)
	defer cancel()

	feature := ""
	if event.EventData != nil {
		feature = event.EventData.Feature
	}
	prompt := fmt.Sprintf(
		"A user is repeatedly struggling with the %q feature. Suggest one concrete, actionable step to help them succeed.",
		feature,
	)
	suggestion, err := s.textClient.Analyze(ctx, prompt)
	if err != nil {
		s.metrics.IncAIServiceError("text_analysis", "analyze")
		s.log.Warn("Struggle analysis failed", "user_id", event.UserID, "feature", feature, "error", err)
		return
	}
	if suggestion == "" {
		return
	}
	if len(suggestion) > 200 {
		// Back up to a rune boundary so the cut never leaves a split rune.
		cut := 200
		for cut > 0 && !utf8.RuneStart(suggestion[cut]) {
			cut--
		}
		suggestion = suggestion[:cut]
	}
	s.insights.Update(event.UserID, func(insights *types.UserInsights) {
		insights.Recommendations = append(insights.Recommendations, "AI Analysis: "+suggestion)
	})
}

func validateEvent(event *types.Event) error {
	if event == nil {
		return ErrNilEvent
	}
	if event.UserID == "" {
		return ErrMissingUserID
	}
	if !eventTypePattern.MatchString(event.EventType) {
		return fmt.Errorf("%w: %q", ErrInvalidType, event.EventType)
	}
	return nil
}

// buildEventID is deterministic for a given (user, type, timestamp) triple so
// archive retries dedupe on the unique index.
func buildEventID(event *types.Event) string {
	userPart := event.UserID
	if len(userPart) > 8 {
		userPart = userPart[:8]
	}
	return fmt.Sprintf("evt_%s_%s_%d", userPart, event.EventType, event.Timestamp)
}
