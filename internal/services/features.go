package services

import (
	"sort"
	"strings"
	"time"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/types"
)

// Milestones a user is expected to touch on the way to approval. Progress is
// the fraction touched at least once.
var progressMilestones = []string{
	"registration",
	"profile_setup",
	"document_upload",
	"verification",
	"application_submit",
	"approval",
}

const (
	featureWindowShort = 7 * 24 * time.Hour
	featureWindowLong  = 30 * 24 * time.Hour

	noLoginSentinelDays = 999
)

// FeatureService derives the exit-risk model's input vector from a user's
// event history. Extraction is a pure function of (history, now); the same
// inputs always produce the same vector regardless of input ordering.
type FeatureService interface {
	Extract(userID string, history []*types.Event, now time.Time) *types.ExitRiskFeatures
	Validate(features *types.ExitRiskFeatures) bool
	BuildTrainingDataset(histories map[string][]*types.Event, exitLabels map[string]bool, now time.Time) []*types.ExitRiskFeatures
}

type featureService struct {
	log *logger.Logger
}

func NewFeatureService(baseLog *logger.Logger) FeatureService {
	return &featureService{log: baseLog.With("service", "FeatureService")}
}

func (s *featureService) Extract(userID string, history []*types.Event, now time.Time) *types.ExitRiskFeatures {
	features := &types.ExitRiskFeatures{
		UserID:               userID,
		FeatureTimestamp:     now,
		PlatformUsagePattern: types.PlatformPatternUnknown,
	}
	if len(history) == 0 {
		s.log.Warn("No events found for feature extraction", "user_id", userID)
		return features
	}

	sorted := make([]*types.Event, 0, len(history))
	for _, ev := range history {
		if ev != nil {
			sorted = append(sorted, ev)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	last7d := filterWindow(sorted, now.Add(-featureWindowShort), now)
	last30d := filterWindow(sorted, now.Add(-featureWindowLong), now)

	features.StruggleSignalCount7d = countByType(last7d, types.EventStruggleSignal)
	features.VideoEngagementScore = videoEngagementScore(last7d)
	features.FeatureCompletionRate = featureCompletionRate(last7d)
	features.SessionFrequencyTrend = sessionFrequencyTrend(sorted)
	features.SupportInteractionCount = supportInteractionCount(last30d)
	features.DaysSinceLastLogin = daysSinceLastEvent(sorted, now)
	features.ApplicationProgressPercentage = applicationProgress(sorted)
	features.AvgSessionDuration = avgSessionDuration(last7d)
	features.TotalSessions = distinctSessions(last7d)
	features.ErrorRate = errorRate(last7d)
	features.HelpSeekingBehavior = helpSeekingBehavior(last7d)
	features.ContentEngagementScore = contentEngagementScore(last7d)
	features.PlatformUsagePattern = platformUsagePattern(sorted)

	return features
}

// Validate rejects vectors the model must never see. Invalid features mean
// "skip the model call and fall back", not an error.
func (s *featureService) Validate(features *types.ExitRiskFeatures) bool {
	if features == nil {
		return false
	}
	if strings.TrimSpace(features.UserID) == "" {
		s.log.Warn("Feature validation failed: blank user id")
		return false
	}
	if features.StruggleSignalCount7d < 0 {
		s.log.Warn("Feature validation failed: negative struggle count", "user_id", features.UserID)
		return false
	}
	if features.VideoEngagementScore < 0 || features.VideoEngagementScore > 100 {
		s.log.Warn("Feature validation failed: video engagement out of range",
			"user_id", features.UserID, "score", features.VideoEngagementScore)
		return false
	}
	if features.DaysSinceLastLogin < 0 {
		s.log.Warn("Feature validation failed: negative days since last login", "user_id", features.UserID)
		return false
	}
	return true
}

func (s *featureService) BuildTrainingDataset(histories map[string][]*types.Event, exitLabels map[string]bool, now time.Time) []*types.ExitRiskFeatures {
	s.log.Info("Creating training dataset", "users", len(histories))

	dataset := make([]*types.ExitRiskFeatures, 0, len(histories))
	for userID, history := range histories {
		exited, labeled := exitLabels[userID]
		if !labeled {
			continue
		}
		features := s.Extract(userID, history, now)
		label := exited
		features.ExitedWithin72h = &label
		dataset = append(dataset, features)
	}
	sort.Slice(dataset, func(i, j int) bool { return dataset[i].UserID < dataset[j].UserID })

	s.log.Info("Created training dataset", "samples", len(dataset))
	return dataset
}

func filterWindow(events []*types.Event, start, end time.Time) []*types.Event {
	startMs, endMs := start.UnixMilli(), end.UnixMilli()
	out := make([]*types.Event, 0, len(events))
	for _, ev := range events {
		if ev.Timestamp > startMs && ev.Timestamp < endMs {
			out = append(out, ev)
		}
	}
	return out
}

func countByType(events []*types.Event, eventType string) int {
	count := 0
	for _, ev := range events {
		if ev.EventType == eventType {
			count++
		}
	}
	return count
}

// videoEngagementScore is the mean completion rate weighted toward users who
// watched several videos, so a single complete watch does not read as deep
// engagement.
func videoEngagementScore(events []*types.Event) float64 {
	var sum float64
	var count int
	for _, ev := range events {
		if ev.EventType != types.EventVideoEngagement {
			continue
		}
		if ev.EventData == nil || ev.EventData.CompletionRate == nil {
			continue
		}
		sum += *ev.EventData.CompletionRate
		count++
	}
	if count == 0 {
		return 0
	}
	weight := float64(count) / 5.0
	if weight > 1 {
		weight = 1
	}
	score := (sum / float64(count)) * weight
	if score > 100 {
		score = 100
	}
	return score
}

// featureCompletionRate treats a feature as completed when none of its three
// most recent interactions needed more than one attempt.
func featureCompletionRate(events []*types.Event) float64 {
	byFeature := map[string][]*types.Event{}
	for _, ev := range events {
		if ev.EventType != types.EventFeatureInteraction {
			continue
		}
		if ev.EventData == nil || ev.EventData.Feature == "" {
			continue
		}
		byFeature[ev.EventData.Feature] = append(byFeature[ev.EventData.Feature], ev)
	}
	if len(byFeature) == 0 {
		return 0
	}

	completed := 0
	for _, list := range byFeature {
		sort.Slice(list, func(i, j int) bool { return list[i].Timestamp > list[j].Timestamp })
		recent := list
		if len(recent) > 3 {
			recent = recent[:3]
		}
		struggled := false
		for _, ev := range recent {
			if ev.EventData.AttemptCount != nil && *ev.EventData.AttemptCount > 1 {
				struggled = true
				break
			}
		}
		if !struggled {
			completed++
		}
	}
	return float64(completed) / float64(len(byFeature)) * 100.0
}

// sessionFrequencyTrend is the least-squares slope of per-day event counts,
// x = day index starting at 1. The slope is deliberately unclamped.
func sessionFrequencyTrend(events []*types.Event) float64 {
	if len(events) < 2 {
		return 0
	}
	daily := map[string]float64{}
	for _, ev := range events {
		day := time.UnixMilli(ev.Timestamp).UTC().Format("2006-01-02")
		daily[day]++
	}
	if len(daily) < 2 {
		return 0
	}

	days := make([]string, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Strings(days)

	n := float64(len(days))
	var sumX, sumY, sumXY, sumX2 float64
	for i, day := range days {
		x := float64(i + 1)
		y := daily[day]
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	return (n*sumXY - sumX*sumY) / (n*sumX2 - sumX*sumX)
}

func supportInteractionCount(events []*types.Event) int {
	count := 0
	for _, ev := range events {
		switch {
		case ev.EventType == types.EventHelpRequest, ev.EventType == types.EventSupportChat:
			count++
		case ev.EventData != nil && strings.Contains(ev.EventData.Feature, "help"):
			count++
		}
	}
	return count
}

func daysSinceLastEvent(sorted []*types.Event, now time.Time) int {
	if len(sorted) == 0 {
		return noLoginSentinelDays
	}
	last := time.UnixMilli(sorted[len(sorted)-1].Timestamp)
	days := int(now.Sub(last).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func applicationProgress(events []*types.Event) float64 {
	touched := map[string]struct{}{}
	for _, ev := range events {
		if ev.EventData == nil || ev.EventData.Feature == "" {
			continue
		}
		for _, milestone := range progressMilestones {
			if ev.EventData.Feature == milestone {
				touched[milestone] = struct{}{}
			}
		}
	}
	return float64(len(touched)) / float64(len(progressMilestones)) * 100.0
}

// avgSessionDuration mirrors the aggregation metric but discards sessions
// over an hour, which almost always mean a stale session id.
func avgSessionDuration(events []*types.Event) float64 {
	bounds := map[string][2]int64{}
	for _, ev := range events {
		if ev.SessionID == "" {
			continue
		}
		b, ok := bounds[ev.SessionID]
		if !ok {
			bounds[ev.SessionID] = [2]int64{ev.Timestamp, ev.Timestamp}
			continue
		}
		if ev.Timestamp < b[0] {
			b[0] = ev.Timestamp
		}
		if ev.Timestamp > b[1] {
			b[1] = ev.Timestamp
		}
		bounds[ev.SessionID] = b
	}

	var sum float64
	var valid int
	for _, b := range bounds {
		duration := float64(b[1]-b[0]) / 1000.0
		if duration > 0 && duration < 3600 {
			sum += duration
			valid++
		}
	}
	if valid == 0 {
		return 0
	}
	return sum / float64(valid)
}

func errorRate(events []*types.Event) float64 {
	interactions := 0
	errorEvents := 0
	for _, ev := range events {
		if ev.EventType == types.EventFeatureInteraction || ev.EventType == types.EventStruggleSignal {
			interactions++
		}
		if ev.EventType == types.EventStruggleSignal || (ev.EventData != nil && ev.EventData.ErrorType != "") {
			errorEvents++
		}
	}
	if interactions == 0 {
		return 0
	}
	return float64(errorEvents) / float64(interactions) * 100.0
}

func helpSeekingBehavior(events []*types.Event) float64 {
	if len(events) == 0 {
		return 0
	}
	helpEvents := 0
	for _, ev := range events {
		if ev.EventData == nil {
			continue
		}
		feature := ev.EventData.Feature
		if strings.Contains(feature, "help") || strings.Contains(feature, "tutorial") || strings.Contains(feature, "guide") {
			helpEvents++
		}
	}
	return float64(helpEvents) / float64(len(events)) * 100.0
}

func contentEngagementScore(events []*types.Event) float64 {
	var total float64
	var count int
	for _, ev := range events {
		switch ev.EventType {
		case types.EventVideoEngagement, types.EventPageView, types.EventContentInteraction:
		default:
			continue
		}
		count++
		if ev.EventData == nil {
			continue
		}
		var engagement float64
		if ev.EventData.CompletionRate != nil {
			engagement += *ev.EventData.CompletionRate * 0.6
		}
		if ev.EventData.Duration != nil {
			normalized := *ev.EventData.Duration / 300.0
			if normalized > 1 {
				normalized = 1
			}
			engagement += normalized * 40.0
		}
		total += engagement
	}
	if count == 0 {
		return 0
	}
	score := total / float64(count)
	if score > 100 {
		score = 100
	}
	return score
}

func platformUsagePattern(events []*types.Event) string {
	platforms := map[string]struct{}{}
	for _, ev := range events {
		if ev.DeviceInfo == nil || ev.DeviceInfo.Platform == "" {
			continue
		}
		platforms[ev.DeviceInfo.Platform] = struct{}{}
	}
	switch len(platforms) {
	case 0:
		return types.PlatformPatternUnknown
	case 1:
		if _, ok := platforms["Web"]; ok {
			return types.PlatformPatternWebOnly
		}
		return types.PlatformPatternMobileOnly
	default:
		return types.PlatformPatternMixed
	}
}
