package services

import (
	"sort"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/types"
)

const featureAdoptionPerFeature = 10.0

// AggregationService recomputes a user's behavior metrics and struggle
// signals from the full retained history. Both computations are pure.
type AggregationService interface {
	ComputeMetrics(history []*types.Event) types.BehaviorMetrics
	StruggleSignals(history []*types.Event) []types.StruggleSignal
}

type aggregationService struct {
	log *logger.Logger
}

func NewAggregationService(baseLog *logger.Logger) AggregationService {
	return &aggregationService{log: baseLog.With("service", "AggregationService")}
}

func (s *aggregationService) ComputeMetrics(history []*types.Event) types.BehaviorMetrics {
	metrics := types.BehaviorMetrics{}

	sessionBounds := map[string][2]int64{}
	features := map[string]struct{}{}
	var completionSum float64
	var completionCount int

	for _, ev := range history {
		if ev == nil {
			continue
		}
		if ev.SessionID != "" {
			bounds, ok := sessionBounds[ev.SessionID]
			if !ok {
				sessionBounds[ev.SessionID] = [2]int64{ev.Timestamp, ev.Timestamp}
			} else {
				if ev.Timestamp < bounds[0] {
					bounds[0] = ev.Timestamp
				}
				if ev.Timestamp > bounds[1] {
					bounds[1] = ev.Timestamp
				}
				sessionBounds[ev.SessionID] = bounds
			}
		}
		if ev.EventData != nil && ev.EventData.Feature != "" {
			features[ev.EventData.Feature] = struct{}{}
		}
		if ev.EventType == types.EventVideoEngagement && ev.EventData != nil && ev.EventData.CompletionRate != nil {
			completionSum += *ev.EventData.CompletionRate
			completionCount++
		}
		if ev.EventType == types.EventStruggleSignal {
			metrics.StruggleSignalCount++
		}
	}

	metrics.TotalSessions = len(sessionBounds)

	// Single-event sessions have no measurable span; they are left out of the
	// average instead of dragging it toward zero.
	var durationSum float64
	var durationCount int
	for _, bounds := range sessionBounds {
		if bounds[1] <= bounds[0] {
			continue
		}
		durationSum += float64(bounds[1]-bounds[0]) / 1000.0
		durationCount++
	}
	if durationCount > 0 {
		metrics.AvgSessionDuration = durationSum / float64(durationCount)
	}

	adoption := float64(len(features)) * featureAdoptionPerFeature
	if adoption > 100 {
		adoption = 100
	}
	metrics.FeatureAdoptionRate = adoption

	if completionCount > 0 {
		metrics.VideoEngagementScore = completionSum / float64(completionCount)
	}
	metrics.VideoCompletionSamples = completionCount

	return metrics
}

func (s *aggregationService) StruggleSignals(history []*types.Event) []types.StruggleSignal {
	type featureTally struct {
		count          int
		lastOccurrence int64
	}
	tallies := map[string]*featureTally{}

	for _, ev := range history {
		if ev == nil || ev.EventType != types.EventStruggleSignal {
			continue
		}
		feature := "unknown"
		if ev.EventData != nil && ev.EventData.Feature != "" {
			feature = ev.EventData.Feature
		}
		tally, ok := tallies[feature]
		if !ok {
			tally = &featureTally{}
			tallies[feature] = tally
		}
		tally.count++
		if ev.Timestamp > tally.lastOccurrence {
			tally.lastOccurrence = ev.Timestamp
		}
	}

	signals := make([]types.StruggleSignal, 0, len(tallies))
	for feature, tally := range tallies {
		attempts := tally.count + 1
		signals = append(signals, types.StruggleSignal{
			Feature:        feature,
			AttemptCount:   attempts,
			Severity:       severityFor(attempts),
			LastOccurrence: tally.lastOccurrence,
		})
	}
	sort.Slice(signals, func(i, j int) bool { return signals[i].Feature < signals[j].Feature })
	return signals
}

func severityFor(attemptCount int) string {
	switch {
	case attemptCount >= 5:
		return types.SeverityCritical
	case attemptCount >= 3:
		return types.SeverityHigh
	case attemptCount >= 2:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}
