package services

import (
	"time"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/types"
)

const (
	struggleWindow        = 5 * time.Minute
	struggleMinPriorCount = 2
)

// StruggleResult reports whether an event marks repeated trouble with a
// feature. AttemptCount counts the prior window attempts plus the event
// itself, so the first detected struggle always reports at least 3.
type StruggleResult struct {
	IsStruggle   bool
	AttemptCount int
}

// StruggleService detects repeated short-window interactions with the same
// feature. Detection is pure with respect to the provided history; the event
// under test must not already be part of it.
type StruggleService interface {
	Detect(event *types.Event, history []*types.Event) StruggleResult
}

type struggleService struct {
	log *logger.Logger
}

func NewStruggleService(baseLog *logger.Logger) StruggleService {
	return &struggleService{log: baseLog.With("service", "StruggleService")}
}

func (s *struggleService) Detect(event *types.Event, history []*types.Event) StruggleResult {
	if event == nil || event.EventData == nil || event.EventData.Feature == "" {
		return StruggleResult{}
	}
	if event.EventType != types.EventFeatureInteraction && event.EventType != types.EventStruggleSignal {
		return StruggleResult{}
	}

	feature := event.EventData.Feature
	windowStart := event.Timestamp - struggleWindow.Milliseconds()

	priors := 0
	for _, prior := range history {
		if prior == nil || prior.EventData == nil {
			continue
		}
		if prior.EventType != types.EventFeatureInteraction && prior.EventType != types.EventStruggleSignal {
			continue
		}
		if prior.EventData.Feature != feature {
			continue
		}
		if prior.Timestamp < windowStart || prior.Timestamp > event.Timestamp {
			continue
		}
		priors++
	}

	if priors < struggleMinPriorCount {
		return StruggleResult{AttemptCount: priors + 1}
	}

	result := StruggleResult{IsStruggle: true, AttemptCount: priors + 1}
	s.log.Debug("Struggle detected",
		"user_id", event.UserID, "feature", feature, "attempt_count", result.AttemptCount)
	return result
}
