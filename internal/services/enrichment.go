package services

import (
	"fmt"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/types"
)

// User segments assigned from distinct-session counts.
const (
	SegmentNewUser     = "new_user"
	SegmentActiveUser  = "active_user"
	SegmentEngagedUser = "engaged_user"
)

const (
	defaultPlatform     = "Web"
	defaultAppVersion   = "1.0.0"
	defaultDeviceModel  = "Unknown"
	defaultSessionStage = "exploration"

	previousActionsWindow       = 5
	highEngagementThresholdRate = 80.0
)

// EnrichmentService fills the gaps producers leave: device defaults, user
// context derived from history, and video completion rates. It never mutates
// its input; callers get a fully-populated clone.
type EnrichmentService interface {
	Enrich(event *types.Event, history []*types.Event) *types.Event
}

type enrichmentService struct {
	log *logger.Logger
}

func NewEnrichmentService(baseLog *logger.Logger) EnrichmentService {
	return &enrichmentService{log: baseLog.With("service", "EnrichmentService")}
}

func (s *enrichmentService) Enrich(event *types.Event, history []*types.Event) *types.Event {
	if event == nil {
		return nil
	}
	enriched := event.Clone()

	if enriched.DeviceInfo == nil {
		enriched.DeviceInfo = &types.DeviceInfo{}
	}
	if enriched.DeviceInfo.Platform == "" {
		enriched.DeviceInfo.Platform = defaultPlatform
	}
	if enriched.DeviceInfo.AppVersion == "" {
		enriched.DeviceInfo.AppVersion = defaultAppVersion
	}
	if enriched.DeviceInfo.DeviceModel == "" {
		enriched.DeviceInfo.DeviceModel = defaultDeviceModel
	}

	if enriched.UserContext == nil {
		enriched.UserContext = &types.UserContext{}
	}
	if enriched.UserContext.UserSegment == "" {
		enriched.UserContext.UserSegment = segmentFor(distinctSessions(history))
	}
	if enriched.UserContext.SessionStage == "" {
		enriched.UserContext.SessionStage = defaultSessionStage
	}
	if len(enriched.UserContext.PreviousActions) == 0 {
		enriched.UserContext.PreviousActions = previousActions(history)
	}

	if enriched.EventType == types.EventVideoEngagement {
		s.enrichVideoCompletion(enriched)
	}

	return enriched
}

func (s *enrichmentService) enrichVideoCompletion(event *types.Event) {
	data := event.EventData
	if data == nil || data.CompletionRate != nil {
		return
	}
	if data.WatchDuration == nil || data.Duration == nil || *data.Duration <= 0 {
		return
	}
	rate := *data.WatchDuration / *data.Duration * 100.0
	data.CompletionRate = &rate
	if rate > highEngagementThresholdRate {
		s.log.Debug("High video engagement detected",
			"user_id", event.UserID, "video_id", data.VideoID, "completion_rate", rate)
	}
}

func segmentFor(sessionCount int) string {
	switch {
	case sessionCount == 0:
		return SegmentNewUser
	case sessionCount <= 5:
		return SegmentActiveUser
	default:
		return SegmentEngagedUser
	}
}

func distinctSessions(history []*types.Event) int {
	seen := map[string]struct{}{}
	for _, ev := range history {
		if ev == nil || ev.SessionID == "" {
			continue
		}
		seen[ev.SessionID] = struct{}{}
	}
	return len(seen)
}

// previousActions summarizes the most recent history entries as
// "type:subject", newest last, capped at the context window.
func previousActions(history []*types.Event) []string {
	start := len(history) - previousActionsWindow
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, len(history)-start)
	for _, ev := range history[start:] {
		if ev == nil {
			continue
		}
		out = append(out, fmt.Sprintf("%s:%s", ev.EventType, actionSubject(ev)))
	}
	return out
}

func actionSubject(ev *types.Event) string {
	if ev.EventData != nil {
		if ev.EventData.Feature != "" {
			return ev.EventData.Feature
		}
		if ev.EventData.VideoID != "" {
			return ev.EventData.VideoID
		}
	}
	return "unknown"
}
