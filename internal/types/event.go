package types

// Event types accepted by the collection pipeline. feature_interaction events
// may be rewritten to struggle_signal during enrichment; intervention_triggered
// events are synthesized by the risk scorer and fed back through the pipeline.
const (
	EventPageView            = "page_view"
	EventVideoEngagement     = "video_engagement"
	EventFeatureInteraction  = "feature_interaction"
	EventStruggleSignal      = "struggle_signal"
	EventContentInteraction  = "content_interaction"
	EventHelpRequest         = "help_request"
	EventSupportChat         = "support_chat"
	EventInterventionTrigger = "intervention_triggered"
)

// Event is one observed user action. It is created by a producer, enriched
// once, appended to the user's bounded history and never mutated after that.
type Event struct {
	EventType   string       `json:"eventType"`
	UserID      string       `json:"userId"`
	SessionID   string       `json:"sessionId"`
	Timestamp   int64        `json:"timestamp"` // milliseconds since epoch
	EventData   *EventData   `json:"eventData,omitempty"`
	DeviceInfo  *DeviceInfo  `json:"deviceInfo,omitempty"`
	UserContext *UserContext `json:"userContext,omitempty"`
}

type EventData struct {
	Feature        string   `json:"feature,omitempty"`
	VideoID        string   `json:"videoId,omitempty"`
	Duration       *float64 `json:"duration,omitempty"` // seconds
	WatchDuration  *float64 `json:"watchDuration,omitempty"`
	CompletionRate *float64 `json:"completionRate,omitempty"` // percent
	AttemptCount   *int     `json:"attemptCount,omitempty"`
	ErrorType      string   `json:"errorType,omitempty"`
	PlaybackSpeed  *float64 `json:"playbackSpeed,omitempty"`
}

type DeviceInfo struct {
	Platform    string `json:"platform,omitempty"`
	AppVersion  string `json:"appVersion,omitempty"`
	DeviceModel string `json:"deviceModel,omitempty"`
}

type UserContext struct {
	UserSegment     string   `json:"userSegment,omitempty"`
	SessionStage    string   `json:"sessionStage,omitempty"`
	PreviousActions []string `json:"previousActions,omitempty"`
}

// Clone returns a deep copy so enrichment never aliases the caller's event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	out := *e
	if e.EventData != nil {
		data := *e.EventData
		data.Duration = copyFloat(e.EventData.Duration)
		data.WatchDuration = copyFloat(e.EventData.WatchDuration)
		data.CompletionRate = copyFloat(e.EventData.CompletionRate)
		data.AttemptCount = copyInt(e.EventData.AttemptCount)
		data.PlaybackSpeed = copyFloat(e.EventData.PlaybackSpeed)
		out.EventData = &data
	}
	if e.DeviceInfo != nil {
		device := *e.DeviceInfo
		out.DeviceInfo = &device
	}
	if e.UserContext != nil {
		uc := *e.UserContext
		uc.PreviousActions = append([]string(nil), e.UserContext.PreviousActions...)
		out.UserContext = &uc
	}
	return &out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// EventResponse is the per-event outcome returned by the ingest API.
type EventResponse struct {
	EventID   string `json:"eventId,omitempty"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
