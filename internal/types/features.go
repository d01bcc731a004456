package types

import "time"

// Platform usage patterns derived from device info across recent events.
const (
	PlatformPatternUnknown    = "unknown"
	PlatformPatternWebOnly    = "web_only"
	PlatformPatternMobileOnly = "mobile_only"
	PlatformPatternMixed      = "mixed"
)

// ExitRiskFeatures is the fixed-shape input vector for the exit-risk model.
// All fields are pure functions of a user's event history and a reference
// time; nothing here is persisted by the pipeline.
type ExitRiskFeatures struct {
	UserID           string    `json:"userId"`
	FeatureTimestamp time.Time `json:"featureTimestamp"`

	StruggleSignalCount7d         int     `json:"struggleSignalCount7d"`
	VideoEngagementScore          float64 `json:"videoEngagementScore"`
	FeatureCompletionRate         float64 `json:"featureCompletionRate"`
	SessionFrequencyTrend         float64 `json:"sessionFrequencyTrend"`
	SupportInteractionCount       int     `json:"supportInteractionCount"`
	DaysSinceLastLogin            int     `json:"daysSinceLastLogin"`
	ApplicationProgressPercentage float64 `json:"applicationProgressPercentage"`
	AvgSessionDuration            float64 `json:"avgSessionDuration"`
	TotalSessions                 int     `json:"totalSessions"`
	ErrorRate                     float64 `json:"errorRate"`
	HelpSeekingBehavior           float64 `json:"helpSeekingBehavior"`
	ContentEngagementScore        float64 `json:"contentEngagementScore"`
	PlatformUsagePattern          string  `json:"platformUsagePattern"`

	// Target label for training-set rows; nil outside dataset construction.
	ExitedWithin72h *bool `json:"exitedWithin72h,omitempty"`
}

// ToFeatureArray renders the vector in the column order the model was
// trained with. Keep in sync with FeatureNames.
func (f *ExitRiskFeatures) ToFeatureArray() []float64 {
	return []float64{
		float64(f.StruggleSignalCount7d),
		f.VideoEngagementScore,
		f.FeatureCompletionRate,
		f.SessionFrequencyTrend,
		float64(f.SupportInteractionCount),
		float64(f.DaysSinceLastLogin),
		f.ApplicationProgressPercentage,
		f.AvgSessionDuration,
		float64(f.TotalSessions),
		f.ErrorRate,
		f.HelpSeekingBehavior,
		f.ContentEngagementScore,
		encodePlatformUsage(f.PlatformUsagePattern),
	}
}

func encodePlatformUsage(pattern string) float64 {
	switch pattern {
	case PlatformPatternWebOnly:
		return 1.0
	case PlatformPatternMobileOnly:
		return 2.0
	case PlatformPatternMixed:
		return 3.0
	default:
		return 0.0
	}
}

// FeatureNames lists the model columns for interpretation tooling.
func FeatureNames() []string {
	return []string{
		"struggle_signal_count_7d",
		"video_engagement_score",
		"feature_completion_rate",
		"session_frequency_trend",
		"support_interaction_count",
		"days_since_last_login",
		"application_progress_percentage",
		"avg_session_duration",
		"total_sessions",
		"error_rate",
		"help_seeking_behavior",
		"content_engagement_score",
		"platform_usage_pattern",
	}
}
