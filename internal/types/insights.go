package types

// Risk levels derived from the 0-100 risk score.
const (
	RiskLevelLow    = "LOW"
	RiskLevelMedium = "MEDIUM"
	RiskLevelHigh   = "HIGH"
)

// Struggle severities, monotonic in attempt count.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

type BehaviorMetrics struct {
	TotalSessions        int     `json:"totalSessions"`
	AvgSessionDuration   float64 `json:"avgSessionDuration"` // seconds
	FeatureAdoptionRate  float64 `json:"featureAdoptionRate"`
	VideoEngagementScore float64 `json:"videoEngagementScore"`
	StruggleSignalCount  int     `json:"struggleSignalCount"`
	// Sample count behind VideoEngagementScore. Distinguishes a true zero
	// average from a user with no completion-rated video events.
	VideoCompletionSamples int `json:"-"`
}

type StruggleSignal struct {
	Feature        string `json:"feature"`
	AttemptCount   int    `json:"attemptCount"`
	Severity       string `json:"severity"`
	LastOccurrence int64  `json:"lastOccurrence"`
}

// UserInsights is the per-user mutable aggregate owned by the insights store.
// RiskLevel is always consistent with RiskScore under the fixed thresholds;
// an empty RiskLevel means no event has been scored yet.
type UserInsights struct {
	UserID          string           `json:"userId"`
	UserSegment     string           `json:"userSegment,omitempty"`
	RiskScore       float64          `json:"riskScore"`
	RiskLevel       string           `json:"riskLevel,omitempty"`
	BehaviorMetrics BehaviorMetrics  `json:"behaviorMetrics"`
	StruggleSignals []StruggleSignal `json:"struggleSignals,omitempty"`
	Recommendations []string         `json:"recommendations,omitempty"`
	LastUpdated     int64            `json:"lastUpdated"`
}

// Clone returns a copy safe to hand to readers while writers keep mutating
// the stored record.
func (u *UserInsights) Clone() *UserInsights {
	if u == nil {
		return nil
	}
	out := *u
	out.StruggleSignals = append([]StruggleSignal(nil), u.StruggleSignals...)
	out.Recommendations = append([]string(nil), u.Recommendations...)
	return &out
}

// DashboardAnalytics is the cross-user aggregate served to dashboards.
type DashboardAnalytics struct {
	TotalEvents        int            `json:"totalEvents"`
	ActiveUsers        int            `json:"activeUsers"`
	StruggleSignals    int            `json:"struggleSignals"`
	VideoEngagements   int            `json:"videoEngagements"`
	EventTypeBreakdown map[string]int `json:"eventTypeBreakdown"`
	PlatformBreakdown  map[string]int `json:"platformBreakdown"`
	Timestamp          int64          `json:"timestamp"`
}
