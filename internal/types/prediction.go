package types

import "time"

// PredictionTTL is how long a cached model prediction stays fresh.
const PredictionTTL = 30 * time.Minute

// PredictionResult is the outcome of one exit-risk model invocation.
// A non-empty ErrorMessage marks a fallback result produced when the model
// was unavailable; the rule-based score in the insights store is left alone.
type PredictionResult struct {
	UserID          string    `json:"userId"`
	RiskScore       float64   `json:"riskScore"`
	RiskLevel       string    `json:"riskLevel"`
	Recommendations []string  `json:"recommendations"`
	Timestamp       time.Time `json:"timestamp"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
}

func (p *PredictionResult) IsExpired() bool {
	return p.expiredAt(time.Now())
}

func (p *PredictionResult) expiredAt(now time.Time) bool {
	return p.Timestamp.Add(PredictionTTL).Before(now)
}

func (p *PredictionResult) HasError() bool {
	return p.ErrorMessage != ""
}

// ModelHealthStatus reports whether the exit-risk endpoint answers a probe.
type ModelHealthStatus struct {
	Healthy        bool      `json:"healthy"`
	Message        string    `json:"message"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	CheckTime      time.Time `json:"checkTime"`
}
