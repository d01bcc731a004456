package riskmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/types"
	"github.com/yungbote/journeylens-backend/internal/utils"
)

const defaultTimeout = 30 * time.Second

// Client invokes the hosted exit-risk model over HTTP. The model returns a
// probability in [0,1]; the client converts it to a 0-100 score with a level
// and rule-ladder recommendations.
type Client struct {
	httpClient *http.Client
	endpoint   string
	log        *logger.Logger
}

func NewClient(baseLog *logger.Logger) *Client {
	clientLog := baseLog.With("client", "RiskModelClient")
	endpoint := utils.GetEnv("RISK_MODEL_URL", "", clientLog)
	if endpoint == "" {
		clientLog.Warn("RISK_MODEL_URL not set, risk model client disabled")
		return nil
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		endpoint:   endpoint,
		log:        clientLog,
	}
}

type predictRequest struct {
	Instances [][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions []float64 `json:"predictions"`
	Score       *float64  `json:"score"`
}

func (c *Client) Predict(ctx context.Context, features *types.ExitRiskFeatures) (*types.PredictionResult, error) {
	body, err := json.Marshal(predictRequest{Instances: [][]float64{features.ToFeatureArray()}})
	if err != nil {
		return nil, fmt.Errorf("marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoke risk model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("risk model returned status %d", resp.StatusCode)
	}

	var parsed predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode risk model response: %w", err)
	}

	var raw float64
	switch {
	case len(parsed.Predictions) > 0:
		raw = parsed.Predictions[0]
	case parsed.Score != nil:
		raw = *parsed.Score
	default:
		return nil, fmt.Errorf("risk model response had no prediction")
	}

	score := raw * 100.0
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	level := categorizeRiskLevel(score)

	c.log.Info("Exit risk prediction completed",
		"user_id", features.UserID, "risk_score", score, "risk_level", level)

	return &types.PredictionResult{
		UserID:          features.UserID,
		RiskScore:       score,
		RiskLevel:       level,
		Recommendations: recommendationsFor(score, level),
		Timestamp:       time.Now(),
	}, nil
}

// Health probes the model with a synthetic feature vector so the check
// exercises the full prediction path, not just connectivity.
func (c *Client) Health(ctx context.Context) *types.ModelHealthStatus {
	started := time.Now()
	if _, err := c.Predict(ctx, healthCheckFeatures()); err != nil {
		c.log.Error("Model health check failed", "error", err)
		return &types.ModelHealthStatus{
			Healthy:        false,
			Message:        err.Error(),
			ResponseTimeMs: -1,
			CheckTime:      time.Now(),
		}
	}
	return &types.ModelHealthStatus{
		Healthy:        true,
		Message:        "Model is healthy",
		ResponseTimeMs: time.Since(started).Milliseconds(),
		CheckTime:      time.Now(),
	}
}

func healthCheckFeatures() *types.ExitRiskFeatures {
	return &types.ExitRiskFeatures{
		UserID:                        "health_check_user",
		StruggleSignalCount7d:         2,
		VideoEngagementScore:          65.0,
		FeatureCompletionRate:         80.0,
		SessionFrequencyTrend:         0.5,
		SupportInteractionCount:       1,
		DaysSinceLastLogin:            2,
		ApplicationProgressPercentage: 75.0,
		AvgSessionDuration:            300.0,
		TotalSessions:                 5,
		ErrorRate:                     10.0,
		HelpSeekingBehavior:           15.0,
		ContentEngagementScore:        70.0,
		PlatformUsagePattern:          types.PlatformPatternMixed,
	}
}

func categorizeRiskLevel(score float64) string {
	switch {
	case score >= 60:
		return types.RiskLevelHigh
	case score >= 30:
		return types.RiskLevelMedium
	default:
		return types.RiskLevelLow
	}
}

func recommendationsFor(score float64, level string) []string {
	var out []string
	switch level {
	case types.RiskLevelHigh:
		out = append(out,
			"Immediate intervention required - high exit risk detected",
			"Trigger priority support outreach within 2 hours",
			"Assign dedicated customer success manager",
			"Provide personalized assistance and guidance",
		)
	case types.RiskLevelMedium:
		out = append(out,
			"Moderate exit risk - proactive engagement recommended",
			"Send personalized check-in email within 24 hours",
			"Offer additional resources and tutorials",
			"Monitor closely for behavior changes",
		)
	default:
		out = append(out,
			"Low exit risk - maintain current engagement",
			"Continue standard user journey flow",
			"Provide value-added content and features",
		)
	}

	if score > 80 {
		out = append(out, "Critical: Consider emergency intervention protocols")
	} else if score > 70 {
		out = append(out, "Urgent: Schedule immediate follow-up call")
	}
	return out
}
