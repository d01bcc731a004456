package textanalysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/utils"
)

const defaultTimeout = 30 * time.Second

// Client generates short guidance texts through an OpenAI-compatible chat
// completions endpoint. Used only to enrich recommendations; callers treat
// every failure as "no suggestion".
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	log        *logger.Logger
}

func NewClient(baseLog *logger.Logger) *Client {
	clientLog := baseLog.With("client", "TextAnalysisClient")
	apiKey := utils.GetEnv("OPENAI_API_KEY", "", clientLog)
	if apiKey == "" {
		clientLog.Warn("OPENAI_API_KEY not set, text analysis client disabled")
		return nil
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com/v1", clientLog),
		model:      utils.GetEnv("OPENAI_MODEL", "gpt-4o-mini", clientLog),
		apiKey:     apiKey,
		log:        clientLog,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) Analyze(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a customer-success assistant. Answer with a single short, actionable recommendation."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   120,
		Temperature: 0.4,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("invoke text analysis: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("text analysis returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode text analysis response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("text analysis response had no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
