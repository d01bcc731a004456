package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/types"
)

const predictionKeyPrefix = "journeylens:prediction:"

// PredictionCache stores model predictions in Redis so replicas share one
// prediction per user per TTL window. Read and write errors degrade to cache
// misses.
type PredictionCache struct {
	client *goredis.Client
	log    *logger.Logger
}

func NewPredictionCache(client *goredis.Client, baseLog *logger.Logger) *PredictionCache {
	return &PredictionCache{
		client: client,
		log:    baseLog.With("client", "PredictionCache"),
	}
}

func (c *PredictionCache) Get(userID string) (*types.PredictionResult, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := c.client.Get(ctx, predictionKeyPrefix+userID).Result()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("Prediction cache read failed", "user_id", userID, "error", err)
		}
		return nil, false
	}

	var result types.PredictionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.log.Warn("Prediction cache entry malformed", "user_id", userID, "error", err)
		return nil, false
	}
	return &result, true
}

func (c *PredictionCache) Set(result *types.PredictionResult) {
	if result == nil || result.UserID == "" {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		c.log.Warn("Prediction cache marshal failed", "user_id", result.UserID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.Set(ctx, predictionKeyPrefix+result.UserID, payload, types.PredictionTTL).Err(); err != nil {
		c.log.Warn("Prediction cache write failed", "user_id", result.UserID, "error", err)
	}
}
