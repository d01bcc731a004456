package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/types"
	"github.com/yungbote/journeylens-backend/internal/utils"
)

// EventBus publishes processed events to a Redis stream for downstream
// consumers (dashboards, alerting). Publishing is best-effort; the pipeline
// logs failures and moves on.
type EventBus struct {
	client    *goredis.Client
	streamKey string
	maxLen    int64
	log       *logger.Logger
}

func NewEventBus(client *goredis.Client, baseLog *logger.Logger) *EventBus {
	busLog := baseLog.With("client", "EventBus")
	return &EventBus{
		client:    client,
		streamKey: utils.GetEnv("EVENT_STREAM_KEY", "journeylens:events", busLog),
		maxLen:    int64(utils.GetEnvAsInt("EVENT_STREAM_MAXLEN", 10000, busLog)),
		log:       busLog,
	}
}

func (b *EventBus) Publish(ctx context.Context, event *types.Event) error {
	if event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for stream: %w", err)
	}

	err = b.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: b.streamKey,
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event_type": event.EventType,
			"user_id":    event.UserID,
			"payload":    string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish event to stream: %w", err)
	}
	return nil
}
