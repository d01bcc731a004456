package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/utils"
)

// NewClient connects to Redis from environment configuration and verifies
// the connection with a ping.
func NewClient(log *logger.Logger) (*goredis.Client, error) {
	host := utils.GetEnv("REDIS_HOST", "localhost", log)
	port := utils.GetEnv("REDIS_PORT", "6379", log)
	password := utils.GetEnv("REDIS_PASSWORD", "", log)
	db := utils.GetEnvAsInt("REDIS_DB", 0, log)

	client := goredis.NewClient(&goredis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
