package services

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/yungbote/journeylens-backend/internal/types"
)

const insightsShardCount = 32

// InsightsService owns the per-user UserInsights aggregates. Updates run
// under the owning shard lock via a mutator so read-modify-write cycles from
// concurrent events never interleave; reads return clones.
type InsightsService interface {
	Get(userID string) *types.UserInsights
	Update(userID string, mutate func(*types.UserInsights))
	UserCount() int
}

type insightsShard struct {
	mu       sync.RWMutex
	insights map[string]*types.UserInsights
}

type insightsService struct {
	shards [insightsShardCount]*insightsShard
}

func NewInsightsService() InsightsService {
	s := &insightsService{}
	for i := range s.shards {
		s.shards[i] = &insightsShard{insights: map[string]*types.UserInsights{}}
	}
	return s
}

func (s *insightsService) shardFor(userID string) *insightsShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return s.shards[h.Sum32()%insightsShardCount]
}

// Get returns a clone of the stored insights, or a fresh default record for
// an unseen user. The default is not stored; only Update creates entries.
func (s *insightsService) Get(userID string) *types.UserInsights {
	if userID == "" {
		return defaultInsights(userID)
	}
	shard := s.shardFor(userID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	if stored, ok := shard.insights[userID]; ok {
		return stored.Clone()
	}
	return defaultInsights(userID)
}

func (s *insightsService) Update(userID string, mutate func(*types.UserInsights)) {
	if userID == "" || mutate == nil {
		return
	}
	shard := s.shardFor(userID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	record, ok := shard.insights[userID]
	if !ok {
		record = defaultInsights(userID)
		shard.insights[userID] = record
	}
	mutate(record)
	record.UserID = userID
	record.LastUpdated = time.Now().UnixMilli()
}

func (s *insightsService) UserCount() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		total += len(shard.insights)
		shard.mu.RUnlock()
	}
	return total
}

func defaultInsights(userID string) *types.UserInsights {
	return &types.UserInsights{
		UserID:          userID,
		StruggleSignals: []types.StruggleSignal{},
		Recommendations: []string{},
	}
}
