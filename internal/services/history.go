package services

import (
	"hash/fnv"
	"sync"

	"github.com/yungbote/journeylens-backend/internal/types"
)

const (
	historyShardCount = 32
	historyPerUserCap = 1000
)

// HistoryService is the bounded in-memory event history. It keeps the most
// recent events per user and is the authoritative source for enrichment,
// struggle detection, aggregation and feature extraction. Readers always get
// defensive copies.
type HistoryService interface {
	Append(event *types.Event)
	Events(userID string) []*types.Event
	AllEvents() []*types.Event
	UserCount() int
}

type historyShard struct {
	mu     sync.RWMutex
	events map[string][]*types.Event
}

type historyService struct {
	shards [historyShardCount]*historyShard
	cap    int
}

func NewHistoryService() HistoryService {
	s := &historyService{cap: historyPerUserCap}
	for i := range s.shards {
		s.shards[i] = &historyShard{events: map[string][]*types.Event{}}
	}
	return s
}

func (s *historyService) shardFor(userID string) *historyShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return s.shards[h.Sum32()%historyShardCount]
}

func (s *historyService) Append(event *types.Event) {
	if event == nil || event.UserID == "" {
		return
	}
	shard := s.shardFor(event.UserID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	list := append(shard.events[event.UserID], event.Clone())
	if len(list) > s.cap {
		list = list[len(list)-s.cap:]
	}
	shard.events[event.UserID] = list
}

func (s *historyService) Events(userID string) []*types.Event {
	if userID == "" {
		return nil
	}
	shard := s.shardFor(userID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	stored := shard.events[userID]
	out := make([]*types.Event, 0, len(stored))
	for _, ev := range stored {
		out = append(out, ev.Clone())
	}
	return out
}

func (s *historyService) AllEvents() []*types.Event {
	var out []*types.Event
	for _, shard := range s.shards {
		shard.mu.RLock()
		for _, list := range shard.events {
			for _, ev := range list {
				out = append(out, ev.Clone())
			}
		}
		shard.mu.RUnlock()
	}
	return out
}

func (s *historyService) UserCount() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		total += len(shard.events)
		shard.mu.RUnlock()
	}
	return total
}
