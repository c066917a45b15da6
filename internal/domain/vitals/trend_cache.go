package vitals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TrendCache keeps the latest trend summary per patient. Only the newest
// value is retained; entries expire with the trend window.
type TrendCache interface {
	Put(ctx context.Context, summary TrendSummary) error
	Get(ctx context.Context, patientID uuid.UUID) (*TrendSummary, error)
}

type redisTrendCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTrendCache(client *redis.Client) TrendCache {
	return &redisTrendCache{client: client, ttl: TrendWindowAge}
}

func trendKey(patientID uuid.UUID) string {
	return fmt.Sprintf("trend:%s", patientID)
}

func (c *redisTrendCache) Put(ctx context.Context, summary TrendSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, trendKey(summary.PatientID), data, c.ttl).Err()
}

func (c *redisTrendCache) Get(ctx context.Context, patientID uuid.UUID) (*TrendSummary, error) {
	data, err := c.client.Get(ctx, trendKey(patientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var summary TrendSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// memTrendCache backs tests and degraded deployments without Redis.
type memTrendCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]TrendSummary
}

func NewMemTrendCache() TrendCache {
	return &memTrendCache{entries: make(map[uuid.UUID]TrendSummary)}
}

func (c *memTrendCache) Put(ctx context.Context, summary TrendSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[summary.PatientID] = summary
	return nil
}

func (c *memTrendCache) Get(ctx context.Context, patientID uuid.UUID) (*TrendSummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.entries[patientID]; ok {
		return &s, nil
	}
	return nil, nil
}
