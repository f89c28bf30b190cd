package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const statsVersionKey = "manifest:stats:version"

// StatsCache caches day-stat aggregates in Redis. A version counter is
// folded into every key; bumping it on mutation invalidates all cached
// days at once without scanning keys.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatsCache instantiates the cache helper.
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

// FetchDayStats loads a cached day aggregate or populates it via the loader.
func (c *StatsCache) FetchDayStats(ctx context.Context, day time.Time, loader func(context.Context) (*DayStatsResult, error)) (*DayStatsResult, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}

	key, err := c.buildKey(ctx, day)
	if err != nil {
		return nil, err
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var stats DayStatsResult
		if err := json.Unmarshal(payload, &stats); err == nil {
			return &stats, nil
		}
		// Unparseable entries fall through to the loader and get rewritten.
	} else if err != redis.Nil {
		return nil, fmt.Errorf("manifest: stats cache get: %w", err)
	}

	stats, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return nil, fmt.Errorf("manifest: stats cache set: %w", err)
	}
	return stats, nil
}

// Bump invalidates every cached day by advancing the version counter.
func (c *StatsCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, statsVersionKey).Err()
}

func (c *StatsCache) buildKey(ctx context.Context, day time.Time) (string, error) {
	ver, err := c.client.Get(ctx, statsVersionKey).Int64()
	if err == redis.Nil {
		ver = 1
		if err := c.client.Set(ctx, statsVersionKey, ver, 0).Err(); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("manifest:stats:%s:%d", day.Format("20060102"), ver), nil
}
