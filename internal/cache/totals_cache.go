// Package cache holds the read-through cache for campaign totals.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/model"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "healthaid:totals:"

// loadTimeout bounds a shared load once it no longer follows the caller's context.
const loadTimeout = 10 * time.Second

// kvStore is the subset of the redis client the cache uses.
type kvStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewRedisClient connects to REDIS_ADDR and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// TotalsCache caches CampaignTotals as JSON with a TTL. Concurrent misses for the
// same sponsorship share one load. Redis errors degrade to loading from the database.
//
// An entry written by a reader that loaded just before a ledger commit can outlive the
// commit's invalidation; the TTL bounds how long.
type TotalsCache struct {
	kv    kvStore
	ttl   time.Duration
	group singleflight.Group
}

// NewTotalsCache creates a TotalsCache over a redis client.
func NewTotalsCache(kv kvStore, ttl time.Duration) *TotalsCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &TotalsCache{kv: kv, ttl: ttl}
}

func key(sponsorshipID string) string {
	return keyPrefix + sponsorshipID
}

// Fetch returns cached totals or calls load and stores the result.
func (c *TotalsCache) Fetch(ctx context.Context, sponsorshipID string, load func(ctx context.Context) (*model.CampaignTotals, error)) (*model.CampaignTotals, error) {
	k := key(sponsorshipID)
	raw, err := c.kv.Get(ctx, k).Bytes()
	switch {
	case err == nil:
		var t model.CampaignTotals
		if err := json.Unmarshal(raw, &t); err == nil {
			return &t, nil
		}
		slog.Warn("totals cache entry corrupt", "sponsorship_id", sponsorshipID)
	case !errors.Is(err, redis.Nil):
		slog.Warn("totals cache read failed", "sponsorship_id", sponsorshipID, "error", err)
	}

	v, err, _ := c.group.Do(k, func() (any, error) {
		// 同じキーを待つ他の呼び出し元がいるので、最初の呼び出し元のキャンセルに引きずられないようにする
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		t, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(t); err == nil {
			if err := c.kv.Set(loadCtx, k, raw, c.ttl).Err(); err != nil {
				slog.Warn("totals cache write failed", "sponsorship_id", sponsorshipID, "error", err)
			}
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	t := *v.(*model.CampaignTotals)
	return &t, nil
}

// Invalidate removes the cached totals of a sponsorship.
func (c *TotalsCache) Invalidate(ctx context.Context, sponsorshipID string) error {
	return c.kv.Del(ctx, key(sponsorshipID)).Err()
}
