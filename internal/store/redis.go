package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// quotaTTL outlives the day a counter belongs to.
const quotaTTL = 48 * time.Hour

type Redis struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedis(client *redis.Client, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = "tradepost:"
	}
	return &Redis{client: client, keyPrefix: keyPrefix}
}

func (r *Redis) stockKey(itemID string) string {
	return fmt.Sprintf("%sstock:%s", r.keyPrefix, itemID)
}

func (r *Redis) quotaKey(actorID, itemID, day string) string {
	return fmt.Sprintf("%squota:%s:%s:%s", r.keyPrefix, day, actorID, itemID)
}

func (r *Redis) PutStock(ctx context.Context, itemID string, value int64) error {
	return r.client.Set(ctx, r.stockKey(itemID), value, 0).Err()
}

func (r *Redis) GetStock(ctx context.Context, itemID string) (int64, bool, error) {
	v, err := r.client.Get(ctx, r.stockKey(itemID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (r *Redis) DeleteStock(ctx context.Context, itemID string) error {
	return r.client.Del(ctx, r.stockKey(itemID)).Err()
}

func (r *Redis) PutQuota(ctx context.Context, actorID, itemID, day string, count int) error {
	return r.client.Set(ctx, r.quotaKey(actorID, itemID, day), count, quotaTTL).Err()
}

func (r *Redis) GetQuota(ctx context.Context, actorID, itemID, day string) (int, bool, error) {
	v, err := r.client.Get(ctx, r.quotaKey(actorID, itemID, day)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
