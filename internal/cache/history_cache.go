// Package cache keeps recently read thread message logs in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"docchat/internal/model"
)

const defaultHistoryTTL = 10 * time.Minute

// HistoryCache is a read-through copy of thread logs. The thread store stays
// the source of truth; callers invalidate after every write.
type HistoryCache struct {
	client *redisv9.Client
	ttl    time.Duration
	prefix string
}

func NewHistoryCache(client *redisv9.Client, ttl time.Duration) *HistoryCache {
	if ttl <= 0 {
		ttl = defaultHistoryTTL
	}
	return &HistoryCache{client: client, ttl: ttl, prefix: "docchat:thread:messages:"}
}

func (c *HistoryCache) GetMessages(ctx context.Context, threadID string) ([]model.Message, bool, error) {
	raw, err := c.client.Get(ctx, c.key(threadID)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get messages failed: %w", err)
	}

	var messages []model.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached messages failed: %w", err)
	}
	return messages, true, nil
}

func (c *HistoryCache) SetMessages(ctx context.Context, threadID string, messages []model.Message) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal messages failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(threadID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set messages failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) Invalidate(ctx context.Context, threadIDs ...string) error {
	if len(threadIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(threadIDs))
	for _, id := range threadIDs {
		keys = append(keys, c.key(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete messages failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) key(threadID string) string {
	return c.prefix + threadID
}
