package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/mo"

	"github.com/jinford/manual-assist/internal/core/answer"
)

const (
	answerKeyPrefix = "cache:answer:"
	tagKeyPrefix    = "cache:tag:"
)

// ResponseCache は core/answer.ResponseCache を実装する Redis キャッシュ。
// エントリ本体はTTL付きの文字列キー、タグはエントリキーの集合として保持し、
// タグ単位の無効化をキー列挙なしで行う。
type ResponseCache struct {
	client *redis.Client
}

// NewResponseCache は新しい ResponseCache を返す。
func NewResponseCache(client *redis.Client) *ResponseCache {
	return &ResponseCache{client: client}
}

var _ answer.ResponseCache = (*ResponseCache)(nil)

func answerKey(tenantID, fingerprint string) string {
	return answerKeyPrefix + tenantID + ":" + fingerprint
}

func tagKey(tag string) string {
	return tagKeyPrefix + tag
}

func (c *ResponseCache) Get(ctx context.Context, tenantID, fingerprint string) (mo.Option[*answer.CachedAnswer], error) {
	payload, err := c.client.Get(ctx, answerKey(tenantID, fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return mo.None[*answer.CachedAnswer](), nil
		}
		return mo.None[*answer.CachedAnswer](), fmt.Errorf("failed to get cached answer: %w", err)
	}

	var entry answer.CachedAnswer
	if err := json.Unmarshal(payload, &entry); err != nil {
		// 壊れたエントリはミス扱いにする
		return mo.None[*answer.CachedAnswer](), nil
	}
	return mo.Some(&entry), nil
}

func (c *ResponseCache) Put(ctx context.Context, tenantID, fingerprint string, entry *answer.CachedAnswer, tags []string, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cached answer: %w", err)
	}

	key := answerKey(tenantID, fingerprint)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, payload, ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, tagKey(tag), key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store cached answer: %w", err)
	}
	return nil
}

func (c *ResponseCache) InvalidateByTag(ctx context.Context, tag string) error {
	key := tagKey(tag)
	members, err := c.client.SMembers(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to read tag set: %w", err)
	}

	pipe := c.client.TxPipeline()
	if len(members) > 0 {
		pipe.Del(ctx, members...)
	}
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate tag %q: %w", tag, err)
	}
	return nil
}
