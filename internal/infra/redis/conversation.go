package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jinford/manual-assist/internal/core/conversation"
)

const (
	conversationKeyPrefix = "conversation:"

	// maxRetainedTurns は1会話あたりに保持するターン数の上限
	maxRetainedTurns = 100

	// DefaultConversationTTL は会話履歴のデフォルト保持期間
	DefaultConversationTTL = 24 * time.Hour
)

// ConversationStore は core/conversation.Store を実装する Redis ストア。
// 会話はテナントと会話IDをキーに持つリストで、追記のたびにTTLがリセットされる。
type ConversationStore struct {
	client *redis.Client
	ttl    time.Duration
}

// ConversationStoreOption は ConversationStore のオプション設定
type ConversationStoreOption func(*ConversationStore)

// WithConversationTTL は保持期間を上書きする
func WithConversationTTL(ttl time.Duration) ConversationStoreOption {
	return func(s *ConversationStore) {
		s.ttl = ttl
	}
}

// NewConversationStore は新しい ConversationStore を返す。
func NewConversationStore(client *redis.Client, opts ...ConversationStoreOption) *ConversationStore {
	store := &ConversationStore{
		client: client,
		ttl:    DefaultConversationTTL,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

var _ conversation.Store = (*ConversationStore)(nil)

func conversationKey(tenantID, conversationID string) string {
	return conversationKeyPrefix + tenantID + ":" + conversationID
}

func (s *ConversationStore) Append(ctx context.Context, tenantID, conversationID string, turn conversation.Turn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	key := conversationKey(tenantID, conversationID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, -maxRetainedTurns, -1)
	// 追記のたびに保持期間を延長する
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

func (s *ConversationStore) GetRecent(ctx context.Context, tenantID, conversationID string, maxTurns int) ([]conversation.Turn, error) {
	if maxTurns <= 0 {
		return nil, nil
	}

	key := conversationKey(tenantID, conversationID)
	payloads, err := s.client.LRange(ctx, key, int64(-maxTurns), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}

	turns := make([]conversation.Turn, 0, len(payloads))
	for _, payload := range payloads {
		var turn conversation.Turn
		if err := json.Unmarshal([]byte(payload), &turn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}
