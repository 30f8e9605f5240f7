package conversation

import (
	"context"
	"time"
)

// Turn は1回の質問/回答のやり取りを表す
type Turn struct {
	ConversationID string    `json:"conversationID"`
	TenantID       string    `json:"tenantID"`
	Index          int       `json:"index"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	SourceRefs     []string  `json:"sourceRefs,omitempty"` // 参照したドキュメントID
	CreatedAt      time.Time `json:"createdAt"`
}

// Store は短期の会話履歴ストアを表す
// 会話はテナント単位で厳密に分離され、最終活動からの
// 無活動期間が経過するとストレージ層のTTLで読めなくなる
type Store interface {
	// Append はターンを会話履歴の末尾に追加し、有効期限タイマーをリセットする
	Append(ctx context.Context, tenantID, conversationID string, turn Turn) error

	// GetRecent は直近のターンを古い順で返す（最大maxTurns件）
	// 会話が存在しない・期限切れ・テナント不一致の場合は空列を返す
	GetRecent(ctx context.Context, tenantID, conversationID string, maxTurns int) ([]Turn, error)
}
