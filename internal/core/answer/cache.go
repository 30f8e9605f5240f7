package answer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/manual-assist/internal/core/conversation"
)

// CachedAnswer はキャッシュに保存する回答ペイロードを表す
type CachedAnswer struct {
	AnswerText string    `json:"answerText"`
	Sources    []Source  `json:"sources"`
	Confidence float64   `json:"confidence"`
	Grounded   bool      `json:"grounded"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ResponseCache は回答キャッシュを表す
// キャッシュ障害は再計算へのフォールバックであり、回答の失敗にはならない
type ResponseCache interface {
	// Get はキーに対応する未期限切れのエントリを返す
	Get(ctx context.Context, tenantID, fingerprint string) (mo.Option[*CachedAnswer], error)

	// Put はエントリをタグ付きで保存する
	// タグはキー列挙なしのグループ無効化に使う
	Put(ctx context.Context, tenantID, fingerprint string, entry *CachedAnswer, tags []string, ttl time.Duration) error

	// InvalidateByTag はタグを共有するすべてのエントリを削除する
	InvalidateByTag(ctx context.Context, tag string) error
}

// TenantTag はテナント単位の無効化タグを返す
func TenantTag(tenantID string) string {
	return "tenant:" + tenantID
}

// DocumentTag はドキュメント単位の無効化タグを返す
func DocumentTag(documentID uuid.UUID) string {
	return "document:" + documentID.String()
}

// NormalizeQuestion は質問文をキャッシュキー用に正規化する
func NormalizeQuestion(question string) string {
	return strings.ToLower(strings.Join(strings.Fields(question), " "))
}

// Fingerprint は正規化済みの質問と直近の会話ターンから
// 決定的なキャッシュキーを導出する
// 同じ質問でも会話履歴が異なれば別のキーになる
func Fingerprint(question string, turns []conversation.Turn) string {
	h := sha256.New()
	h.Write([]byte(NormalizeQuestion(question)))
	for _, turn := range turns {
		fmt.Fprintf(h, "|%d:%s:%s", turn.Index, NormalizeQuestion(turn.Question), NormalizeQuestion(turn.Answer))
	}
	return hex.EncodeToString(h.Sum(nil))
}
