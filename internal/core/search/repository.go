package search

import (
	"context"
)

// Repository はテナント別ベクトルコレクションに対する検索を表す
// テナントIDは必須の第一級パラメータであり、グローバルな
// デフォルトコレクションは存在しない
type Repository interface {
	// Search はテナントのコレクション内で近傍チャンクを検索する
	// スコア降順で返し、同点は元のチャンク順（Ordinalの小さい方）が先になる
	// 他テナントのコレクションに属する結果はいかなる入力でも返さない
	Search(ctx context.Context, tenantID string, queryVector []float32, limit int, filter Filter) ([]*Result, error)
}
