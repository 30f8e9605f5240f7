package ingestion

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Repository はドキュメントとテナント別ベクトルコレクションの永続化を表す
// すべての操作はテナントIDを第一級パラメータとして受け取り、
// テナント境界を越えるアクセスは構造的に存在しない
type Repository interface {
	// EnsureCollection はテナントのコレクションを初回書き込み時に作成する
	// 既存コレクションの次元がdimensionと異なる場合はエラーを返す
	EnsureCollection(ctx context.Context, tenantID string, dimension int) error

	// CollectionDimension はテナントのコレクションの次元を返す
	CollectionDimension(ctx context.Context, tenantID string) (mo.Option[int], error)

	// CreateDocument は新しいドキュメントを登録する
	CreateDocument(ctx context.Context, doc *Document) error

	// UpdateDocumentStatus はドキュメントの処理状態を更新する
	UpdateDocumentStatus(ctx context.Context, tenantID string, documentID uuid.UUID, status DocumentStatus, failureReason *string, failedChunks []int) error

	// GetDocumentByName はテナント内で名前が一致するドキュメントを返す
	GetDocumentByName(ctx context.Context, tenantID, name string) (mo.Option[*Document], error)

	// ListDocuments はテナントのドキュメント一覧を返す
	ListDocuments(ctx context.Context, tenantID string) ([]*Document, error)

	// UpsertChunks はチャンクとベクトルをテナントのコレクションへ登録する
	// チャンク単位の結果を返し、部分的な失敗を特定できるようにする
	// ベクトル次元の不一致はストレージに到達する前に拒否する
	UpsertChunks(ctx context.Context, tenantID string, chunks []*Chunk, vectors [][]float32) ([]ChunkUpsertResult, error)

	// DeleteDocument はドキュメントとそのチャンク・ベクトルを削除する
	DeleteDocument(ctx context.Context, tenantID string, documentID uuid.UUID) error
}

// Embedder はテキストをベクトルに変換するインターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)

	// BatchEmbed は複数テキストのEmbeddingを入力順を保って生成する
	// プロバイダのバッチ上限を超える入力はクライアント側で分割する
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)

	// MaxBatchSize は1回のAPI呼び出しで送信できる最大件数を返す
	MaxBatchSize() int

	// Dimension はベクトルの次元数を返す
	Dimension() int

	// ModelName はモデル名を返す
	ModelName() string
}

// CacheInvalidator はドキュメント変更時の応答キャッシュ無効化を表す
type CacheInvalidator interface {
	// InvalidateByTag はタグを共有するすべてのキャッシュエントリを削除する
	InvalidateByTag(ctx context.Context, tag string) error
}
