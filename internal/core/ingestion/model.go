package ingestion

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus はドキュメントの処理状態を表す
type DocumentStatus string

const (
	// StatusPending は作成直後でまだ処理されていない状態
	StatusPending DocumentStatus = "pending"
	// StatusProcessing は分割・Embedding生成・インデックス登録の処理中
	StatusProcessing DocumentStatus = "processing"
	// StatusCompleted は全チャンクのインデックス登録が完了した状態
	StatusCompleted DocumentStatus = "completed"
	// StatusFailed は処理が失敗した状態（失敗理由と未処理チャンクを記録）
	StatusFailed DocumentStatus = "failed"
)

// Document はテナントが所有するマニュアルを表す
type Document struct {
	ID            uuid.UUID
	TenantID      string
	Name          string
	Status        DocumentStatus
	PageCount     int
	ChunkCount    int
	FailureReason *string
	FailedChunks  []int // Embeddingに失敗したチャンクのOrdinal
	UploadedAt    time.Time
	UpdatedAt     time.Time
}

// Chunk はインデックスへ登録するチャンクを表す
type Chunk struct {
	TenantID    string
	DocumentID  uuid.UUID
	Ordinal     int
	Content     string
	Page        int
	Section     string
	StartOffset int
	EndOffset   int
}

// ChunkUpsertResult はチャンク単位のUpsert結果を表す
// 部分的なバッチ失敗をチャンク単位で特定できるようにする
type ChunkUpsertResult struct {
	Ordinal int
	Err     error
}

// IngestResult は取り込み処理の結果を表す
type IngestResult struct {
	DocumentID   uuid.UUID
	Status       DocumentStatus
	ChunkCount   int
	PageCount    int
	FailedChunks []int
	Duration     time.Duration
}

var (
	// ErrTenantRequired はテナントIDが未指定の場合のエラー
	ErrTenantRequired = errors.New("tenant id is required")
	// ErrDocumentNameRequired はドキュメント名が未指定の場合のエラー
	ErrDocumentNameRequired = errors.New("document name is required")
	// ErrEmptyDocument は本文が空のドキュメントに対するエラー
	ErrEmptyDocument = errors.New("document contains no extractable text")
	// ErrDimensionMismatch はベクトル次元がコレクションの設定と一致しない場合のエラー
	ErrDimensionMismatch = errors.New("embedding dimension does not match tenant collection")
	// ErrDocumentNotFound はドキュメントが存在しない場合のエラー
	ErrDocumentNotFound = errors.New("document not found")
)
