package search

import (
	"github.com/google/uuid"
)

// Result はテナントコレクションに対するベクトル検索の結果を表す
type Result struct {
	ChunkID      uuid.UUID `json:"chunkID"`
	DocumentID   uuid.UUID `json:"documentID"`
	DocumentName string    `json:"documentName"`
	Ordinal      int       `json:"ordinal"`
	Content      string    `json:"content"`
	Page         int       `json:"page"`
	Section      string    `json:"section"`
	Score        float64   `json:"score"` // コサイン類似度（1.0が最大）
}

// Filter は検索時の任意フィルタを表す
type Filter struct {
	DocumentID *uuid.UUID
}
