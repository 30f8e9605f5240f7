package search

import (
	"context"
	"fmt"
	"log/slog"
)

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchService は検索のビジネスロジックを提供する
type SearchService struct {
	repo     Repository
	embedder Embedder
	logger   *slog.Logger
}

// SearchServiceOption は SearchService のオプション設定
type SearchServiceOption func(*SearchService)

// WithSearchLogger は SearchService にロガーを設定する
func WithSearchLogger(logger *slog.Logger) SearchServiceOption {
	return func(s *SearchService) {
		s.logger = logger
	}
}

// NewSearchService は新しいSearchServiceを作成する
func NewSearchService(repo Repository, embedder Embedder, opts ...SearchServiceOption) *SearchService {
	svc := &SearchService{
		repo:     repo,
		embedder: embedder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Params は検索パラメータを表す
type Params struct {
	TenantID string
	Query    string
	Limit    int     // 上限（デフォルト: 3）
	MinScore float64 // 類似度スコアの下限（下回る結果は除外）
	Filter   *Filter
}

// Search はクエリに基づいてテナントのコレクションを検索する
func (s *SearchService) Search(ctx context.Context, params Params) ([]*Result, error) {
	// バリデーション
	if params.TenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}
	if params.Query == "" {
		return nil, fmt.Errorf("query is required")
	}

	// クエリをEmbeddingに変換
	queryVector, err := s.embedder.Embed(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return s.SearchByVector(ctx, params, queryVector)
}

// SearchByVector は既にEmbedding済みのクエリベクトルで検索する
func (s *SearchService) SearchByVector(ctx context.Context, params Params, queryVector []float32) ([]*Result, error) {
	if params.TenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	// デフォルトのLimit設定
	limit := params.Limit
	if limit <= 0 {
		limit = 3
	}

	// フィルタの準備
	filter := Filter{}
	if params.Filter != nil {
		filter = *params.Filter
	}

	results, err := s.repo.Search(ctx, params.TenantID, queryVector, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	// 類似度スコアの下限でフィルタ
	filtered := make([]*Result, 0, len(results))
	for _, r := range results {
		if r.Score >= params.MinScore {
			filtered = append(filtered, r)
		}
	}

	s.logger.Debug("search completed",
		"tenantID", params.TenantID,
		"candidates", len(results),
		"aboveThreshold", len(filtered),
	)

	return filtered, nil
}
