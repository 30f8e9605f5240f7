package ingestion

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// embedBatch はEmbedding生成の1バッチ分の入力範囲を表す
type embedBatch struct {
	start int
	texts []string
}

// EmbedPipeline はチャンク本文のEmbeddingをバッチ並列で生成する
// バッチ単位の失敗は他のバッチを巻き込まず、失敗したチャンクの
// インデックスとして呼び出し元へ返す
type EmbedPipeline struct {
	embedder    Embedder
	concurrency int
	batchSize   int
	logger      *slog.Logger
}

// NewEmbedPipeline は新しいEmbedPipelineを作成する
// batchSizeはプロバイダの上限を超えないよう丸められる
func NewEmbedPipeline(embedder Embedder, concurrency, batchSize int, logger *slog.Logger) *EmbedPipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	if batchSize < 1 || batchSize > embedder.MaxBatchSize() {
		batchSize = embedder.MaxBatchSize()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbedPipeline{
		embedder:    embedder,
		concurrency: concurrency,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Run は全テキストのEmbeddingを入力順で返す
// 失敗したバッチに属する位置はnilのままとなり、そのインデックス一覧を
// 昇順で返す。コンテキストのキャンセルのみがエラーになる
func (p *EmbedPipeline) Run(ctx context.Context, texts []string) ([][]float32, []int, error) {
	if len(texts) == 0 {
		return nil, nil, nil
	}

	vectors := make([][]float32, len(texts))

	var mu sync.Mutex
	var failed []int

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, batch := range p.splitBatches(texts) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			embedded, err := p.embedder.BatchEmbed(ctx, batch.texts)
			if err != nil {
				// バッチの失敗はチャンク単位の失敗として記録し、
				// 他のバッチの処理は継続する
				p.logger.Warn("embedding batch failed",
					"start", batch.start,
					"size", len(batch.texts),
					"error", err,
				)
				mu.Lock()
				for i := range batch.texts {
					failed = append(failed, batch.start+i)
				}
				mu.Unlock()
				return nil
			}

			for i, vec := range embedded {
				vectors[batch.start+i] = vec
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Ints(failed)
	return vectors, failed, nil
}

// splitBatches はテキスト列をバッチ列に分割する
func (p *EmbedPipeline) splitBatches(texts []string) []embedBatch {
	batches := make([]embedBatch, 0, (len(texts)+p.batchSize-1)/p.batchSize)
	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, embedBatch{start: start, texts: texts[start:end]})
	}
	return batches
}
