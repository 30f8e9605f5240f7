package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/manual-assist/internal/core/answer"
	"github.com/jinford/manual-assist/internal/core/splitter"
)

// IngestParams は取り込みの入力パラメータ
type IngestParams struct {
	TenantID string
	Name     string
	Text     string
}

// IngestService はマニュアル取り込みのユースケースを提供する
// 分割・Embedding生成・インデックス登録を経て、結果に応じて
// ドキュメントの状態を遷移させる
type IngestService struct {
	repo        Repository
	embedder    Embedder
	pipeline    *EmbedPipeline
	splitter    *splitter.Splitter
	invalidator CacheInvalidator
	logger      *slog.Logger
	now         func() time.Time
}

// IngestServiceOption は IngestService のオプション設定
type IngestServiceOption func(*IngestService)

// WithIngestLogger は IngestService にロガーを設定する
func WithIngestLogger(logger *slog.Logger) IngestServiceOption {
	return func(s *IngestService) {
		s.logger = logger
	}
}

// WithIngestClock は現在時刻の取得関数を差し替える（テスト用）
func WithIngestClock(now func() time.Time) IngestServiceOption {
	return func(s *IngestService) {
		s.now = now
	}
}

// NewIngestService は新しいIngestServiceを作成する
func NewIngestService(
	repo Repository,
	embedder Embedder,
	pipeline *EmbedPipeline,
	split *splitter.Splitter,
	invalidator CacheInvalidator,
	opts ...IngestServiceOption,
) *IngestService {
	svc := &IngestService{
		repo:        repo,
		embedder:    embedder,
		pipeline:    pipeline,
		splitter:    split,
		invalidator: invalidator,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Ingest はマニュアル本文を分割・ベクトル化してテナントのコレクションへ登録する
// 同名ドキュメントが既に存在する場合は置き換え、関連するキャッシュを無効化する
func (s *IngestService) Ingest(ctx context.Context, params IngestParams) (*IngestResult, error) {
	startedAt := s.now()

	if params.TenantID == "" {
		return nil, ErrTenantRequired
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, ErrDocumentNameRequired
	}

	chunks := s.splitter.Split(params.Text)
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}
	pageCount := splitter.PageCount(params.Text)

	// コレクションは初回書き込み時に作成し、次元の不一致は登録前に拒否する
	if err := s.repo.EnsureCollection(ctx, params.TenantID, s.embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("failed to ensure tenant collection: %w", err)
	}

	// 同名ドキュメントは再取り込みとして置き換える
	if err := s.replaceExisting(ctx, params.TenantID, params.Name); err != nil {
		return nil, err
	}

	doc := &Document{
		ID:         uuid.New(),
		TenantID:   params.TenantID,
		Name:       params.Name,
		Status:     StatusPending,
		PageCount:  pageCount,
		ChunkCount: len(chunks),
		UploadedAt: s.now(),
		UpdatedAt:  s.now(),
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	if err := s.repo.UpdateDocumentStatus(ctx, params.TenantID, doc.ID, StatusProcessing, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to mark document as processing: %w", err)
	}

	s.logger.Info("ingestion started",
		"tenantID", params.TenantID,
		"documentID", doc.ID,
		"name", params.Name,
		"chunks", len(chunks),
		"pages", pageCount,
	)

	failedOrdinals, err := s.indexChunks(ctx, params.TenantID, doc.ID, chunks)
	if err != nil {
		reason := err.Error()
		if updateErr := s.repo.UpdateDocumentStatus(ctx, params.TenantID, doc.ID, StatusFailed, &reason, nil); updateErr != nil {
			s.logger.Error("failed to mark document as failed",
				"tenantID", params.TenantID,
				"documentID", doc.ID,
				"error", updateErr,
			)
		}
		return nil, err
	}

	status := StatusCompleted
	var failureReason *string
	if len(failedOrdinals) > 0 {
		status = StatusFailed
		reason := fmt.Sprintf("%d of %d chunks failed to index", len(failedOrdinals), len(chunks))
		failureReason = &reason
	}
	if err := s.repo.UpdateDocumentStatus(ctx, params.TenantID, doc.ID, status, failureReason, failedOrdinals); err != nil {
		return nil, fmt.Errorf("failed to finalize document status: %w", err)
	}

	// 新しい内容はテナントのキャッシュ済み回答を陳腐化させる
	if err := s.invalidator.InvalidateByTag(ctx, answer.TenantTag(params.TenantID)); err != nil {
		s.logger.Warn("failed to invalidate tenant cache",
			"tenantID", params.TenantID,
			"error", err,
		)
	}

	result := &IngestResult{
		DocumentID:   doc.ID,
		Status:       status,
		ChunkCount:   len(chunks),
		PageCount:    pageCount,
		FailedChunks: failedOrdinals,
		Duration:     s.now().Sub(startedAt),
	}

	s.logger.Info("ingestion finished",
		"tenantID", params.TenantID,
		"documentID", doc.ID,
		"status", status,
		"failedChunks", len(failedOrdinals),
		"duration", result.Duration,
	)

	return result, nil
}

// InvalidateDocument はドキュメントを削除し、その内容に依存する
// キャッシュ済み回答を無効化する
func (s *IngestService) InvalidateDocument(ctx context.Context, tenantID, name string) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	if strings.TrimSpace(name) == "" {
		return ErrDocumentNameRequired
	}

	existing, err := s.repo.GetDocumentByName(ctx, tenantID, name)
	if err != nil {
		return fmt.Errorf("failed to look up document: %w", err)
	}
	doc, ok := existing.Get()
	if !ok {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
	}

	if err := s.repo.DeleteDocument(ctx, tenantID, doc.ID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if err := s.invalidator.InvalidateByTag(ctx, answer.DocumentTag(doc.ID)); err != nil {
		s.logger.Warn("failed to invalidate document cache",
			"tenantID", tenantID,
			"documentID", doc.ID,
			"error", err,
		)
	}

	s.logger.Info("document invalidated",
		"tenantID", tenantID,
		"documentID", doc.ID,
		"name", name,
	)
	return nil
}

// ListDocuments はテナントのドキュメント一覧を返す
func (s *IngestService) ListDocuments(ctx context.Context, tenantID string) ([]*Document, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	return s.repo.ListDocuments(ctx, tenantID)
}

// replaceExisting は同名ドキュメントが存在すれば削除し、
// その内容に依存するキャッシュを無効化する
func (s *IngestService) replaceExisting(ctx context.Context, tenantID, name string) error {
	existing, err := s.repo.GetDocumentByName(ctx, tenantID, name)
	if err != nil {
		return fmt.Errorf("failed to look up existing document: %w", err)
	}
	doc, ok := existing.Get()
	if !ok {
		return nil
	}

	s.logger.Info("replacing existing document",
		"tenantID", tenantID,
		"documentID", doc.ID,
		"name", name,
	)
	if err := s.repo.DeleteDocument(ctx, tenantID, doc.ID); err != nil {
		return fmt.Errorf("failed to delete existing document: %w", err)
	}
	if err := s.invalidator.InvalidateByTag(ctx, answer.DocumentTag(doc.ID)); err != nil {
		s.logger.Warn("failed to invalidate replaced document cache",
			"tenantID", tenantID,
			"documentID", doc.ID,
			"error", err,
		)
	}
	return nil
}

// indexChunks はEmbeddingを生成し、成功分をインデックスへ登録する
// 失敗したチャンクのOrdinal一覧を返す
func (s *IngestService) indexChunks(ctx context.Context, tenantID string, documentID uuid.UUID, chunks []*splitter.Chunk) ([]int, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, failedEmbed, err := s.pipeline.Run(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding pipeline aborted: %w", err)
	}

	failedSet := make(map[int]bool, len(failedEmbed))
	for _, ordinal := range failedEmbed {
		failedSet[ordinal] = true
	}

	upsertChunks := make([]*Chunk, 0, len(chunks))
	upsertVectors := make([][]float32, 0, len(chunks))
	for i, chunk := range chunks {
		if failedSet[i] {
			continue
		}
		upsertChunks = append(upsertChunks, &Chunk{
			TenantID:    tenantID,
			DocumentID:  documentID,
			Ordinal:     chunk.Ordinal,
			Content:     chunk.Text,
			Page:        chunk.Page,
			Section:     chunk.Section,
			StartOffset: chunk.StartOffset,
			EndOffset:   chunk.EndOffset,
		})
		upsertVectors = append(upsertVectors, vectors[i])
	}

	failedOrdinals := append([]int(nil), failedEmbed...)
	if len(upsertChunks) > 0 {
		results, err := s.repo.UpsertChunks(ctx, tenantID, upsertChunks, upsertVectors)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert chunks: %w", err)
		}
		for _, result := range results {
			if result.Err != nil {
				s.logger.Warn("chunk upsert failed",
					"tenantID", tenantID,
					"documentID", documentID,
					"ordinal", result.Ordinal,
					"error", result.Err,
				)
				failedOrdinals = append(failedOrdinals, result.Ordinal)
			}
		}
	}

	sort.Ints(failedOrdinals)
	return failedOrdinals, nil
}
