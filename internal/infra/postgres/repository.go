package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"

	"github.com/jinford/manual-assist/internal/core/ingestion"
)

// psql はPostgreSQL向けのプレースホルダ形式を使うクエリビルダ
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repository は core/ingestion.Repository を実装する PostgreSQL リポジトリ。
// すべてのクエリはtenant_idで絞り込み、テナント境界を越える行に到達しない。
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository は新しい Repository を返す。
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ ingestion.Repository = (*Repository)(nil)

func (r *Repository) EnsureCollection(ctx context.Context, tenantID string, dimension int) error {
	sql, args, err := psql.Insert("tenant_collections").
		Columns("tenant_id", "dimension", "created_at").
		Values(tenantID, dimension, time.Now()).
		Suffix("ON CONFLICT (tenant_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build collection insert: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}

	// 既存コレクションの場合は登録済みの次元と一致することを確認する
	existing, err := r.CollectionDimension(ctx, tenantID)
	if err != nil {
		return err
	}
	if dim, ok := existing.Get(); ok && dim != dimension {
		return fmt.Errorf("%w: collection has dimension %d, got %d", ingestion.ErrDimensionMismatch, dim, dimension)
	}
	return nil
}

func (r *Repository) CollectionDimension(ctx context.Context, tenantID string) (mo.Option[int], error) {
	sql, args, err := psql.Select("dimension").
		From("tenant_collections").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		ToSql()
	if err != nil {
		return mo.None[int](), fmt.Errorf("failed to build dimension query: %w", err)
	}

	var dimension int
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&dimension); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[int](), nil
		}
		return mo.None[int](), fmt.Errorf("failed to get collection dimension: %w", err)
	}
	return mo.Some(dimension), nil
}

func (r *Repository) CreateDocument(ctx context.Context, doc *ingestion.Document) error {
	sql, args, err := psql.Insert("documents").
		Columns("id", "tenant_id", "name", "status", "page_count", "chunk_count", "failure_reason", "failed_chunks", "uploaded_at", "updated_at").
		Values(doc.ID, doc.TenantID, doc.Name, string(doc.Status), doc.PageCount, doc.ChunkCount, doc.FailureReason, doc.FailedChunks, doc.UploadedAt, doc.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build document insert: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *Repository) UpdateDocumentStatus(ctx context.Context, tenantID string, documentID uuid.UUID, status ingestion.DocumentStatus, failureReason *string, failedChunks []int) error {
	sql, args, err := psql.Update("documents").
		Set("status", string(status)).
		Set("failure_reason", failureReason).
		Set("failed_chunks", failedChunks).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"tenant_id": tenantID, "id": documentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build status update: %w", err)
	}

	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ingestion.ErrDocumentNotFound, documentID)
	}
	return nil
}

func (r *Repository) GetDocumentByName(ctx context.Context, tenantID, name string) (mo.Option[*ingestion.Document], error) {
	sql, args, err := documentSelect().
		Where(squirrel.Eq{"tenant_id": tenantID, "name": name}).
		ToSql()
	if err != nil {
		return mo.None[*ingestion.Document](), fmt.Errorf("failed to build document query: %w", err)
	}

	doc, err := scanDocument(r.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*ingestion.Document](), nil
		}
		return mo.None[*ingestion.Document](), fmt.Errorf("failed to get document: %w", err)
	}
	return mo.Some(doc), nil
}

func (r *Repository) ListDocuments(ctx context.Context, tenantID string) ([]*ingestion.Document, error) {
	sql, args, err := documentSelect().
		Where(squirrel.Eq{"tenant_id": tenantID}).
		OrderBy("uploaded_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build document list query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*ingestion.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

func (r *Repository) UpsertChunks(ctx context.Context, tenantID string, chunks []*ingestion.Chunk, vectors [][]float32) ([]ingestion.ChunkUpsertResult, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunk count %d does not match vector count %d", len(chunks), len(vectors))
	}

	// 次元の不一致はストレージに書き込む前に拒否する
	dimension, err := r.CollectionDimension(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	expectedDim, ok := dimension.Get()
	if !ok {
		return nil, fmt.Errorf("tenant collection does not exist: %s", tenantID)
	}

	results := make([]ingestion.ChunkUpsertResult, 0, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != expectedDim {
			results = append(results, ingestion.ChunkUpsertResult{
				Ordinal: chunk.Ordinal,
				Err:     fmt.Errorf("%w: expected %d, got %d", ingestion.ErrDimensionMismatch, expectedDim, len(vectors[i])),
			})
			continue
		}

		results = append(results, ingestion.ChunkUpsertResult{
			Ordinal: chunk.Ordinal,
			Err:     r.upsertChunk(ctx, tenantID, chunk, vectors[i]),
		})
	}
	return results, nil
}

func (r *Repository) upsertChunk(ctx context.Context, tenantID string, chunk *ingestion.Chunk, vector []float32) error {
	sql, args, err := psql.Insert("chunks").
		Columns("id", "tenant_id", "document_id", "ordinal", "content", "page", "section", "start_offset", "end_offset", "embedding").
		Values(uuid.New(), tenantID, chunk.DocumentID, chunk.Ordinal, chunk.Content, chunk.Page, chunk.Section, chunk.StartOffset, chunk.EndOffset, pgvector.NewVector(vector)).
		Suffix("ON CONFLICT (tenant_id, document_id, ordinal) DO UPDATE SET content = EXCLUDED.content, page = EXCLUDED.page, section = EXCLUDED.section, start_offset = EXCLUDED.start_offset, end_offset = EXCLUDED.end_offset, embedding = EXCLUDED.embedding").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build chunk upsert: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}
	return nil
}

func (r *Repository) DeleteDocument(ctx context.Context, tenantID string, documentID uuid.UUID) error {
	sql, args, err := psql.Delete("documents").
		Where(squirrel.Eq{"tenant_id": tenantID, "id": documentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build document delete: %w", err)
	}

	// チャンクはON DELETE CASCADEで一緒に消える
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ingestion.ErrDocumentNotFound, documentID)
	}
	return nil
}

func documentSelect() squirrel.SelectBuilder {
	return psql.Select("id", "tenant_id", "name", "status", "page_count", "chunk_count", "failure_reason", "failed_chunks", "uploaded_at", "updated_at").
		From("documents")
}

func scanDocument(row pgx.Row) (*ingestion.Document, error) {
	var doc ingestion.Document
	var status string
	if err := row.Scan(
		&doc.ID,
		&doc.TenantID,
		&doc.Name,
		&status,
		&doc.PageCount,
		&doc.ChunkCount,
		&doc.FailureReason,
		&doc.FailedChunks,
		&doc.UploadedAt,
		&doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	doc.Status = ingestion.DocumentStatus(status)
	return &doc, nil
}
