package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/manual-assist/internal/core/search"
)

// SearchRepository は core/search.Repository を実装する PostgreSQL リポジトリ。
type SearchRepository struct {
	pool *pgxpool.Pool
}

// NewSearchRepository は新しい SearchRepository を返す。
func NewSearchRepository(pool *pgxpool.Pool) *SearchRepository {
	return &SearchRepository{pool: pool}
}

var _ search.Repository = (*SearchRepository)(nil)

func (r *SearchRepository) Search(ctx context.Context, tenantID string, queryVector []float32, limit int, filter search.Filter) ([]*search.Result, error) {
	vector := pgvector.NewVector(queryVector)

	// スコアはコサイン類似度（1 - 距離）。取り込みが完了した
	// ドキュメントのチャンクのみを検索対象にする
	query := psql.Select(
		"c.id",
		"c.document_id",
		"d.name",
		"c.ordinal",
		"c.content",
		"c.page",
		"c.section",
	).
		Column(squirrel.Expr("1 - (c.embedding <=> ?) AS score", vector)).
		From("chunks c").
		Join("documents d ON d.id = c.document_id AND d.tenant_id = c.tenant_id").
		Where(squirrel.Eq{"c.tenant_id": tenantID}).
		Where(squirrel.Eq{"d.status": "completed"}).
		OrderByClause("c.embedding <=> ? ASC, c.ordinal ASC", vector).
		Limit(uint64(limit))

	if filter.DocumentID != nil {
		query = query.Where(squirrel.Eq{"c.document_id": *filter.DocumentID})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build search query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	results := make([]*search.Result, 0, limit)
	for rows.Next() {
		var result search.Result
		if err := rows.Scan(
			&result.ChunkID,
			&result.DocumentID,
			&result.DocumentName,
			&result.Ordinal,
			&result.Content,
			&result.Page,
			&result.Section,
			&result.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search results: %w", err)
	}
	return results, nil
}
