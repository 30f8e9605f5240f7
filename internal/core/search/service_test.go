package search

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct{ called bool }

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.called = true
	return []float32{1, 2, 3}, nil
}

type stubSearchRepo struct {
	results    []*Result
	lastTenant string
	lastLimit  int
}

func (r *stubSearchRepo) Search(ctx context.Context, tenantID string, queryVector []float32, limit int, filter Filter) ([]*Result, error) {
	r.lastTenant = tenantID
	r.lastLimit = limit
	return r.results, nil
}

func TestSearchService_SearchUsesDefaultLimitAndEmbedder(t *testing.T) {
	repo := &stubSearchRepo{
		results: []*Result{{
			ChunkID: uuid.New(),
			Content: "test",
			Score:   0.9,
		}},
	}
	embedder := &stubEmbedder{}
	svc := NewSearchService(repo, embedder)

	results, err := svc.Search(context.Background(), Params{
		TenantID: "tenant-a",
		Query:    "hello",
		Limit:    0, // default should be applied
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, repo.lastLimit) // default value applied
	assert.True(t, embedder.called)
}

func TestSearchService_TenantIDIsMandatory(t *testing.T) {
	svc := NewSearchService(&stubSearchRepo{}, &stubEmbedder{})

	_, err := svc.Search(context.Background(), Params{Query: "hello"})
	require.Error(t, err)

	_, err = svc.SearchByVector(context.Background(), Params{}, []float32{1})
	require.Error(t, err)
}

func TestSearchService_RepositoryReceivesCallerTenant(t *testing.T) {
	repo := &stubSearchRepo{}
	svc := NewSearchService(repo, &stubEmbedder{})

	_, err := svc.Search(context.Background(), Params{TenantID: "tenant-b", Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "tenant-b", repo.lastTenant)
}

func TestSearchService_FiltersBelowMinScore(t *testing.T) {
	repo := &stubSearchRepo{
		results: []*Result{
			{Content: "relevant", Score: 0.8},
			{Content: "borderline", Score: 0.3},
			{Content: "irrelevant", Score: 0.1},
		},
	}
	svc := NewSearchService(repo, &stubEmbedder{})

	results, err := svc.Search(context.Background(), Params{
		TenantID: "tenant-a",
		Query:    "q",
		MinScore: 0.3,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "relevant", results[0].Content)
	assert.Equal(t, "borderline", results[1].Content)
}
