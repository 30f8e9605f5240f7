package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/manual-assist/internal/core/answer"
)

func newTestCache(t *testing.T) (*ResponseCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewResponseCache(client), mr
}

func cachedAnswer(text string) *answer.CachedAnswer {
	return &answer.CachedAnswer{
		AnswerText: text,
		Sources: []answer.Source{
			{DocumentID: uuid.New(), DocumentName: "manual.pdf", Page: 2, Score: 0.87},
		},
		Confidence: 0.87,
		Grounded:   true,
		CreatedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestResponseCache_PutGet(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	entry := cachedAnswer("Mantenga pulsado el botón durante 5 segundos.")
	err := cache.Put(ctx, "tenant-a", "fp-1", entry, []string{answer.TenantTag("tenant-a")}, time.Hour)
	require.NoError(t, err)

	got, err := cache.Get(ctx, "tenant-a", "fp-1")
	require.NoError(t, err)
	cached, ok := got.Get()
	require.True(t, ok)
	assert.Equal(t, entry.AnswerText, cached.AnswerText)
	assert.Equal(t, entry.Sources, cached.Sources)
	assert.True(t, cached.Grounded)
}

func TestResponseCache_Miss(t *testing.T) {
	cache, _ := newTestCache(t)

	got, err := cache.Get(context.Background(), "tenant-a", "unknown")
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())
}

func TestResponseCache_TTLExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	err := cache.Put(ctx, "tenant-a", "fp-1", cachedAnswer("respuesta"), nil, time.Hour)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	got, err := cache.Get(ctx, "tenant-a", "fp-1")
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())
}

func TestResponseCache_InvalidateByTag(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	docID := uuid.New()
	tenantTag := answer.TenantTag("tenant-a")
	docTag := answer.DocumentTag(docID)

	require.NoError(t, cache.Put(ctx, "tenant-a", "fp-1", cachedAnswer("r1"), []string{tenantTag, docTag}, time.Hour))
	require.NoError(t, cache.Put(ctx, "tenant-a", "fp-2", cachedAnswer("r2"), []string{tenantTag}, time.Hour))
	require.NoError(t, cache.Put(ctx, "tenant-b", "fp-3", cachedAnswer("r3"), []string{answer.TenantTag("tenant-b")}, time.Hour))

	// ドキュメントタグの無効化はそのタグを持つエントリだけを消す
	require.NoError(t, cache.InvalidateByTag(ctx, docTag))

	got, err := cache.Get(ctx, "tenant-a", "fp-1")
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())
	got, err = cache.Get(ctx, "tenant-a", "fp-2")
	require.NoError(t, err)
	assert.True(t, got.IsPresent())

	// テナントタグの無効化はテナント全体を消すが他テナントには触れない
	require.NoError(t, cache.InvalidateByTag(ctx, tenantTag))

	got, err = cache.Get(ctx, "tenant-a", "fp-2")
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())
	got, err = cache.Get(ctx, "tenant-b", "fp-3")
	require.NoError(t, err)
	assert.True(t, got.IsPresent())
}

func TestResponseCache_InvalidateUnknownTag(t *testing.T) {
	cache, _ := newTestCache(t)

	err := cache.InvalidateByTag(context.Background(), "tenant:desconocido")
	assert.NoError(t, err)
}
