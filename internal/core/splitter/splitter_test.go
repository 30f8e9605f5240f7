package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNew(t *testing.T, cfg Config) *Splitter {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

// reconstruct はオーバーラップを除いたチャンク列から元テキストを復元する
func reconstruct(chunks []*Chunk) string {
	var sb strings.Builder
	prevEnd := 0
	for _, c := range chunks {
		runes := []rune(c.Text)
		if c.StartOffset < prevEnd {
			runes = runes[prevEnd-c.StartOffset:]
		}
		sb.WriteString(string(runes))
		prevEnd = c.EndOffset
	}
	return sb.String()
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{ChunkSize: 1000, Overlap: 200, MinChunkSize: 100}, false},
		{"zero chunk size", Config{ChunkSize: 0, Overlap: 0, MinChunkSize: 0}, true},
		{"overlap equals chunk size", Config{ChunkSize: 100, Overlap: 100, MinChunkSize: 10}, true},
		{"overlap exceeds chunk size", Config{ChunkSize: 100, Overlap: 150, MinChunkSize: 10}, true},
		{"negative overlap", Config{ChunkSize: 100, Overlap: -1, MinChunkSize: 10}, true},
		{"min chunk size exceeds chunk size", Config{ChunkSize: 100, Overlap: 10, MinChunkSize: 100}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitter_EmptyDocumentYieldsZeroChunks(t *testing.T) {
	s := mustNew(t, DefaultConfig())

	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("   \n\n  \t "))
}

func TestSplitter_ShortDocumentIsSingleChunk(t *testing.T) {
	s := mustNew(t, DefaultConfig())

	text := "Step 1: Power on. Step 2: Connect cable."
	chunks := s.Split(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len([]rune(text)), chunks[0].EndOffset)
}

func TestSplitter_CoverageReconstructsOriginalText(t *testing.T) {
	s := mustNew(t, Config{ChunkSize: 120, Overlap: 30, MinChunkSize: 20})

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("Sentence number one in a paragraph. Sentence number two follows here.\n\n")
	}
	text := sb.String()

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, text, reconstruct(chunks))

	// チャンク列に隙間が無いこと
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].StartOffset, chunks[i-1].EndOffset)
		assert.Equal(t, i, chunks[i].Ordinal)
	}
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len([]rune(text)), chunks[len(chunks)-1].EndOffset)
}

func TestSplitter_PrefersParagraphBoundaries(t *testing.T) {
	s := mustNew(t, Config{ChunkSize: 100, Overlap: 10, MinChunkSize: 10})

	para1 := strings.Repeat("a", 60)
	para2 := strings.Repeat("b", 60)
	text := para1 + "\n\n" + para2

	chunks := s.Split(text)
	require.Len(t, chunks, 2)
	// 最初のチャンクは段落境界で終わる
	assert.True(t, strings.HasSuffix(chunks[0].Text, "\n\n"))
	assert.NotContains(t, chunks[0].Text, "b")
}

func TestSplitter_OversizedParagraphIsHardSplitWithOverlap(t *testing.T) {
	cfg := Config{ChunkSize: 100, Overlap: 20, MinChunkSize: 10}
	s := mustNew(t, cfg)

	// 自然な境界を一切含まない巨大な段落
	text := strings.Repeat("x", 350)
	chunks := s.Split(text)

	require.Greater(t, len(chunks), 1)
	assert.Equal(t, text, reconstruct(chunks))

	for i := 1; i < len(chunks); i++ {
		// オーバーラップが適用されている
		assert.Equal(t, cfg.Overlap, chunks[i-1].EndOffset-chunks[i].StartOffset)
	}
}

func TestSplitter_TrailingShortChunkMergedIntoPrevious(t *testing.T) {
	cfg := Config{ChunkSize: 100, Overlap: 0, MinChunkSize: 50}
	s := mustNew(t, cfg)

	// 100文字で割り切った後に10文字だけ残るテキスト
	text := strings.Repeat("y", 210)
	chunks := s.Split(text)

	last := chunks[len(chunks)-1]
	assert.GreaterOrEqual(t, last.EndOffset-last.StartOffset, cfg.MinChunkSize)
	assert.Equal(t, len([]rune(text)), last.EndOffset)
	assert.Equal(t, text, reconstruct(chunks))
}

func TestSplitter_ChunksCarryPageMetadata(t *testing.T) {
	s := mustNew(t, Config{ChunkSize: 200, Overlap: 20, MinChunkSize: 10})

	text := "--- Page 1 ---\n\n" + strings.Repeat("Primera página. ", 12) +
		"\n\n--- Page 2 ---\n\n" + strings.Repeat("Segunda página. ", 12)
	chunks := s.Split(text)

	require.Greater(t, len(chunks), 1)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 2, chunks[len(chunks)-1].Page)
}

func TestSplitter_SectionIsFirstMeaningfulLine(t *testing.T) {
	s := mustNew(t, DefaultConfig())

	text := "--- Page 3 ---\n\nInstalación del equipo\nConecte el cable de alimentación."
	chunks := s.Split(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Instalación del equipo", chunks[0].Section)
	assert.Equal(t, 3, chunks[0].Page)
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 0, PageCount("sin marcadores"))
	assert.Equal(t, 12, PageCount("--- Page 1 ---\nfoo\n--- Page 12 ---\nbar"))
}
