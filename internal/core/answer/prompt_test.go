package answer

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/manual-assist/internal/core/conversation"
	"github.com/jinford/manual-assist/internal/core/search"
)

// runeCounter は1文字=1トークンとして数える（テスト用）
type runeCounter struct{}

func (runeCounter) Count(text string) int {
	return len([]rune(text))
}

func chunkWithContent(name, content string, score float64) *search.Result {
	return &search.Result{
		ChunkID:      uuid.New(),
		DocumentID:   uuid.New(),
		DocumentName: name,
		Content:      content,
		Score:        score,
	}
}

func TestPromptBuilder_Build_IncludesAllSections(t *testing.T) {
	builder := NewPromptBuilder(runeCounter{}, 100000)
	chunks := []*search.Result{
		chunkWithContent("manual.pdf", "Pulse el botón de reinicio.", 0.9),
	}
	chunks[0].Page = 4
	chunks[0].Section = "Reinicio"
	turns := []conversation.Turn{
		{Question: "¿Dónde está el botón?", Answer: "En la parte trasera."},
	}

	prompt := builder.Build("¿Cuánto tiempo lo mantengo pulsado?", chunks, turns)

	assert.Equal(t, SystemPrompt, prompt.System)
	assert.Contains(t, prompt.User, "Contexto del manual:")
	assert.Contains(t, prompt.User, "manual.pdf (página 4) - Reinicio")
	assert.Contains(t, prompt.User, "Pulse el botón de reinicio.")
	assert.Contains(t, prompt.User, "Operador: ¿Dónde está el botón?")
	assert.Contains(t, prompt.User, "Asistente: En la parte trasera.")
	assert.Contains(t, prompt.User, "Pregunta actual del operador: ¿Cuánto tiempo lo mantengo pulsado?")
	assert.Len(t, prompt.UsedChunks, 1)
}

func TestPromptBuilder_Build_TrimsLowestRelevanceFirst(t *testing.T) {
	// 固定コストは SystemPrompt+質問。上限をチャンク2件までに調整する
	fixed := len([]rune(SystemPrompt)) + len([]rune("q"))
	first := chunkWithContent("a.pdf", strings.Repeat("x", 100), 0.9)
	second := chunkWithContent("b.pdf", strings.Repeat("y", 100), 0.6)
	third := chunkWithContent("c.pdf", strings.Repeat("z", 100), 0.4)
	perChunk := len([]rune(formatChunk(first)))

	builder := NewPromptBuilder(runeCounter{}, fixed+perChunk*2)
	prompt := builder.Build("q", []*search.Result{first, second, third}, nil)

	require.Len(t, prompt.UsedChunks, 2)
	assert.Equal(t, first, prompt.UsedChunks[0])
	assert.Equal(t, second, prompt.UsedChunks[1])
	assert.NotContains(t, prompt.User, "c.pdf")
}

func TestPromptBuilder_Build_AlwaysKeepsTopChunk(t *testing.T) {
	builder := NewPromptBuilder(runeCounter{}, 10)
	best := chunkWithContent("a.pdf", strings.Repeat("x", 500), 0.9)
	rest := chunkWithContent("b.pdf", strings.Repeat("y", 500), 0.5)

	prompt := builder.Build("q", []*search.Result{best, rest}, nil)

	require.Len(t, prompt.UsedChunks, 1)
	assert.Equal(t, best, prompt.UsedChunks[0])
}

func TestPromptBuilder_Build_NoContext(t *testing.T) {
	builder := NewPromptBuilder(runeCounter{}, 100000)

	prompt := builder.Build("¿Qué hago?", nil, nil)

	assert.Contains(t, prompt.User, "(no hay contexto disponible)")
	assert.Contains(t, prompt.User, "(sin conversación previa)")
	assert.Empty(t, prompt.UsedChunks)
}

func TestSignalsInsufficiency(t *testing.T) {
	assert.True(t, signalsInsufficiency("No tengo suficiente información en el manual."))
	assert.True(t, signalsInsufficiency("lo siento, NO TENGO SUFICIENTE INFORMACIÓN."))
	assert.False(t, signalsInsufficiency("Mantenga pulsado el botón durante 5 segundos."))
}
