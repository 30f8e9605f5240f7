package answer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jinford/manual-assist/internal/core/conversation"
)

func TestNormalizeQuestion(t *testing.T) {
	assert.Equal(t, "¿cómo reinicio el router?", NormalizeQuestion("  ¿Cómo   reinicio el\nrouter?  "))
	assert.Equal(t, "", NormalizeQuestion("   \n\t "))
}

func TestFingerprint_Deterministic(t *testing.T) {
	turns := []conversation.Turn{
		{Index: 0, Question: "¿Cómo configuro la VPN?", Answer: "Abra el panel."},
	}

	a := Fingerprint("¿Y el segundo paso?", turns)
	b := Fingerprint("¿Y el segundo paso?", turns)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex SHA-256
}

func TestFingerprint_NormalizesQuestion(t *testing.T) {
	a := Fingerprint("¿Cómo reinicio el router?", nil)
	b := Fingerprint("  ¿cómo   REINICIO el router?  ", nil)

	assert.Equal(t, a, b)
}

func TestFingerprint_SensitiveToHistory(t *testing.T) {
	withoutHistory := Fingerprint("¿Y el segundo paso?", nil)
	withHistory := Fingerprint("¿Y el segundo paso?", []conversation.Turn{
		{Index: 0, Question: "¿Cómo configuro la VPN?", Answer: "Abra el panel."},
	})
	withOtherHistory := Fingerprint("¿Y el segundo paso?", []conversation.Turn{
		{Index: 0, Question: "¿Cómo reinicio el router?", Answer: "Pulse el botón."},
	})

	assert.NotEqual(t, withoutHistory, withHistory)
	assert.NotEqual(t, withHistory, withOtherHistory)
}

func TestFingerprint_SensitiveToQuestion(t *testing.T) {
	assert.NotEqual(t,
		Fingerprint("¿Cómo reinicio el router?", nil),
		Fingerprint("¿Cómo apago el router?", nil),
	)
}

func TestTags(t *testing.T) {
	id := uuid.MustParse("6f1b0f6e-8f0a-4f8f-9c1d-2a3b4c5d6e7f")

	assert.Equal(t, "tenant:acme", TenantTag("acme"))
	assert.Equal(t, "document:6f1b0f6e-8f0a-4f8f-9c1d-2a3b4c5d6e7f", DocumentTag(id))
}
