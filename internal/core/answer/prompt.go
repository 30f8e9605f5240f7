package answer

import (
	"fmt"
	"strings"

	"github.com/jinford/manual-assist/internal/core/conversation"
	"github.com/jinford/manual-assist/internal/core/search"
)

// SystemPrompt は電話サポート向けのシステムプロンプト
// 提供したコンテキストのみから回答し、不足時はその旨を明言するよう制約する
const SystemPrompt = `Eres un asistente profesional de soporte técnico telefónico. Tu rol es guiar a los operadores paso a paso a través de sus problemas técnicos, basándote únicamente en los manuales técnicos de la empresa.

Directrices:
1. Responde solo con la información incluida en el contexto del manual. No inventes detalles.
2. Mantén tus respuestas concisas y claras, optimizadas para comunicación verbal.
3. Divide las instrucciones en pasos numerados y cortos.
4. Enfatiza advertencias de seguridad con "IMPORTANTE" o "ATENCIÓN".
5. Si la información no está en el contexto, di claramente "No tengo suficiente información en el manual para responder a esta pregunta" y sugiere generar un ticket de soporte.
6. Mantén el contexto de la conversación y haz referencias a preguntas anteriores cuando sea relevante.`

// InsufficientContextAnswer はマニュアルに根拠が無い場合の定型回答
const InsufficientContextAnswer = "Lo siento, no tengo suficiente información en el manual para responder a esta pregunta. Por favor, verifique que el manual correspondiente haya sido cargado, o genere un ticket de soporte."

// insufficiencyMarker はモデルがコンテキスト不足を表明したことを検出するためのフレーズ
const insufficiencyMarker = "no tengo suficiente información"

// TokenCounter はプロンプトのトークン数を数えるインターフェース
type TokenCounter interface {
	Count(text string) int
}

// Prompt は合成済みのプロンプトを表す
type Prompt struct {
	System     string
	User       string
	UsedChunks []*search.Result // 実際にプロンプトへ含めたチャンク（スコア降順）
}

// PromptBuilder は取得チャンクと会話履歴をトークン上限内のプロンプトへ合成する
// 上限を超える場合は関連度の低いチャンクから順に除外する
type PromptBuilder struct {
	counter   TokenCounter
	maxTokens int
}

// NewPromptBuilder は新しい PromptBuilder を作成する
func NewPromptBuilder(counter TokenCounter, maxTokens int) *PromptBuilder {
	return &PromptBuilder{
		counter:   counter,
		maxTokens: maxTokens,
	}
}

// Build はプロンプトを合成する
// chunksはスコア降順であることを前提とし、トークン上限を超える分は末尾（低関連度）から落とす
func (b *PromptBuilder) Build(question string, chunks []*search.Result, turns []conversation.Turn) *Prompt {
	fixed := b.counter.Count(SystemPrompt) + b.counter.Count(question) + b.counter.Count(formatHistory(turns))

	budget := b.maxTokens - fixed
	var used []*search.Result
	for _, chunk := range chunks {
		cost := b.counter.Count(formatChunk(chunk))
		if cost > budget && len(used) > 0 {
			break
		}
		if cost > budget {
			// 最上位チャンクすら収まらない場合でも1件は含める
			used = append(used, chunk)
			break
		}
		used = append(used, chunk)
		budget -= cost
	}

	return &Prompt{
		System:     SystemPrompt,
		User:       buildUserPrompt(question, used, turns),
		UsedChunks: used,
	}
}

// buildUserPrompt はユーザープロンプト本文を組み立てる
func buildUserPrompt(question string, chunks []*search.Result, turns []conversation.Turn) string {
	var sb strings.Builder

	sb.WriteString("Contexto del manual:\n")
	if len(chunks) > 0 {
		for i, chunk := range chunks {
			sb.WriteString(fmt.Sprintf("[Sección %d] %s", i+1, chunk.DocumentName))
			if chunk.Page > 0 {
				sb.WriteString(fmt.Sprintf(" (página %d)", chunk.Page))
			}
			if chunk.Section != "" {
				sb.WriteString(fmt.Sprintf(" - %s", chunk.Section))
			}
			sb.WriteString("\n")
			sb.WriteString(chunk.Content)
			sb.WriteString("\n\n")
		}
	} else {
		sb.WriteString("(no hay contexto disponible)\n\n")
	}

	sb.WriteString("Historial de la conversación:\n")
	history := formatHistory(turns)
	if history != "" {
		sb.WriteString(history)
		sb.WriteString("\n")
	} else {
		sb.WriteString("(sin conversación previa)\n")
	}
	sb.WriteString("\n")

	sb.WriteString("Pregunta actual del operador: ")
	sb.WriteString(question)
	sb.WriteString("\n")

	return sb.String()
}

// formatHistory は会話履歴を読みやすいテキストに整形する
func formatHistory(turns []conversation.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	lines := make([]string, 0, len(turns)*2)
	for _, turn := range turns {
		lines = append(lines,
			"Operador: "+turn.Question,
			"Asistente: "+turn.Answer,
		)
	}
	return strings.Join(lines, "\n")
}

// formatChunk はチャンク1件分のプロンプト表現を返す（トークン見積もり用）
func formatChunk(chunk *search.Result) string {
	return chunk.DocumentName + " " + chunk.Section + "\n" + chunk.Content
}

// signalsInsufficiency はモデルの出力がコンテキスト不足を表明しているかを判定する
func signalsInsufficiency(answerText string) bool {
	return strings.Contains(strings.ToLower(answerText), insufficiencyMarker)
}
