package tokenizer

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jinford/manual-assist/internal/core/answer"
)

// encodingName はOpenAIのEmbedding・チャットモデルが使うエンコーディング
const encodingName = "cl100k_base"

// Counter は tiktoken を利用した TokenCounter 実装。
// エンコーディングの読み込みに失敗した場合は概算値へフォールバックする。
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// New は新しい Counter を作成する
func New() (*Counter, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
	}
	return &Counter{encoding: enc}, nil
}

// NewFallback はtiktokenを使わない概算カウンタを作成する
func NewFallback() *Counter {
	return &Counter{}
}

// Count はテキストのトークン数を返す
func (c *Counter) Count(text string) int {
	if c.encoding == nil {
		// 1トークンあたり約4文字の概算
		return utf8.RuneCountInString(text)/4 + 1
	}
	return len(c.encoding.Encode(text, nil, nil))
}

var _ answer.TokenCounter = (*Counter)(nil)
