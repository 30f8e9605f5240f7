package answer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Stage は回答リクエストの状態マシンのステージを表す
type Stage string

const (
	StageReceived           Stage = "RECEIVED"
	StageCacheCheck         Stage = "CACHE_CHECK"
	StageContextFetch       Stage = "CONTEXT_FETCH"
	StageEmbedQuery         Stage = "EMBED_QUERY"
	StageRetrieve           Stage = "RETRIEVE"
	StageComposePrompt      Stage = "COMPOSE_PROMPT"
	StageGenerate           Stage = "GENERATE"
	StagePostprocess        Stage = "POSTPROCESS"
	StageCacheWrite         Stage = "CACHE_WRITE"
	StageConversationAppend Stage = "CONVERSATION_APPEND"
	StageDone               Stage = "DONE"
)

// FailureKind は失敗の種別を表す
// 「コンテキスト不足」と「プロバイダのタイムアウト」を
// 区別できるよう、汎用エラーに潰さず種別を保持する
type FailureKind string

const (
	// FailureValidation は入力バリデーションの失敗
	FailureValidation FailureKind = "validation"
	// FailureProvider は外部プロバイダの恒久的失敗（リトライ枯渇後）
	FailureProvider FailureKind = "provider"
	// FailureIndex はベクトルインデックスの障害
	FailureIndex FailureKind = "index"
)

// StageError はステージと失敗種別を保持するエラー
type StageError struct {
	Stage Stage
	Kind  FailureKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Params は回答リクエストのパラメータを表す
type Params struct {
	TenantID       string
	Question       string
	ConversationID mo.Option[string] // 未指定の場合は会話コンテキストなし
}

// Source は回答の根拠となったマニュアル箇所を表す
type Source struct {
	DocumentID   uuid.UUID `json:"documentID"`
	DocumentName string    `json:"documentName"`
	Page         int       `json:"page"`
	Section      string    `json:"section"`
	Score        float64   `json:"score"`
}

// Answer は構造化された回答を表す
type Answer struct {
	AnswerText string   `json:"answerText"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
	Grounded   bool     `json:"grounded"` // 取得チャンクに根拠があるか
	FromCache  bool     `json:"fromCache"`
}

var (
	// ErrTenantRequired はテナントIDが未指定の場合のエラー
	ErrTenantRequired = errors.New("tenant id is required")
	// ErrQuestionRequired は質問文が未指定の場合のエラー
	ErrQuestionRequired = errors.New("question is required")
)
