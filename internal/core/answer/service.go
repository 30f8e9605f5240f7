package answer

import (
	"context"
	"log/slog"
	"time"

	"github.com/jinford/manual-assist/internal/core/conversation"
	"github.com/jinford/manual-assist/internal/core/search"
)

// Retriever はテナントコレクションに対するベクトル検索を表す
type Retriever interface {
	SearchByVector(ctx context.Context, params search.Params, queryVector []float32) ([]*search.Result, error)
}

// QueryEmbedder は質問文のEmbedding生成を表す
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LLMClient はLLM通信インターフェース
type LLMClient interface {
	GenerateAnswer(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config は回答生成の設定
type Config struct {
	TopK            int           // 取得チャンクの上限
	MinScore        float64       // 類似度スコアの下限
	MaxContextTurns int           // プロンプトに含める直近の会話ターン数
	CacheTTL        time.Duration // 回答キャッシュのTTL
}

// DefaultConfig はデフォルトの回答生成設定を返す
func DefaultConfig() Config {
	return Config{
		TopK:            3,
		MinScore:        0.3,
		MaxContextTurns: 5,
		CacheTTL:        time.Hour,
	}
}

// AnswerService は検索で根拠付けた回答生成のユースケースを提供する
// リクエストごとに CACHE_CHECK → CONTEXT_FETCH → EMBED_QUERY → RETRIEVE →
// COMPOSE_PROMPT → GENERATE → POSTPROCESS → CACHE_WRITE → CONVERSATION_APPEND
// の順でステージを実行し、失敗時はステージと失敗種別を記録する
type AnswerService struct {
	retriever     Retriever
	embedder      QueryEmbedder
	llm           LLMClient
	cache         ResponseCache
	conversations conversation.Store
	promptBuilder *PromptBuilder
	config        Config
	logger        *slog.Logger
	now           func() time.Time
}

// AnswerServiceOption は AnswerService のオプション設定
type AnswerServiceOption func(*AnswerService)

// WithAnswerLogger は AnswerService にロガーを設定する
func WithAnswerLogger(logger *slog.Logger) AnswerServiceOption {
	return func(s *AnswerService) {
		s.logger = logger
	}
}

// WithAnswerConfig は回答生成設定を上書きする
func WithAnswerConfig(cfg Config) AnswerServiceOption {
	return func(s *AnswerService) {
		s.config = cfg
	}
}

// WithClock は現在時刻の取得関数を差し替える（テスト用）
func WithClock(now func() time.Time) AnswerServiceOption {
	return func(s *AnswerService) {
		s.now = now
	}
}

// NewAnswerService は新しいAnswerServiceを作成する
func NewAnswerService(
	retriever Retriever,
	embedder QueryEmbedder,
	llm LLMClient,
	cache ResponseCache,
	conversations conversation.Store,
	promptBuilder *PromptBuilder,
	opts ...AnswerServiceOption,
) *AnswerService {
	svc := &AnswerService{
		retriever:     retriever,
		embedder:      embedder,
		llm:           llm,
		cache:         cache,
		conversations: conversations,
		promptBuilder: promptBuilder,
		config:        DefaultConfig(),
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Answer は質問に対して検索で根拠付けた回答を生成する
func (s *AnswerService) Answer(ctx context.Context, params Params) (*Answer, error) {
	// バリデーション（パイプラインに入る前に拒否する）
	if params.TenantID == "" {
		return nil, &StageError{Stage: StageReceived, Kind: FailureValidation, Err: ErrTenantRequired}
	}
	if params.Question == "" {
		return nil, &StageError{Stage: StageReceived, Kind: FailureValidation, Err: ErrQuestionRequired}
	}

	// CONTEXT_FETCH: 直近の会話ターンを取得する
	// キャッシュキーのフィンガープリントに必要なため CACHE_CHECK より先に読むが、
	// ストア障害はコンテキストなしへのデグレードであり失敗にはしない
	turns := s.fetchRecentTurns(ctx, params)

	fingerprint := Fingerprint(params.Question, turns)

	// CACHE_CHECK: ヒットすれば再計算なしで返す
	if cached := s.cacheLookup(ctx, params.TenantID, fingerprint); cached != nil {
		s.logger.Info("answer served from cache",
			"tenantID", params.TenantID,
			"grounded", cached.Grounded,
		)
		return &Answer{
			AnswerText: cached.AnswerText,
			Sources:    cached.Sources,
			Confidence: cached.Confidence,
			Grounded:   cached.Grounded,
			FromCache:  true,
		}, nil
	}

	// EMBED_QUERY: 質問をベクトル化する
	queryVector, err := s.embedder.Embed(ctx, params.Question)
	if err != nil {
		return nil, &StageError{Stage: StageEmbedQuery, Kind: FailureProvider, Err: err}
	}

	// RETRIEVE: テナントのコレクションから閾値以上のチャンクを取得する
	results, err := s.retriever.SearchByVector(ctx, search.Params{
		TenantID: params.TenantID,
		Query:    params.Question,
		Limit:    s.config.TopK,
		MinScore: s.config.MinScore,
	}, queryVector)
	if err != nil {
		return nil, &StageError{Stage: StageRetrieve, Kind: FailureIndex, Err: err}
	}

	var result *Answer
	if len(results) == 0 {
		// 閾値を超えるチャンクが無い場合は、生成をスキップして
		// 根拠なしの定型回答を返す（詳細を捏造しない）
		s.logger.Info("no chunks above similarity threshold",
			"tenantID", params.TenantID,
			"minScore", s.config.MinScore,
		)
		result = &Answer{
			AnswerText: InsufficientContextAnswer,
			Sources:    []Source{},
			Confidence: 0,
			Grounded:   false,
		}
	} else {
		// COMPOSE_PROMPT: チャンクと会話履歴をトークン上限内で合成する
		prompt := s.promptBuilder.Build(params.Question, results, turns)

		// GENERATE: LLMで回答を生成する（リトライはクライアント内部の予算まで）
		answerText, err := s.llm.GenerateAnswer(ctx, prompt.System, prompt.User)
		if err != nil {
			return nil, &StageError{Stage: StageGenerate, Kind: FailureProvider, Err: err}
		}

		// POSTPROCESS: 出典と確信度を付与する
		result = s.postprocess(answerText, prompt.UsedChunks)
	}

	// CACHE_WRITE: 失敗しても回答は返す（デグレード）
	s.cacheStore(ctx, params, fingerprint, result)

	// CONVERSATION_APPEND: 会話IDがある場合のみ履歴へ追加する
	s.appendTurn(ctx, params, turns, result)

	return result, nil
}

// fetchRecentTurns は直近の会話ターンを取得する（障害時は空でデグレード）
func (s *AnswerService) fetchRecentTurns(ctx context.Context, params Params) []conversation.Turn {
	conversationID, ok := params.ConversationID.Get()
	if !ok {
		return nil
	}

	turns, err := s.conversations.GetRecent(ctx, params.TenantID, conversationID, s.config.MaxContextTurns)
	if err != nil {
		s.logger.Warn("conversation store unavailable, continuing without context",
			"tenantID", params.TenantID,
			"conversationID", conversationID,
			"error", err,
		)
		return nil
	}
	return turns
}

// cacheLookup はキャッシュを照会する（障害時はミス扱いでデグレード）
func (s *AnswerService) cacheLookup(ctx context.Context, tenantID, fingerprint string) *CachedAnswer {
	entry, err := s.cache.Get(ctx, tenantID, fingerprint)
	if err != nil {
		s.logger.Warn("response cache unavailable, recomputing",
			"tenantID", tenantID,
			"error", err,
		)
		return nil
	}
	return entry.OrElse(nil)
}

// cacheStore は回答をタグ付きでキャッシュへ保存する（障害時はログのみ）
func (s *AnswerService) cacheStore(ctx context.Context, params Params, fingerprint string, result *Answer) {
	tags := []string{TenantTag(params.TenantID)}
	seen := make(map[string]bool)
	for _, src := range result.Sources {
		tag := DocumentTag(src.DocumentID)
		if !seen[tag] {
			tags = append(tags, tag)
			seen[tag] = true
		}
	}

	entry := &CachedAnswer{
		AnswerText: result.AnswerText,
		Sources:    result.Sources,
		Confidence: result.Confidence,
		Grounded:   result.Grounded,
		CreatedAt:  s.now(),
	}
	if err := s.cache.Put(ctx, params.TenantID, fingerprint, entry, tags, s.config.CacheTTL); err != nil {
		s.logger.Warn("failed to write response cache",
			"tenantID", params.TenantID,
			"error", err,
		)
	}
}

// appendTurn は質問と回答を会話履歴へ追加する（障害時はログのみ）
func (s *AnswerService) appendTurn(ctx context.Context, params Params, priorTurns []conversation.Turn, result *Answer) {
	conversationID, ok := params.ConversationID.Get()
	if !ok {
		return
	}

	sourceRefs := make([]string, 0, len(result.Sources))
	for _, src := range result.Sources {
		sourceRefs = append(sourceRefs, src.DocumentID.String())
	}

	turn := conversation.Turn{
		ConversationID: conversationID,
		TenantID:       params.TenantID,
		Index:          nextTurnIndex(priorTurns),
		Question:       params.Question,
		Answer:         result.AnswerText,
		SourceRefs:     sourceRefs,
		CreatedAt:      s.now(),
	}
	if err := s.conversations.Append(ctx, params.TenantID, conversationID, turn); err != nil {
		s.logger.Warn("failed to append conversation turn",
			"tenantID", params.TenantID,
			"conversationID", conversationID,
			"error", err,
		)
	}
}

// postprocess は使用チャンクから出典と確信度を計算する
func (s *AnswerService) postprocess(answerText string, usedChunks []*search.Result) *Answer {
	sources := make([]Source, 0, len(usedChunks))
	var scoreSum float64
	for _, chunk := range usedChunks {
		sources = append(sources, Source{
			DocumentID:   chunk.DocumentID,
			DocumentName: chunk.DocumentName,
			Page:         chunk.Page,
			Section:      chunk.Section,
			Score:        chunk.Score,
		})
		scoreSum += chunk.Score
	}

	confidence := 0.0
	if len(usedChunks) > 0 {
		confidence = scoreSum / float64(len(usedChunks))
	}
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	// モデルがコンテキスト不足を表明した場合は確信度を下げる
	if signalsInsufficiency(answerText) {
		confidence /= 2
	}

	return &Answer{
		AnswerText: answerText,
		Sources:    sources,
		Confidence: confidence,
		Grounded:   true,
	}
}

// nextTurnIndex は次のターン番号を求める
func nextTurnIndex(turns []conversation.Turn) int {
	if len(turns) == 0 {
		return 0
	}
	return turns[len(turns)-1].Index + 1
}
