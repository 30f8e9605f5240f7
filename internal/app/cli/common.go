package cli

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jinford/manual-assist/internal/core/answer"
	"github.com/jinford/manual-assist/internal/core/ingestion"
	"github.com/jinford/manual-assist/internal/core/search"
	"github.com/jinford/manual-assist/internal/core/splitter"
	"github.com/jinford/manual-assist/internal/infra/openai"
	"github.com/jinford/manual-assist/internal/infra/postgres"
	redisinfra "github.com/jinford/manual-assist/internal/infra/redis"
	"github.com/jinford/manual-assist/internal/infra/tokenizer"
	"github.com/jinford/manual-assist/internal/platform/logger"
	"github.com/jinford/manual-assist/pkg/config"
	"github.com/jinford/manual-assist/pkg/db"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config        *config.Config
	Database      *db.DB
	Redis         *goredis.Client
	Logger        *slog.Logger
	IngestService *ingestion.IngestService
	AnswerService *answer.AnswerService
}

// NewAppContext は設定ファイルを読み込み、外部リソースに接続して
// 各サービスを組み立てる
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	appLogger := logger.New(logger.DefaultConfig())

	database, err := db.New(ctx, db.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		database.Close()
		return nil, fmt.Errorf("Redis接続に失敗: %w", err)
	}

	embedder, err := openai.NewEmbedder(cfg.OpenAI.APIKey,
		openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
	)
	if err != nil {
		database.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("Embedderの初期化に失敗: %w", err)
	}

	llmClient, err := openai.NewClient(cfg.OpenAI.APIKey,
		openai.WithModel(cfg.OpenAI.LLMModel),
		openai.WithTemperature(cfg.OpenAI.Temperature),
		openai.WithMaxTokens(cfg.OpenAI.MaxAnswerTokens),
	)
	if err != nil {
		database.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("LLMクライアントの初期化に失敗: %w", err)
	}

	counter, err := tokenizer.New()
	if err != nil {
		// エンコーディングが読み込めない環境では概算値で続行する
		appLogger.Warn("tiktokenの初期化に失敗したため概算カウンタを使用します", "error", err)
		counter = tokenizer.NewFallback()
	}

	split, err := splitter.New(splitter.Config{
		ChunkSize:    cfg.Splitter.ChunkSize,
		Overlap:      cfg.Splitter.Overlap,
		MinChunkSize: cfg.Splitter.MinChunkSize,
	})
	if err != nil {
		database.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("分割設定が不正: %w", err)
	}

	ingestionRepo := postgres.NewRepository(database.Pool)
	searchRepo := postgres.NewSearchRepository(database.Pool)
	responseCache := redisinfra.NewResponseCache(redisClient)
	conversationStore := redisinfra.NewConversationStore(redisClient,
		redisinfra.WithConversationTTL(cfg.Retrieval.ConversationTTL),
	)

	pipeline := ingestion.NewEmbedPipeline(embedder,
		cfg.Ingestion.EmbedConcurrency,
		cfg.Ingestion.EmbedBatchSize,
		appLogger,
	)
	ingestService := ingestion.NewIngestService(
		ingestionRepo,
		embedder,
		pipeline,
		split,
		responseCache,
		ingestion.WithIngestLogger(appLogger),
	)

	searchService := search.NewSearchService(searchRepo, embedder,
		search.WithSearchLogger(appLogger),
	)
	promptBuilder := answer.NewPromptBuilder(counter, cfg.Retrieval.MaxPromptTokens)
	answerService := answer.NewAnswerService(
		searchService,
		embedder,
		llmClient,
		responseCache,
		conversationStore,
		promptBuilder,
		answer.WithAnswerLogger(appLogger),
		answer.WithAnswerConfig(answer.Config{
			TopK:            cfg.Retrieval.TopK,
			MinScore:        cfg.Retrieval.MinScore,
			MaxContextTurns: cfg.Retrieval.MaxContextTurns,
			CacheTTL:        cfg.Retrieval.AnswerCacheTTL,
		}),
	)

	return &AppContext{
		Config:        cfg,
		Database:      database,
		Redis:         redisClient,
		Logger:        appLogger,
		IngestService: ingestService,
		AnswerService: answerService,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Database != nil {
		ac.Database.Close()
	}
	if ac.Redis != nil {
		_ = ac.Redis.Close()
	}
}
