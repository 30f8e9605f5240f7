package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定（ベクトルインデックス用）
	Database DatabaseConfig

	// Redis設定（応答キャッシュ・会話ストア用）
	Redis RedisConfig

	// OpenAI設定（Embeddings + LLM）
	OpenAI OpenAIConfig

	// マニュアル分割設定
	Splitter SplitterConfig

	// 取り込みパイプライン設定
	Ingestion IngestionConfig

	// 検索・回答生成設定
	Retrieval RetrievalConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig はRedis接続設定
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OpenAIConfig はOpenAI API設定（Embeddings + LLM）
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	LLMModel           string
	Temperature        float64
	MaxAnswerTokens    int
}

// SplitterConfig はドキュメント分割の設定
type SplitterConfig struct {
	ChunkSize    int // チャンクサイズ（文字数）
	Overlap      int // チャンク間のオーバーラップ（文字数）
	MinChunkSize int // 最小チャンクサイズ（これ未満は前のチャンクへマージ）
}

// IngestionConfig は取り込みパイプラインの設定
type IngestionConfig struct {
	EmbedConcurrency int // Embeddingバッチの並行実行数
	EmbedBatchSize   int // Embeddingバッチサイズ（プロバイダ上限でクリップ）
}

// RetrievalConfig は検索と回答生成の設定
type RetrievalConfig struct {
	TopK            int           // 検索結果の上限
	MinScore        float64       // 関連度スコアの下限
	MaxContextTurns int           // プロンプトに含める直近の会話ターン数
	MaxPromptTokens int           // プロンプトのトークン上限
	AnswerCacheTTL  time.Duration // 回答キャッシュのTTL
	ConversationTTL time.Duration // 会話の有効期限（最終活動からの経過時間）
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "manualassist"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "manualassist"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			LLMModel:           getEnv("OPENAI_LLM_MODEL", "gpt-4o"),
			Temperature:        getEnvAsFloat("OPENAI_TEMPERATURE", 0.7),
			MaxAnswerTokens:    getEnvAsInt("OPENAI_MAX_ANSWER_TOKENS", 500),
		},
		Splitter: SplitterConfig{
			ChunkSize:    getEnvAsInt("SPLITTER_CHUNK_SIZE", 1000),
			Overlap:      getEnvAsInt("SPLITTER_OVERLAP", 200),
			MinChunkSize: getEnvAsInt("SPLITTER_MIN_CHUNK_SIZE", 100),
		},
		Ingestion: IngestionConfig{
			EmbedConcurrency: getEnvAsInt("INGEST_EMBED_CONCURRENCY", 4),
			EmbedBatchSize:   getEnvAsInt("INGEST_EMBED_BATCH_SIZE", 100),
		},
		Retrieval: RetrievalConfig{
			TopK:            getEnvAsInt("RETRIEVAL_TOP_K", 3),
			MinScore:        getEnvAsFloat("RETRIEVAL_MIN_SCORE", 0.3),
			MaxContextTurns: getEnvAsInt("RETRIEVAL_MAX_CONTEXT_TURNS", 5),
			MaxPromptTokens: getEnvAsInt("RETRIEVAL_MAX_PROMPT_TOKENS", 6000),
			AnswerCacheTTL:  getEnvAsDuration("ANSWER_CACHE_TTL", time.Hour),
			ConversationTTL: getEnvAsDuration("CONVERSATION_TTL", 24*time.Hour),
		},
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数をtime.Durationとして取得します
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
