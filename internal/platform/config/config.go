package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	Database    DatabaseConfig
	OpenAI      OpenAIConfig
	Anthropic   AnthropicConfig
	Completion  CompletionConfig
	VectorStore VectorStoreConfig
	RAG         RAGConfig
	Upload      UploadConfig
	Log         LogConfig
}

// DatabaseConfig はデータベース接続設定 (VectorStore.Backend が pgvector の場合に使用)
type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"min=1,max=65535"`
	User     string `validate:"required"`
	Password string
	DBName   string `validate:"required"`
	SSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

// OpenAIConfig は OpenAI 互換 API の設定 (Embeddings + チャット)
type OpenAIConfig struct {
	APIKey               string
	BaseURL              string // Ollama などの互換エンドポイント (例: http://localhost:11434/v1)
	EmbeddingModel       string `validate:"required"`
	EmbeddingDimension   int    `validate:"gt=0"`
	ChatModel            string `validate:"required"`
	EmbeddingTimeout     time.Duration
	EmbeddingConcurrency int     `validate:"min=1,max=64"`
	EmbeddingRateLimit   float64 `validate:"min=0"` // 1秒あたりのリクエスト数。0 は無制限

	// false のとき dimensions を送らない (dimensions を受け付けない互換サーバー向け)
	EmbeddingSendDimensions bool
}

// AnthropicConfig は Anthropic API の設定
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int `validate:"min=1"`
}

// CompletionConfig は回答生成に使うプロバイダの設定
type CompletionConfig struct {
	Provider    string `validate:"oneof=openai anthropic"`
	Timeout     time.Duration
	Temperature float64 `validate:"min=0,max=2"`
}

// VectorStoreConfig はベクトルストアの設定
type VectorStoreConfig struct {
	Backend        string `validate:"oneof=pgvector qdrant memory"`
	CollectionName string `validate:"required"`
	DistanceMetric string `validate:"oneof=cosine dot"`
	QdrantURL      string `validate:"omitempty,url"`
	QdrantAPIKey   string
	Timeout        time.Duration
}

// RAGConfig は分割・検索・会話の既定値
type RAGConfig struct {
	ChunkSize           int     `validate:"min=100,max=5000"`
	ChunkOverlap        int     `validate:"min=0"`
	TopK                int     `validate:"min=1,max=20"`
	SimilarityThreshold float64 `validate:"min=0,max=1"`
	ChatTopK            int     `validate:"min=1,max=20"`
	SummaryCharBudget   int     `validate:"min=100"`
	SessionHistoryLimit int     `validate:"min=2"`
	DefaultSystemPrompt string
	ReplaceOnReingest   bool // 同名ファイルの再取り込み時に既存ポイントを置き換える
}

// UploadConfig は取り込み可能なファイルの条件
type UploadConfig struct {
	MaxFileSize       int64    `validate:"gt=0"`
	AllowedExtensions []string `validate:"min=1,dive,startswith=."`
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json text"`
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
			User:     getEnv("DB_USER", "docrag"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "docrag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey:               getEnv("OPENAI_API_KEY", ""),
			BaseURL:              getEnv("OPENAI_BASE_URL", ""),
			EmbeddingModel:       getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension:   getEnvAsInt("EMBEDDING_DIMENSION", 1536),
			ChatModel:            getEnv("CHAT_MODEL", "gpt-4o-mini"),
			EmbeddingTimeout:     getEnvAsDuration("EMBEDDING_TIMEOUT", 60*time.Second),
			EmbeddingConcurrency: getEnvAsInt("EMBEDDING_CONCURRENCY", 4),
			EmbeddingRateLimit:   getEnvAsFloat("EMBEDDING_RATE_LIMIT", 0),

			EmbeddingSendDimensions: getEnvAsBool("EMBEDDING_SEND_DIMENSIONS", true),
		},
		Anthropic: AnthropicConfig{
			APIKey:    getEnv("ANTHROPIC_API_KEY", ""),
			Model:     getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
			MaxTokens: getEnvAsInt("ANTHROPIC_MAX_TOKENS", 4096),
		},
		Completion: CompletionConfig{
			Provider:    getEnv("COMPLETION_PROVIDER", "openai"),
			Timeout:     getEnvAsDuration("COMPLETION_TIMEOUT", 120*time.Second),
			Temperature: getEnvAsFloat("COMPLETION_TEMPERATURE", 0.7),
		},
		VectorStore: VectorStoreConfig{
			Backend:        getEnv("VECTOR_STORE", "pgvector"),
			CollectionName: getEnv("COLLECTION_NAME", "documents"),
			DistanceMetric: getEnv("DISTANCE_METRIC", "cosine"),
			QdrantURL:      getEnv("QDRANT_URL", "http://localhost:6333"),
			QdrantAPIKey:   getEnv("QDRANT_API_KEY", ""),
			Timeout:        getEnvAsDuration("VECTOR_STORE_TIMEOUT", 60*time.Second),
		},
		RAG: RAGConfig{
			ChunkSize:           getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap:        getEnvAsInt("CHUNK_OVERLAP", 200),
			TopK:                getEnvAsInt("TOP_K_RESULTS", 5),
			SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.7),
			ChatTopK:            getEnvAsInt("CHAT_TOP_K", 3),
			SummaryCharBudget:   getEnvAsInt("SUMMARY_CHAR_BUDGET", 4000),
			SessionHistoryLimit: getEnvAsInt("SESSION_HISTORY_LIMIT", 20),
			DefaultSystemPrompt: getEnv("DEFAULT_SYSTEM_PROMPT", ""),
			ReplaceOnReingest:   getEnvAsBool("REPLACE_ON_REINGEST", false),
		},
		Upload: UploadConfig{
			MaxFileSize:       int64(getEnvAsInt("MAX_FILE_SIZE", 50*1024*1024)),
			AllowedExtensions: getEnvAsList("ALLOWED_EXTENSIONS", []string{".pdf", ".doc", ".docx", ".txt", ".md"}),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は各項目の範囲と項目間の制約を検証します
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed on '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.RAG.ChunkOverlap > c.RAG.ChunkSize/2 {
		return fmt.Errorf("invalid configuration: CHUNK_OVERLAP (%d) must not exceed half of CHUNK_SIZE (%d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if c.Completion.Provider == "anthropic" && c.Anthropic.APIKey == "" {
		return errors.New("invalid configuration: ANTHROPIC_API_KEY is required when COMPLETION_PROVIDER=anthropic")
	}
	return nil
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

// getEnvAsDuration は環境変数を time.Duration として取得します。
// "90s" のような形式のほか、単位なしの数値は秒として扱います。
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList はカンマ区切りの環境変数をスライスとして取得します
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, strings.ToLower(v))
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
