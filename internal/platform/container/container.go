package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/doc-rag/internal/core/chunk"
	"github.com/jinford/doc-rag/internal/core/embedding"
	"github.com/jinford/doc-rag/internal/core/llm"
	"github.com/jinford/doc-rag/internal/core/rag"
	"github.com/jinford/doc-rag/internal/core/retrieval"
	"github.com/jinford/doc-rag/internal/core/session"
	"github.com/jinford/doc-rag/internal/core/vectorstore"
	"github.com/jinford/doc-rag/internal/infra/anthropic"
	"github.com/jinford/doc-rag/internal/infra/extract"
	"github.com/jinford/doc-rag/internal/infra/memory"
	"github.com/jinford/doc-rag/internal/infra/openai"
	"github.com/jinford/doc-rag/internal/infra/postgres"
	"github.com/jinford/doc-rag/internal/infra/qdrant"
	"github.com/jinford/doc-rag/internal/infra/tokenizer"
	"github.com/jinford/doc-rag/internal/platform/config"
	"github.com/jinford/doc-rag/internal/platform/database"
)

// Container はアプリケーションの依存関係を保持する
type Container struct {
	Config    *config.Config
	Logger    *slog.Logger
	Database  *database.Database // VECTOR_STORE=pgvector の場合のみ
	Extractor *extract.Extractor
	Chunker   *chunk.Chunker
	Embedder  *embedding.Orchestrator
	Completer llm.Completer
	Store     *vectorstore.Store
	Retriever *retrieval.Retriever
	RAG       *rag.Service
	Sessions  *session.Service
}

type containerOptions struct {
	embeddingProvider llm.Embedder
	completer         llm.Completer
	vectorBackend     vectorstore.Backend
	sessionStore      session.Store
	tokenCounter      chunk.TokenCounter
}

// ContainerOption は Container 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerEmbeddingProvider は埋め込みプロバイダを差し替える
func WithContainerEmbeddingProvider(provider llm.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embeddingProvider = provider
	}
}

// WithContainerCompleter は補完プロバイダを差し替える
func WithContainerCompleter(completer llm.Completer) ContainerOption {
	return func(opts *containerOptions) {
		opts.completer = completer
	}
}

// WithContainerVectorBackend はベクトルストアのバックエンドを差し替える
func WithContainerVectorBackend(backend vectorstore.Backend) ContainerOption {
	return func(opts *containerOptions) {
		opts.vectorBackend = backend
	}
}

// WithContainerSessionStore はセッションの保存先を差し替える
func WithContainerSessionStore(store session.Store) ContainerOption {
	return func(opts *containerOptions) {
		opts.sessionStore = store
	}
}

// WithContainerTokenCounter は TokenCounter を差し替える
func WithContainerTokenCounter(counter chunk.TokenCounter) ContainerOption {
	return func(opts *containerOptions) {
		opts.tokenCounter = counter
	}
}

// New は設定からコンテナを生成する。
// ベクトルストアに接続できない場合もエラーにせず、縮退モードの Store を保持する。
func New(ctx context.Context, logger *slog.Logger, cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	options := containerOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Container{
		Config:    cfg,
		Logger:    logger,
		Extractor: extract.NewExtractor(extract.WithLogger(logger)),
	}

	metric, err := vectorstore.ParseMetric(cfg.VectorStore.DistanceMetric)
	if err != nil {
		return nil, err
	}

	// TokenCounter
	tokenCounter := options.tokenCounter
	if tokenCounter == nil {
		counter, err := tokenizer.New(tokenizer.DefaultEncoding)
		if err != nil {
			// トークン数はメタデータ用途のみのため、取得できなくても続行する
			logger.Warn("TokenCounter を初期化できないためトークン数を記録しません", "error", err)
		} else {
			tokenCounter = counter
		}
	}
	var chunkOpts []chunk.Option
	if tokenCounter != nil {
		chunkOpts = append(chunkOpts, chunk.WithTokenCounter(tokenCounter))
	}
	c.Chunker = chunk.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, chunkOpts...)

	// Embedder (OpenAI 互換)
	provider := options.embeddingProvider
	if provider == nil {
		provider = newEmbeddingProvider(cfg)
	}
	embedOpts := []embedding.Option{
		embedding.WithConcurrency(cfg.OpenAI.EmbeddingConcurrency),
		embedding.WithLogger(logger),
	}
	if cfg.OpenAI.EmbeddingRateLimit > 0 {
		embedOpts = append(embedOpts, embedding.WithRateLimit(cfg.OpenAI.EmbeddingRateLimit, cfg.OpenAI.EmbeddingConcurrency))
	}
	c.Embedder = embedding.New(provider, embedOpts...)

	// Completer
	c.Completer = options.completer
	if c.Completer == nil {
		completer, err := newCompleter(cfg)
		if err != nil {
			return nil, fmt.Errorf("補完クライアントの初期化に失敗しました: %w", err)
		}
		c.Completer = completer
	}

	// VectorStore
	backend := options.vectorBackend
	if backend == nil {
		backend, err = c.newVectorBackend(ctx, metric)
		if err != nil {
			return nil, err
		}
	}
	c.Store, err = vectorstore.NewStore(ctx, backend, vectorstore.CollectionConfig{
		Name:      cfg.VectorStore.CollectionName,
		Dimension: cfg.OpenAI.EmbeddingDimension,
		Metric:    metric,
	},
		vectorstore.WithTimeout(cfg.VectorStore.Timeout),
		vectorstore.WithLogger(logger),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("ベクトルストアの初期化に失敗しました: %w", err)
	}

	c.Retriever = retrieval.New(c.Embedder, c.Store, retrieval.WithLogger(logger))

	settings := rag.DefaultSettings()
	settings.TopK = cfg.RAG.TopK
	settings.SimilarityThreshold = cfg.RAG.SimilarityThreshold
	settings.ChatTopK = cfg.RAG.ChatTopK
	settings.SummaryCharBudget = cfg.RAG.SummaryCharBudget
	if cfg.RAG.DefaultSystemPrompt != "" {
		settings.DefaultSystemPrompt = cfg.RAG.DefaultSystemPrompt
	}
	c.RAG = rag.NewService(c.Chunker, c.Embedder, c.Store, c.Retriever, c.Completer, settings, rag.WithLogger(logger))

	sessionStore := options.sessionStore
	if sessionStore == nil {
		sessionStore = memory.NewSessionStore()
	}
	c.Sessions = session.NewService(sessionStore, c.RAG,
		session.WithHistoryLimit(cfg.RAG.SessionHistoryLimit),
		session.WithLogger(logger),
	)

	logger.Debug("コンテナを初期化しました",
		"vectorStore", cfg.VectorStore.Backend,
		"storeAvailable", c.Store.Available(),
		"embeddingModel", c.Embedder.ModelName(),
		"chatModel", c.Completer.ModelName(),
	)
	return c, nil
}

func newEmbeddingProvider(cfg *config.Config) *openai.Embedder {
	opts := []openai.EmbedderOption{
		openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		openai.WithEmbeddingTimeout(cfg.OpenAI.EmbeddingTimeout),
		openai.WithEmbeddingBaseURL(cfg.OpenAI.BaseURL),
	}
	if !cfg.OpenAI.EmbeddingSendDimensions {
		opts = append(opts, openai.WithoutDimensionsParam())
	}
	return openai.NewEmbedder(cfg.OpenAI.APIKey, opts...)
}

func newCompleter(cfg *config.Config) (llm.Completer, error) {
	switch cfg.Completion.Provider {
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:      cfg.Anthropic.APIKey,
			Model:       cfg.Anthropic.Model,
			MaxTokens:   cfg.Anthropic.MaxTokens,
			Temperature: cfg.Completion.Temperature,
			Timeout:     cfg.Completion.Timeout,
		})
	default:
		apiKey := cfg.OpenAI.APIKey
		if apiKey == "" && cfg.OpenAI.BaseURL != "" {
			// Ollama などの互換サーバーはキーを検証しない
			apiKey = "unused"
		}
		return openai.NewCompleter(apiKey,
			openai.WithChatModel(cfg.OpenAI.ChatModel),
			openai.WithCompletionBaseURL(cfg.OpenAI.BaseURL),
			openai.WithCompletionTimeout(cfg.Completion.Timeout),
			openai.WithTemperature(cfg.Completion.Temperature),
		)
	}
}

func (c *Container) newVectorBackend(ctx context.Context, metric vectorstore.Metric) (vectorstore.Backend, error) {
	cfg := c.Config
	switch cfg.VectorStore.Backend {
	case "memory":
		return memory.NewVectorBackend(), nil
	case "qdrant":
		return qdrant.New(qdrant.Config{
			URL:     cfg.VectorStore.QdrantURL,
			APIKey:  cfg.VectorStore.QdrantAPIKey,
			Timeout: cfg.VectorStore.Timeout,
		}), nil
	default:
		db, err := database.Open(ctx, database.ConnectionParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
		}
		c.Database = db
		return postgres.NewVectorBackend(db.Pool, metric), nil
	}
}

// Close は内部リソースを解放する。
func (c *Container) Close() {
	if c != nil && c.Database != nil {
		c.Database.Close()
	}
}
