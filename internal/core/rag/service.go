package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jinford/doc-rag/internal/core/chunk"
	"github.com/jinford/doc-rag/internal/core/llm"
	"github.com/jinford/doc-rag/internal/core/prompt"
	"github.com/jinford/doc-rag/internal/core/retrieval"
	"github.com/jinford/doc-rag/internal/core/vectorstore"
)

// Chunker はテキストをチャンクへ分割する
type Chunker interface {
	Chunk(text string) []chunk.Chunk
}

// Embedder は複数テキストを順序通りにベクトル化する
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// DocumentStore はベクトルストアの操作
type DocumentStore interface {
	Available() bool
	Collection() vectorstore.CollectionConfig
	Upsert(ctx context.Context, records []vectorstore.Record) (int, error)
	DocumentChunks(ctx context.Context, documentID string) ([]vectorstore.Hit, error)
	Delete(ctx context.Context, filter vectorstore.Filter) (int64, error)
	Stats(ctx context.Context) (vectorstore.CollectionStats, error)
}

// Retriever はクエリに関連するチャンクを取得する
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error)
}

// Service は取り込み・質問応答・会話・要約のパイプラインを実行する。
// 呼び出し間で状態を持たない。
type Service struct {
	chunker   Chunker
	embedder  Embedder
	store     DocumentStore
	retriever Retriever
	completer llm.Completer
	settings  Settings
	logger    *slog.Logger
	now       func() time.Time
}

// Option は Service のオプション設定
type Option func(*Service)

// WithLogger はロガーを差し替える
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock は時刻の取得元を差し替える
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService は新しい Service を作成する
func NewService(
	chunker Chunker,
	embedder Embedder,
	store DocumentStore,
	retriever Retriever,
	completer llm.Completer,
	settings Settings,
	opts ...Option,
) *Service {
	s := &Service{
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		retriever: retriever,
		completer: completer,
		settings:  settings,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings は現在の既定値を返す
func (s *Service) Settings() Settings {
	return s.settings
}

// StoreDocument はチャンクを埋め込み、メタデータ付きのポイントとして保存する。
// 埋め込みまたは保存の最初の失敗で中断し、再試行はしない。
func (s *Service) StoreDocument(ctx context.Context, chunks []chunk.Chunk, meta DocumentMetadata) (*IngestResult, error) {
	if len(chunks) == 0 {
		return nil, validationError("document has no chunks")
	}
	if meta.DocumentID == "" {
		return nil, validationError("document id is empty")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	s.logger.Info("Embeddingを生成します", "documentID", meta.DocumentID, "chunks", len(chunks))
	vectors, err := s.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return nil, stageError(StageEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return nil, stageError(StageEmbedding, fmt.Errorf("%w: got %d embeddings for %d chunks", llm.ErrProviderFailed, len(vectors), len(chunks)))
	}

	model := s.embedder.ModelName()
	records := make([]vectorstore.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vectorstore.Record{
			Vector: vectors[i],
			Payload: vectorstore.Payload{
				Text: c.Text,
				Metadata: vectorstore.Metadata{
					DocumentID:      meta.DocumentID,
					Filename:        meta.Filename,
					FileSize:        meta.FileSize,
					ProcessedAt:     meta.ProcessedAt,
					TotalChunks:     meta.TotalChunks,
					TotalCharacters: meta.TotalCharacters,
					ChunkIndex:      c.Index,
					CharacterCount:  c.CharacterCount,
					TokenCount:      c.TokenCount,
					EmbeddingModel:  model,
				},
			},
		}
	}

	stored, err := s.store.Upsert(ctx, records)
	if err != nil {
		return nil, stageError(StageStorage, err)
	}

	s.logger.Info("ドキュメントを保存しました",
		"documentID", meta.DocumentID,
		"filename", meta.Filename,
		"points", stored,
	)

	return &IngestResult{
		Document:            meta,
		ChunksProcessed:     len(chunks),
		EmbeddingsGenerated: len(vectors),
		PointsStored:        stored,
	}, nil
}

// IngestText は抽出済みテキストを分割してメタデータを生成し、保存する
func (s *Service) IngestText(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return nil, validationError("filename is empty")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, validationError("no text content in %s", req.Filename)
	}

	chunks := s.chunker.Chunk(req.Text)
	if len(chunks) == 0 {
		return nil, validationError("no chunks produced from %s", req.Filename)
	}

	meta := DocumentMetadata{
		DocumentID:      uuid.NewString(),
		Filename:        req.Filename,
		FileSize:        req.FileSize,
		ProcessedAt:     s.now().UTC(),
		TotalChunks:     len(chunks),
		TotalCharacters: utf8.RuneCountInString(req.Text),
	}

	var replaced int64
	if req.ReplaceExisting {
		n, err := s.store.Delete(ctx, vectorstore.ByFilename(req.Filename))
		if err != nil {
			return nil, stageError(StageStorage, err)
		}
		replaced = n
		if n > 0 {
			s.logger.Info("既存のポイントを削除しました", "filename", req.Filename, "points", n)
		}
	}

	result, err := s.StoreDocument(ctx, chunks, meta)
	if err != nil {
		return nil, err
	}
	result.ReplacedPoints = replaced
	return result, nil
}

// Query は検索結果を文脈として質問に回答する
func (s *Service) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, validationError("query is empty")
	}

	topK := req.TopK
	if topK == 0 {
		topK = s.settings.TopK
	}
	threshold := s.settings.SimilarityThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	s.logger.Info("関連チャンクを検索します", "query", req.Query, "topK", topK, "threshold", threshold)
	found, err := s.retriever.Retrieve(ctx, retrieval.Request{
		Query:     req.Query,
		K:         topK,
		Threshold: threshold,
		Filter:    req.Filter,
	})
	if err != nil {
		return nil, stageError(StageRetrieval, err)
	}

	contextText := prompt.AssembleContext(found.Hits)
	systemPrompt := prompt.BuildSystemPrompt(s.basePrompt(req.SystemPrompt), contextText, req.Query)

	completion, err := s.completer.Complete(ctx, []llm.Message{llm.UserMessage(req.Query)}, systemPrompt)
	if err != nil {
		return nil, stageError(StageCompletion, err)
	}

	s.logger.Info("質問への回答を生成しました",
		"contextChunks", len(found.Hits),
		"sources", len(found.Sources),
	)

	return &QueryResult{
		Response:      completion.Text,
		Query:         req.Query,
		Sources:       found.Sources,
		ContextChunks: len(found.Hits),
		ContextUsed:   contextText != "",
		ModelUsed:     s.modelUsed(completion),
		Timestamp:     s.now(),
	}, nil
}

// Chat は会話履歴全体を補完モデルに渡して応答する。
// AutoRetrieve が有効なら最新のユーザーメッセージで検索し、結果をシステムプロンプトに加える。
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if len(req.Messages) == 0 {
		return nil, validationError("messages are empty")
	}

	var (
		contextText string
		sources     = []retrieval.SourceAttribution{}
		query       string
	)

	if last, ok := llm.LastUserMessage(req.Messages); ok && req.AutoRetrieve && strings.TrimSpace(last.Content) != "" {
		query = last.Content
		found, err := s.retriever.Retrieve(ctx, retrieval.Request{
			Query:     query,
			K:         s.settings.ChatTopK,
			Threshold: s.settings.SimilarityThreshold,
			Filter:    req.Filter,
		})
		if err != nil {
			return nil, stageError(StageRetrieval, err)
		}
		contextText = prompt.AssembleContext(found.Hits)
		sources = found.Sources
	}

	systemPrompt := prompt.BuildSystemPrompt(s.basePrompt(req.SystemPrompt), contextText, query)

	completion, err := s.completer.Complete(ctx, req.Messages, systemPrompt)
	if err != nil {
		return nil, stageError(StageCompletion, err)
	}

	return &ChatResult{
		Response:    completion.Text,
		Sources:     sources,
		ContextUsed: contextText != "",
		ModelUsed:   s.modelUsed(completion),
		Timestamp:   s.now(),
	}, nil
}

// DocumentChunks はドキュメントの全チャンクを chunk_index 順に返す
func (s *Service) DocumentChunks(ctx context.Context, documentID string) ([]vectorstore.Hit, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, validationError("document id is empty")
	}

	hits, err := s.store.DocumentChunks(ctx, documentID)
	if err != nil {
		return nil, stageError(StageLookup, err)
	}
	return hits, nil
}

// DeleteDocument はドキュメントの全ポイントを削除し、削除件数を返す
func (s *Service) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	if strings.TrimSpace(documentID) == "" {
		return 0, validationError("document id is empty")
	}

	deleted, err := s.store.Delete(ctx, vectorstore.ByDocument(documentID))
	if err != nil {
		return 0, stageError(StageStorage, err)
	}

	s.logger.Info("ドキュメントを削除しました", "documentID", documentID, "points", deleted)
	return deleted, nil
}

// SummarizeDocument はドキュメント本文を先頭から文字数上限まで連結して要約する
func (s *Service) SummarizeDocument(ctx context.Context, documentID string) (*DocumentSummary, error) {
	hits, err := s.DocumentChunks(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, stageError(StageLookup, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID))
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	fullText := prompt.Truncate(strings.Join(texts, " "), s.settings.SummaryCharBudget)

	completion, err := s.completer.Complete(ctx,
		[]llm.Message{llm.UserMessage(prompt.BuildSummaryPrompt(fullText))},
		prompt.SummarySystemPrompt,
	)
	if err != nil {
		return nil, stageError(StageCompletion, err)
	}

	first := hits[0].Metadata
	return &DocumentSummary{
		DocumentID:      documentID,
		Filename:        first.Filename,
		Summary:         completion.Text,
		ChunkCount:      len(hits),
		TotalCharacters: first.TotalCharacters,
		ProcessedAt:     first.ProcessedAt,
		ModelUsed:       s.modelUsed(completion),
	}, nil
}

// SuggestQuestions はドキュメントについての質問候補を生成する
func (s *Service) SuggestQuestions(ctx context.Context, documentContext string) (*Suggestions, error) {
	completion, err := s.completer.Complete(ctx,
		[]llm.Message{llm.UserMessage(prompt.BuildSuggestionPrompt(documentContext))},
		prompt.SuggestionSystemPrompt,
	)
	if err != nil {
		return nil, stageError(StageCompletion, err)
	}

	return &Suggestions{
		Questions:   prompt.ParseSuggestions(completion.Text, prompt.DefaultSuggestionCount),
		RawResponse: completion.Text,
	}, nil
}

// Stats はストアの状態と統計を返す。ストアが縮退モードならエラーにせず利用不可として返す
func (s *Service) Stats(ctx context.Context) (*SystemStats, error) {
	result := &SystemStats{
		StoreAvailable: s.store.Available(),
		Collection:     s.store.Collection().Name,
		EmbeddingModel: s.embedder.ModelName(),
		ChatModel:      s.completer.ModelName(),
		Settings:       s.settings,
	}
	if !result.StoreAvailable {
		return result, nil
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, stageError(StageStorage, err)
	}
	result.Stats = stats
	return result, nil
}

func (s *Service) basePrompt(override string) string {
	if override != "" {
		return override
	}
	return s.settings.DefaultSystemPrompt
}

func (s *Service) modelUsed(c llm.Completion) string {
	if c.Model != "" {
		return c.Model
	}
	return s.completer.ModelName()
}
