package rag

import (
	"time"

	"github.com/jinford/doc-rag/internal/core/llm"
	"github.com/jinford/doc-rag/internal/core/prompt"
	"github.com/jinford/doc-rag/internal/core/retrieval"
	"github.com/jinford/doc-rag/internal/core/vectorstore"
)

// Settings はパイプラインの既定値
type Settings struct {
	DefaultSystemPrompt string  `json:"-"`
	TopK                int     `json:"top_k"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	ChatTopK            int     `json:"chat_top_k"`          // チャット時の自動検索件数
	SummaryCharBudget   int     `json:"summary_char_budget"` // 要約に渡す最大文字数
}

// DefaultSettings はデフォルトの Settings を返す
func DefaultSettings() Settings {
	return Settings{
		DefaultSystemPrompt: prompt.DefaultSystemPrompt,
		TopK:                5,
		SimilarityThreshold: 0.7,
		ChatTopK:            3,
		SummaryCharBudget:   4000,
	}
}

// DocumentMetadata は抽出済みドキュメントの情報
type DocumentMetadata struct {
	DocumentID      string    `json:"document_id"`
	Filename        string    `json:"filename"`
	FileSize        int64     `json:"file_size"`
	ProcessedAt     time.Time `json:"processed_at"`
	TotalChunks     int       `json:"total_chunks"`
	TotalCharacters int       `json:"total_characters"`
}

// IngestRequest は抽出済みテキストの取り込み要求
type IngestRequest struct {
	Filename string
	FileSize int64
	Text     string
	// ReplaceExisting が true の場合、同じファイル名の既存ポイントを先に削除する
	ReplaceExisting bool
}

// IngestResult は取り込み結果
type IngestResult struct {
	Document            DocumentMetadata `json:"document"`
	ChunksProcessed     int              `json:"chunks_processed"`
	EmbeddingsGenerated int              `json:"embeddings_generated"`
	PointsStored        int              `json:"points_stored"`
	ReplacedPoints      int64            `json:"replaced_points,omitempty"`
}

// QueryRequest は単発の質問
type QueryRequest struct {
	Query        string
	SystemPrompt string   // 空なら Settings.DefaultSystemPrompt
	TopK         int      // 0 なら Settings.TopK
	Threshold    *float64 // nil なら Settings.SimilarityThreshold
	Filter       vectorstore.Filter
}

// QueryResult は単発の質問への回答
type QueryResult struct {
	Response      string                        `json:"response"`
	Query         string                        `json:"query"`
	Sources       []retrieval.SourceAttribution `json:"sources"`
	ContextChunks int                           `json:"context_chunks"`
	ContextUsed   bool                          `json:"context_used"`
	ModelUsed     string                        `json:"model_used"`
	Timestamp     time.Time                     `json:"timestamp"`
}

// ChatRequest は会話履歴付きの要求
type ChatRequest struct {
	Messages     []llm.Message
	SystemPrompt string
	AutoRetrieve bool
	Filter       vectorstore.Filter
}

// ChatResult は会話への応答。自動検索の有無にかかわらず同じ形になる
type ChatResult struct {
	Response    string                        `json:"response"`
	Sources     []retrieval.SourceAttribution `json:"sources"`
	ContextUsed bool                          `json:"context_used"`
	ModelUsed   string                        `json:"model_used"`
	Timestamp   time.Time                     `json:"timestamp"`
}

// DocumentSummary はドキュメント要約
type DocumentSummary struct {
	DocumentID      string    `json:"document_id"`
	Filename        string    `json:"filename"`
	Summary         string    `json:"summary"`
	ChunkCount      int       `json:"chunk_count"`
	TotalCharacters int       `json:"total_characters"`
	ProcessedAt     time.Time `json:"processed_at"`
	ModelUsed       string    `json:"model_used"`
}

// Suggestions は質問候補
type Suggestions struct {
	Questions   []string `json:"suggestions"`
	RawResponse string   `json:"raw_response"`
}

// SystemStats はストアとモデルの状態
type SystemStats struct {
	StoreAvailable bool                        `json:"store_available"`
	Collection     string                      `json:"collection"`
	Stats          vectorstore.CollectionStats `json:"stats"`
	EmbeddingModel string                      `json:"embedding_model"`
	ChatModel      string                      `json:"chat_model"`
	Settings       Settings                    `json:"settings"`
}
