package session

import (
	"context"
	"errors"
	"time"

	"github.com/jinford/doc-rag/internal/core/llm"
	"github.com/jinford/doc-rag/internal/core/retrieval"
)

// DefaultHistoryLimit はセッションが保持する最大メッセージ数
const DefaultHistoryLimit = 20

var (
	// ErrSessionNotFound はセッションが存在しない場合のエラー
	ErrSessionNotFound = errors.New("session not found")

	// ErrEmptyMessage は空のメッセージを送ろうとした場合のエラー
	ErrEmptyMessage = errors.New("message is empty")
)

// Message はセッション履歴の1メッセージ
type Message struct {
	Role        llm.Role                      `json:"role"`
	Content     string                        `json:"content"`
	Timestamp   time.Time                     `json:"timestamp"`
	Sources     []retrieval.SourceAttribution `json:"sources,omitempty"`
	ContextUsed bool                          `json:"context_used,omitempty"`
}

// Session は1つの会話
type Session struct {
	ID           string    `json:"id"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Summary はセッション一覧の1行
type Summary struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Counts はストア全体の件数
type Counts struct {
	Sessions int `json:"sessions"`
	Messages int `json:"messages"`
}

// Store はセッションの保存先
type Store interface {
	// Get はセッションを返す。存在しなければ ErrSessionNotFound
	Get(ctx context.Context, id string) (*Session, error)
	// Append はメッセージを追加する。セッションが無ければ作成する
	Append(ctx context.Context, id string, messages ...Message) error
	// EvictOldest は新しい keep 件を残して古いメッセージを削除する
	EvictOldest(ctx context.Context, id string, keep int) error
	Delete(ctx context.Context, id string) (bool, error)
	// List は最終更新が新しい順にセッションを返す
	List(ctx context.Context) ([]Summary, error)
	Clear(ctx context.Context) error
}

// ToLLMMessages は履歴を補完APIへ渡す形式に変換する
func ToLLMMessages(messages []Message) []llm.Message {
	out := make([]llm.Message, len(messages))
	for i, m := range messages {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
