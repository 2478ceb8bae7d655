package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/doc-rag/internal/core/llm"
	"github.com/jinford/doc-rag/internal/core/rag"
	"github.com/jinford/doc-rag/internal/core/retrieval"
)

// Chatter は会話履歴から応答を生成する
type Chatter interface {
	Chat(ctx context.Context, req rag.ChatRequest) (*rag.ChatResult, error)
}

var _ Chatter = (*rag.Service)(nil)

// SendRequest はセッションへのメッセージ送信
type SendRequest struct {
	SessionID    string // 空なら新しいセッションを作成する
	Message      string
	UseRAG       bool
	SystemPrompt string
}

// Reply は送信に対する応答
type Reply struct {
	SessionID   string                        `json:"session_id"`
	Response    string                        `json:"response"`
	Sources     []retrieval.SourceAttribution `json:"sources"`
	ContextUsed bool                          `json:"context_used"`
	ModelUsed   string                        `json:"model_used"`
	Timestamp   time.Time                     `json:"timestamp"`
}

// Service はセッション履歴を保ちながら会話を進める
type Service struct {
	store   Store
	chatter Chatter
	limit   int
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Service)

// WithHistoryLimit はセッションが保持する最大メッセージ数を設定する
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService は新しい Service を作成する
func NewService(store Store, chatter Chatter, opts ...Option) *Service {
	s := &Service{
		store:   store,
		chatter: chatter,
		limit:   DefaultHistoryLimit,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send は履歴にメッセージを加えて応答を生成する。
// 履歴への追記は応答が得られた場合のみ行う。
func (s *Service) Send(ctx context.Context, req SendRequest) (*Reply, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	sessionID := req.SessionID
	var history []Message
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else {
		sess, err := s.store.Get(ctx, sessionID)
		switch {
		case errors.Is(err, ErrSessionNotFound):
		case err != nil:
			return nil, fmt.Errorf("load session %s: %w", sessionID, err)
		default:
			history = sess.Messages
		}
	}

	userMessage := Message{Role: llm.RoleUser, Content: req.Message, Timestamp: s.now()}
	messages := append(ToLLMMessages(history), llm.Message{Role: userMessage.Role, Content: userMessage.Content})

	result, err := s.chatter.Chat(ctx, rag.ChatRequest{
		Messages:     messages,
		SystemPrompt: req.SystemPrompt,
		AutoRetrieve: req.UseRAG,
	})
	if err != nil {
		return nil, err
	}

	assistantMessage := Message{
		Role:        llm.RoleAssistant,
		Content:     result.Response,
		Timestamp:   result.Timestamp,
		Sources:     result.Sources,
		ContextUsed: result.ContextUsed,
	}
	if err := s.store.Append(ctx, sessionID, userMessage, assistantMessage); err != nil {
		return nil, fmt.Errorf("append session %s: %w", sessionID, err)
	}
	if err := s.store.EvictOldest(ctx, sessionID, s.limit); err != nil {
		return nil, fmt.Errorf("evict session %s: %w", sessionID, err)
	}

	s.logger.Debug("セッションに応答を追加しました",
		"sessionID", sessionID,
		"historyBefore", len(history),
		"contextUsed", result.ContextUsed,
	)

	return &Reply{
		SessionID:   sessionID,
		Response:    result.Response,
		Sources:     result.Sources,
		ContextUsed: result.ContextUsed,
		ModelUsed:   result.ModelUsed,
		Timestamp:   result.Timestamp,
	}, nil
}

// History はセッションのメッセージを返す
func (s *Service) History(ctx context.Context, sessionID string) ([]Message, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Messages, nil
}

// Delete はセッションを削除する。存在しなければ ErrSessionNotFound
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	deleted, err := s.store.Delete(ctx, sessionID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]Summary, error) {
	return s.store.List(ctx)
}

func (s *Service) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// Count はセッション数と総メッセージ数を返す
func (s *Service) Count(ctx context.Context) (Counts, error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return Counts{}, err
	}

	counts := Counts{Sessions: len(sessions)}
	for _, sess := range sessions {
		counts.Messages += sess.MessageCount
	}
	return counts, nil
}
