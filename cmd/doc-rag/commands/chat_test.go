package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-rag/internal/core/llm"
	"github.com/jinford/doc-rag/internal/core/retrieval"
	"github.com/jinford/doc-rag/internal/core/session"
)

type stubSessions struct {
	SendFunc    func(ctx context.Context, req session.SendRequest) (*session.Reply, error)
	HistoryFunc func(ctx context.Context, sessionID string) ([]session.Message, error)
}

func (s *stubSessions) Send(ctx context.Context, req session.SendRequest) (*session.Reply, error) {
	return s.SendFunc(ctx, req)
}

func (s *stubSessions) History(ctx context.Context, sessionID string) ([]session.Message, error) {
	return s.HistoryFunc(ctx, sessionID)
}

func newTestChatLoop(sessions sessionSender) *chatLoop {
	return &chatLoop{
		sessions:    sessions,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		useRAG:      true,
		showSources: true,
	}
}

func TestChatLoop_Run(t *testing.T) {
	var requests []session.SendRequest
	stub := &stubSessions{
		SendFunc: func(ctx context.Context, req session.SendRequest) (*session.Reply, error) {
			requests = append(requests, req)
			return &session.Reply{
				SessionID:   "s-1",
				Response:    "回答: " + req.Message,
				ContextUsed: true,
				Sources: []retrieval.SourceAttribution{
					{DocumentID: "doc-1", Filename: "guide.md", RelevanceScore: 0.8, ChunkCount: 1},
				},
			}, nil
		},
		HistoryFunc: func(ctx context.Context, sessionID string) ([]session.Message, error) {
			assert.Equal(t, "s-1", sessionID)
			ts := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
			return []session.Message{
				{Role: llm.RoleUser, Content: "こんにちは", Timestamp: ts},
				{Role: llm.RoleAssistant, Content: "回答: こんにちは", Timestamp: ts},
			}, nil
		},
	}

	loop := newTestChatLoop(stub)
	var out bytes.Buffer
	in := strings.NewReader("こんにちは\n\n/history\n次の質問\n/exit\n無視される\n")

	require.NoError(t, loop.run(context.Background(), in, &out))

	require.Len(t, requests, 2)
	assert.Equal(t, "", requests[0].SessionID)
	assert.True(t, requests[0].UseRAG)
	assert.Equal(t, "s-1", requests[1].SessionID)
	assert.Equal(t, "次の質問", requests[1].Message)

	text := out.String()
	assert.Contains(t, text, "回答: こんにちは")
	assert.Contains(t, text, "guide.md")
	assert.Contains(t, text, "セッション s-1 (2 件)")
	assert.Contains(t, text, "[09:00:00] user: こんにちは")
	assert.NotContains(t, text, "無視される")
}

func TestChatLoop_SendError(t *testing.T) {
	stub := &stubSessions{
		SendFunc: func(ctx context.Context, req session.SendRequest) (*session.Reply, error) {
			return nil, llm.ErrProviderUnavailable
		},
	}

	loop := newTestChatLoop(stub)
	var out bytes.Buffer

	require.NoError(t, loop.run(context.Background(), strings.NewReader("質問\n"), &out))

	assert.Contains(t, out.String(), "エラー: the AI service is temporarily unavailable, please try again")
	assert.Equal(t, "", loop.sessionID)
}

func TestChatLoop_HistoryBeforeFirstMessage(t *testing.T) {
	loop := newTestChatLoop(&stubSessions{})
	var out bytes.Buffer

	require.NoError(t, loop.run(context.Background(), strings.NewReader("/history\n"), &out))
	assert.Contains(t, out.String(), "履歴はまだありません")
}
