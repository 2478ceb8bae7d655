package session_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-rag/internal/core/llm"
	"github.com/jinford/doc-rag/internal/core/rag"
	"github.com/jinford/doc-rag/internal/core/retrieval"
	"github.com/jinford/doc-rag/internal/core/session"
	"github.com/jinford/doc-rag/internal/infra/memory"
)

type stubChatter struct {
	ChatFunc func(ctx context.Context, req rag.ChatRequest) (*rag.ChatResult, error)

	requests []rag.ChatRequest
}

func (s *stubChatter) Chat(ctx context.Context, req rag.ChatRequest) (*rag.ChatResult, error) {
	s.requests = append(s.requests, req)
	if s.ChatFunc != nil {
		return s.ChatFunc(ctx, req)
	}
	return &rag.ChatResult{
		Response:  fmt.Sprintf("reply %d", len(s.requests)),
		Sources:   []retrieval.SourceAttribution{},
		ModelUsed: "stub-chat",
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func TestSend_NewSession(t *testing.T) {
	ctx := context.Background()
	chatter := &stubChatter{}
	svc := session.NewService(memory.NewSessionStore(), chatter)

	reply, err := svc.Send(ctx, session.SendRequest{Message: "hello", UseRAG: true, SystemPrompt: "sys"})
	require.NoError(t, err)

	assert.NotEmpty(t, reply.SessionID)
	assert.Equal(t, "reply 1", reply.Response)
	require.Len(t, chatter.requests, 1)
	assert.Equal(t, []llm.Message{llm.UserMessage("hello")}, chatter.requests[0].Messages)
	assert.True(t, chatter.requests[0].AutoRetrieve)
	assert.Equal(t, "sys", chatter.requests[0].SystemPrompt)

	history, err := svc.History(ctx, reply.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, llm.RoleUser, history[0].Role)
	assert.Equal(t, llm.RoleAssistant, history[1].Role)
	assert.Equal(t, "reply 1", history[1].Content)
}

func TestSend_CarriesHistory(t *testing.T) {
	ctx := context.Background()
	chatter := &stubChatter{}
	svc := session.NewService(memory.NewSessionStore(), chatter)

	first, err := svc.Send(ctx, session.SendRequest{SessionID: "s1", Message: "one"})
	require.NoError(t, err)
	assert.Equal(t, "s1", first.SessionID)

	_, err = svc.Send(ctx, session.SendRequest{SessionID: "s1", Message: "two"})
	require.NoError(t, err)

	require.Len(t, chatter.requests, 2)
	assert.Equal(t, []llm.Message{
		llm.UserMessage("one"),
		{Role: llm.RoleAssistant, Content: "reply 1"},
		llm.UserMessage("two"),
	}, chatter.requests[1].Messages)
}

func TestSend_FailureLeavesHistoryUntouched(t *testing.T) {
	ctx := context.Background()
	chatter := &stubChatter{}
	svc := session.NewService(memory.NewSessionStore(), chatter)

	_, err := svc.Send(ctx, session.SendRequest{SessionID: "s1", Message: "one"})
	require.NoError(t, err)

	chatter.ChatFunc = func(context.Context, rag.ChatRequest) (*rag.ChatResult, error) {
		return nil, llm.ErrProviderUnavailable
	}
	_, err = svc.Send(ctx, session.SendRequest{SessionID: "s1", Message: "two"})
	require.ErrorIs(t, err, llm.ErrProviderUnavailable)

	history, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSend_EvictsToLimit(t *testing.T) {
	ctx := context.Background()
	svc := session.NewService(memory.NewSessionStore(), &stubChatter{}, session.WithHistoryLimit(4))

	for i := range 5 {
		_, err := svc.Send(ctx, session.SendRequest{SessionID: "s1", Message: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "m3", history[0].Content)
	assert.Equal(t, "reply 5", history[3].Content)
}

func TestSend_EmptyMessage(t *testing.T) {
	chatter := &stubChatter{}
	svc := session.NewService(memory.NewSessionStore(), chatter)

	_, err := svc.Send(context.Background(), session.SendRequest{Message: "   "})
	assert.ErrorIs(t, err, session.ErrEmptyMessage)
	assert.Empty(t, chatter.requests)
}

func TestDeleteCountClear(t *testing.T) {
	ctx := context.Background()
	svc := session.NewService(memory.NewSessionStore(), &stubChatter{})

	for _, id := range []string{"a", "b"} {
		_, err := svc.Send(ctx, session.SendRequest{SessionID: id, Message: "hi"})
		require.NoError(t, err)
	}

	counts, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Counts{Sessions: 2, Messages: 4}, counts)

	require.NoError(t, svc.Delete(ctx, "a"))
	err = svc.Delete(ctx, "a")
	assert.True(t, errors.Is(err, session.ErrSessionNotFound))

	_, err = svc.History(ctx, "a")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	require.NoError(t, svc.Clear(ctx))
	counts, err = svc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Sessions)
}
