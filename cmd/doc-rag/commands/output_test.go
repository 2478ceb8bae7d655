package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-rag/internal/core/llm"
	"github.com/jinford/doc-rag/internal/core/rag"
	"github.com/jinford/doc-rag/internal/core/retrieval"
	"github.com/jinford/doc-rag/internal/core/vectorstore"
)

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	result := &rag.QueryResult{
		Response:  "a < b",
		Query:     "比較",
		Sources:   []retrieval.SourceAttribution{},
		ModelUsed: "gpt-4o-mini",
		Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, writeJSON(&buf, result))
	assert.Contains(t, buf.String(), `"response": "a < b"`)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, []any{}, decoded["sources"])
	assert.Equal(t, false, decoded["context_used"])
}

func TestRenderQueryResult(t *testing.T) {
	var buf bytes.Buffer
	renderQueryResult(&buf, &rag.QueryResult{
		Response:      "回答です",
		ContextChunks: 2,
		ContextUsed:   true,
		ModelUsed:     "gpt-4o-mini",
		Sources: []retrieval.SourceAttribution{
			{DocumentID: "doc-1", Filename: "guide.md", RelevanceScore: 0.9123, ChunkCount: 2},
		},
	})

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "回答です\n"))
	assert.Contains(t, out, "guide.md")
	assert.Contains(t, out, "0.912")
	assert.Contains(t, out, "コンテキスト: 2 チャンク")
}

func TestRenderSources_Empty(t *testing.T) {
	var buf bytes.Buffer
	renderSources(&buf, nil)
	assert.Equal(t, "参照ドキュメント: なし\n", buf.String())
}

func TestRenderChunks(t *testing.T) {
	t.Run("チャンクあり", func(t *testing.T) {
		var buf bytes.Buffer
		renderChunks(&buf, "doc-1", []vectorstore.Hit{
			{Text: "first\nchunk", Metadata: vectorstore.Metadata{DocumentID: "doc-1", Filename: "a.txt", TotalChunks: 2, TotalCharacters: 20, ChunkIndex: 0, CharacterCount: 11}},
			{Text: "second", Metadata: vectorstore.Metadata{DocumentID: "doc-1", Filename: "a.txt", TotalChunks: 2, TotalCharacters: 20, ChunkIndex: 1, CharacterCount: 6}},
		})
		out := buf.String()
		assert.Contains(t, out, "a.txt (doc-1) 全 2 チャンク / 20 文字")
		assert.Contains(t, out, "first chunk")
		assert.Contains(t, out, "second")
	})

	t.Run("チャンクなし", func(t *testing.T) {
		var buf bytes.Buffer
		renderChunks(&buf, "missing", nil)
		assert.Equal(t, "ドキュメント missing のチャンクはありません\n", buf.String())
	})
}

func TestRenderStats(t *testing.T) {
	t.Run("利用可能", func(t *testing.T) {
		var buf bytes.Buffer
		renderStats(&buf, &rag.SystemStats{
			StoreAvailable: true,
			Collection:     "documents",
			Stats:          vectorstore.CollectionStats{PointCount: 42, VectorCount: 42, Status: "green"},
			EmbeddingModel: "text-embedding-3-small",
			ChatModel:      "gpt-4o-mini",
			Settings:       rag.DefaultSettings(),
		})
		out := buf.String()
		assert.Contains(t, out, "利用可能")
		assert.Contains(t, out, "42")
		assert.Contains(t, out, "0.70")
	})

	t.Run("利用不可", func(t *testing.T) {
		var buf bytes.Buffer
		renderStats(&buf, &rag.SystemStats{
			Collection: "documents",
			Settings:   rag.DefaultSettings(),
		})
		out := buf.String()
		assert.Contains(t, out, "利用不可")
		assert.NotContains(t, out, "ポイント数")
	})
}

func TestRenderSuggestions(t *testing.T) {
	var buf bytes.Buffer
	renderSuggestions(&buf, &rag.Suggestions{Questions: []string{"何ですか?", "なぜですか?"}})
	assert.Equal(t, "1. 何ですか?\n2. なぜですか?\n", buf.String())

	buf.Reset()
	renderSuggestions(&buf, &rag.Suggestions{RawResponse: "raw"})
	assert.Equal(t, "raw\n", buf.String())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", preview("a\n b\t\tc "))

	long := strings.Repeat("あ", previewLength+5)
	got := preview(long)
	assert.Equal(t, strings.Repeat("あ", previewLength)+"...", got)
}

func TestFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := failure(logger, "失敗", errors.Join(errors.New("https://api.example.com: 503"), llm.ErrProviderUnavailable))

	require.Error(t, err)
	assert.Equal(t, "the AI service is temporarily unavailable, please try again", err.Error())
	assert.NotContains(t, err.Error(), "example.com")
}
