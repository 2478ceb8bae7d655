package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "pgvector", cfg.VectorStore.Backend)
	assert.Equal(t, "cosine", cfg.VectorStore.DistanceMetric)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.InDelta(t, 0.7, cfg.RAG.SimilarityThreshold, 1e-9)
	assert.Equal(t, 3, cfg.RAG.ChatTopK)
	assert.Equal(t, 20, cfg.RAG.SessionHistoryLimit)
	assert.Equal(t, 120*time.Second, cfg.Completion.Timeout)
	assert.Equal(t, int64(50*1024*1024), cfg.Upload.MaxFileSize)
	assert.True(t, cfg.OpenAI.EmbeddingSendDimensions)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"VECTOR_STORE=qdrant\n"+
			"QDRANT_URL=http://qdrant:6333\n"+
			"CHUNK_SIZE=800\n"+
			"CHUNK_OVERLAP=100\n"+
			"EMBEDDING_TIMEOUT=90\n"+
			"VECTOR_STORE_TIMEOUT=2m\n"+
			"ALLOWED_EXTENSIONS=.TXT, .md\n"+
			"REPLACE_ON_REINGEST=true\n"+
			"EMBEDDING_SEND_DIMENSIONS=false\n",
	), 0o644))

	// godotenv は既存の環境変数を上書きしないため、テスト後に消す
	for _, key := range []string{"VECTOR_STORE", "QDRANT_URL", "CHUNK_SIZE", "CHUNK_OVERLAP", "EMBEDDING_TIMEOUT", "VECTOR_STORE_TIMEOUT", "ALLOWED_EXTENSIONS", "REPLACE_ON_REINGEST", "EMBEDDING_SEND_DIMENSIONS"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qdrant", cfg.VectorStore.Backend)
	assert.Equal(t, "http://qdrant:6333", cfg.VectorStore.QdrantURL)
	assert.Equal(t, 800, cfg.RAG.ChunkSize)
	assert.Equal(t, 100, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 90*time.Second, cfg.OpenAI.EmbeddingTimeout)
	assert.Equal(t, 2*time.Minute, cfg.VectorStore.Timeout)
	assert.Equal(t, []string{".txt", ".md"}, cfg.Upload.AllowedExtensions)
	assert.True(t, cfg.RAG.ReplaceOnReingest)
	assert.False(t, cfg.OpenAI.EmbeddingSendDimensions)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "オーバーラップがチャンクサイズの半分を超える",
			env:     map[string]string{"CHUNK_SIZE": "1000", "CHUNK_OVERLAP": "600"},
			wantErr: "CHUNK_OVERLAP",
		},
		{
			name:    "チャンクサイズが範囲外",
			env:     map[string]string{"CHUNK_SIZE": "50", "CHUNK_OVERLAP": "0"},
			wantErr: "RAG.ChunkSize",
		},
		{
			name:    "未対応の距離関数",
			env:     map[string]string{"DISTANCE_METRIC": "euclid"},
			wantErr: "VectorStore.DistanceMetric",
		},
		{
			name:    "閾値が範囲外",
			env:     map[string]string{"SIMILARITY_THRESHOLD": "1.5"},
			wantErr: "RAG.SimilarityThreshold",
		},
		{
			name:    "top_k が範囲外",
			env:     map[string]string{"TOP_K_RESULTS": "21"},
			wantErr: "RAG.TopK",
		},
		{
			name:    "AnthropicのAPIキーなし",
			env:     map[string]string{"COMPLETION_PROVIDER": "anthropic", "ANTHROPIC_API_KEY": ""},
			wantErr: "ANTHROPIC_API_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
