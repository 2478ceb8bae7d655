package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jinford/doc-rag/internal/core/llm"
)

// Embedder は OpenAI 互換の Embeddings API でテキストをベクトルに変換する
type Embedder struct {
	client    openai.Client
	model     string
	dimension int
	timeout   time.Duration
}

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension はOpenAI推奨のデフォルト次元
	DefaultEmbeddingDimension = 1536
	// DefaultEmbeddingTimeout は1回の呼び出しのタイムアウト
	DefaultEmbeddingTimeout = 60 * time.Second
)

type embedderOptions struct {
	model             string
	dimension         int
	timeout           time.Duration
	baseURL           string
	requestDimensions bool
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*embedderOptions)

// WithEmbeddingModel はモデル名を上書きする
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		o.model = model
	}
}

// WithEmbeddingDimension はベクトル次元を上書きする
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		o.dimension = dimension
	}
}

// WithEmbeddingTimeout は1回の呼び出しのタイムアウトを上書きする
func WithEmbeddingTimeout(timeout time.Duration) EmbedderOption {
	return func(o *embedderOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithEmbeddingBaseURL は接続先を OpenAI 互換のエンドポイント (Ollama の /v1 など) に変更する
func WithEmbeddingBaseURL(baseURL string) EmbedderOption {
	return func(o *embedderOptions) {
		o.baseURL = baseURL
	}
}

// WithoutDimensionsParam はリクエストに dimensions を付けない。
// dimensions を受け付けない互換サーバー向け。
func WithoutDimensionsParam() EmbedderOption {
	return func(o *embedderOptions) {
		o.requestDimensions = false
	}
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(apiKey string, opts ...EmbedderOption) *Embedder {
	options := embedderOptions{
		model:             DefaultEmbeddingModel,
		dimension:         DefaultEmbeddingDimension,
		timeout:           DefaultEmbeddingTimeout,
		requestDimensions: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if options.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(options.baseURL))
	}

	dimension := options.dimension
	if !options.requestDimensions {
		dimension = 0
	}

	return &Embedder{
		client:    openai.NewClient(clientOpts...),
		model:     options.model,
		dimension: dimension,
		timeout:   options.timeout,
	}
}

// Embed は単一テキストの Embedding を生成する
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	}
	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, mapError("embeddings", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embeddings generated", llm.ErrProviderFailed)
	}

	data := resp.Data[0].Embedding
	vector := make([]float32, len(data))
	for i, v := range data {
		vector[i] = float32(v)
	}
	return vector, nil
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}

// Dimension はベクトル次元数を返す。0 の場合は検証しない
func (e *Embedder) Dimension() int {
	return e.dimension
}

// インターフェース実装の確認
var _ llm.Embedder = (*Embedder)(nil)
