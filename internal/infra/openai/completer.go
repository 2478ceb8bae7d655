package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jinford/doc-rag/internal/core/llm"
)

const (
	// DefaultChatModel はデフォルトで使用するチャットモデル
	DefaultChatModel = "gpt-4o-mini"

	// DefaultCompletionTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultCompletionTimeout = 120 * time.Second
)

// Completer は OpenAI 互換の Chat Completions API を使用した llm.Completer 実装
type Completer struct {
	client      openai.Client
	model       string
	timeout     time.Duration
	temperature *float64
	maxTokens   int
}

type CompleterOption func(*Completer, *[]option.RequestOption)

// WithChatModel はモデル名を上書きする
func WithChatModel(model string) CompleterOption {
	return func(c *Completer, _ *[]option.RequestOption) {
		if model != "" {
			c.model = model
		}
	}
}

// WithCompletionTimeout はタイムアウトを上書きする
func WithCompletionTimeout(timeout time.Duration) CompleterOption {
	return func(c *Completer, _ *[]option.RequestOption) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithTemperature は temperature を指定する。未指定ならサーバーの既定値
func WithTemperature(temperature float64) CompleterOption {
	return func(c *Completer, _ *[]option.RequestOption) {
		c.temperature = &temperature
	}
}

// WithMaxTokens は応答の最大トークン数を指定する
func WithMaxTokens(n int) CompleterOption {
	return func(c *Completer, _ *[]option.RequestOption) {
		c.maxTokens = n
	}
}

// WithCompletionBaseURL は接続先を OpenAI 互換のエンドポイントに変更する
func WithCompletionBaseURL(baseURL string) CompleterOption {
	return func(_ *Completer, opts *[]option.RequestOption) {
		if baseURL != "" {
			*opts = append(*opts, option.WithBaseURL(baseURL))
		}
	}
}

// NewCompleter は新しい Completer を作成する
func NewCompleter(apiKey string, opts ...CompleterOption) (*Completer, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	c := &Completer{
		model:   DefaultChatModel,
		timeout: DefaultCompletionTimeout,
	}
	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	for _, opt := range opts {
		opt(c, &clientOpts)
	}
	c.client = openai.NewClient(clientOpts...)

	return c, nil
}

// ModelName はモデル名を返す
func (c *Completer) ModelName() string {
	return c.model
}

// Complete はシステムプロンプトと会話履歴から応答を生成する
func (c *Completer) Complete(ctx context.Context, messages []llm.Message, systemPrompt string) (llm.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: toChatMessages(messages, systemPrompt),
	}
	if c.temperature != nil {
		params.Temperature = openai.Float(*c.temperature)
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.Completion{}, mapError("chat completion", err)
	}

	if len(completion.Choices) == 0 {
		return llm.Completion{}, fmt.Errorf("%w: no completion choices returned", llm.ErrProviderFailed)
	}

	return llm.Completion{
		Text:       completion.Choices[0].Message.Content,
		Model:      completion.Model,
		TokensUsed: int(completion.Usage.TotalTokens),
	}, nil
}

func toChatMessages(messages []llm.Message, systemPrompt string) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, openai.SystemMessage(systemPrompt))
	}
	for _, m := range messages {
		switch m.Role {
		case llm.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// インターフェース実装の確認
var _ llm.Completer = (*Completer)(nil)
