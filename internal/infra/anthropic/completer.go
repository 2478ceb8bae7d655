// Package anthropic は Anthropic Messages API を使った llm.Completer を提供する。
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jinford/doc-rag/internal/core/llm"
)

const (
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultMaxTokens = 4096
	DefaultTimeout   = 120 * time.Second
)

// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
var ErrAPIKeyNotSet = errors.New("Anthropic API key not set: please set ANTHROPIC_API_KEY environment variable")

// Config は Completer の設定
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	BaseURL     string
}

// Completer は Anthropic Messages API を使用した llm.Completer 実装
type Completer struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

// New は新しい Completer を作成する
func New(cfg Config) (*Completer, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Completer{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}, nil
}

// ModelName はモデル名を返す
func (c *Completer) ModelName() string {
	return c.model
}

// Complete は会話履歴とシステムプロンプトから応答を生成する
func (c *Completer) Complete(ctx context.Context, messages []llm.Message, systemPrompt string) (llm.Completion, error) {
	if len(messages) == 0 {
		return llm.Completion{}, fmt.Errorf("%w: messages cannot be empty", llm.ErrProviderFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages:  toMessageParams(messages),
	}
	if c.temperature > 0 {
		params.Temperature = anthropic.Float(c.temperature)
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.Completion{}, mapError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return llm.Completion{}, fmt.Errorf("%w: no text in response", llm.ErrProviderFailed)
	}

	return llm.Completion{
		Text:       text.String(),
		Model:      string(resp.Model),
		TokensUsed: int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}, nil
}

func toMessageParams(messages []llm.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == llm.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return out
}

func mapError(err error) error {
	if llm.IsTimeout(err) {
		return fmt.Errorf("%w: messages: %w", llm.ErrProviderUnavailable, err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		// 529 は overloaded
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: messages: status %d", llm.ErrProviderUnavailable, apiErr.StatusCode)
		}
		return fmt.Errorf("%w: messages: status %d", llm.ErrProviderFailed, apiErr.StatusCode)
	}
	return fmt.Errorf("%w: messages: %w", llm.ErrProviderUnavailable, err)
}

var _ llm.Completer = (*Completer)(nil)
