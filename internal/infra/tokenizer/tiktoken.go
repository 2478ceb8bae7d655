// Package tokenizer は tiktoken によるトークン数の計測を提供する。
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jinford/doc-rag/internal/core/chunk"
)

// DefaultEncoding は OpenAI の埋め込み・チャットモデルが使うエンコーディング
const DefaultEncoding = "cl100k_base"

// Counter は tiktoken を利用した chunk.TokenCounter 実装
type Counter struct {
	encoding *tiktoken.Tiktoken
}

var _ chunk.TokenCounter = (*Counter)(nil)

// New は指定エンコーディングの Counter を作成する。空なら DefaultEncoding
func New(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
	}
	return &Counter{encoding: enc}, nil
}

func (c *Counter) CountTokens(text string) int {
	if c.encoding == nil {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// TrimToTokenLimit は text を先頭から maxTokens トークンまでに切り詰める
func (c *Counter) TrimToTokenLimit(text string, maxTokens int) string {
	if c.encoding == nil {
		return text
	}
	tokens := c.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return c.encoding.Decode(tokens[:maxTokens])
}
