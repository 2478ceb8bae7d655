package openai

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"

	"github.com/jinford/doc-rag/internal/core/llm"
)

// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")

// mapError はSDKのエラーを llm の分類に変換する。
// タイムアウト、レート制限、5xx は一時的な失敗として扱う。
func mapError(op string, err error) error {
	if llm.IsTimeout(err) {
		return fmt.Errorf("%w: %s: %w", llm.ErrProviderUnavailable, op, err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %s: status %d", llm.ErrProviderUnavailable, op, apiErr.StatusCode)
		}
		return fmt.Errorf("%w: %s: status %d", llm.ErrProviderFailed, op, apiErr.StatusCode)
	}

	// 接続エラーなどレスポンスが得られなかった場合
	return fmt.Errorf("%w: %s: %w", llm.ErrProviderUnavailable, op, err)
}
