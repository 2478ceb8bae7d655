package llm

import (
	"context"
	"errors"
)

var (
	// ErrProviderUnavailable はプロバイダに到達できない、タイムアウト、レート制限などの一時的な失敗
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderFailed はプロバイダが不正な応答やエラー応答を返した場合の失敗
	ErrProviderFailed = errors.New("provider error")
)

// IsTimeout は err がコンテキストのタイムアウトまたはキャンセルに起因するか判定する
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
