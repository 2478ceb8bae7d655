package vectorstore

import "errors"

var (
	// ErrStoreUnavailable は起動時にバックエンドへ到達できず縮退モードにある場合に返される
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrStoreFailed はバックエンドの操作が失敗した場合に返される
	ErrStoreFailed = errors.New("vector store operation failed")

	// ErrCollectionNotFound はコレクションが存在しない場合に返される
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidInput は入力が不正な場合に返される
	ErrInvalidInput = errors.New("invalid vector store input")
)
