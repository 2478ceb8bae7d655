package extract

import "errors"

var (
	// ErrUnsupportedFormat は抽出に対応していない拡張子の場合のエラー
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrExtractionFailed はファイルの読み込みや解析に失敗した場合のエラー
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrInvalidFile はファイル名・サイズ・拡張子の検証に失敗した場合のエラー
	ErrInvalidFile = errors.New("invalid file")
)
