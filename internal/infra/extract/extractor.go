// Package extract はファイルからプレーンテキストを取り出す。
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Extractor は拡張子に応じてテキストを抽出し、正規化して返す
type Extractor struct {
	tempDir string
	logger  *slog.Logger
}

type Option func(*Extractor)

// WithTempDir は壊れたPDFを書き直すときの一時ディレクトリを指定する
func WithTempDir(dir string) Option {
	return func(e *Extractor) {
		e.tempDir = dir
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor は新しい Extractor を作成する
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		tempDir: os.TempDir(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SupportedExtensions は抽出可能な拡張子
var SupportedExtensions = []string{".txt", ".md", ".pdf", ".docx"}

// Extract は path のファイルからテキストを抽出する
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md":
		text, err = e.extractText(path)
	case ".pdf":
		text, err = e.extractPDF(path)
	case ".docx":
		text, err = e.extractDOCX(path)
	case ".doc":
		return "", fmt.Errorf("%w: .doc is not supported, convert the file to .docx or .pdf", ErrUnsupportedFormat)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrExtractionFailed, filepath.Base(path), err)
	}

	return Normalize(text), nil
}
