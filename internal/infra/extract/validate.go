package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultMaxFileSize はアップロード可能な最大ファイルサイズ (50MB)
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

var dangerousFilenameParts = []string{"..", "/", "\\", "<", ">", ":", `"`, "|", "?", "*"}

// Limits はファイル検証の条件
type Limits struct {
	MaxFileSize       int64
	AllowedExtensions []string
}

// DefaultLimits はデフォルトの検証条件を返す
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:       DefaultMaxFileSize,
		AllowedExtensions: []string{".pdf", ".doc", ".docx", ".txt", ".md"},
	}
}

// ValidateFile はファイル名・サイズ・拡張子を検証する。
// 違反はすべてまとめて ErrInvalidFile でラップして返す。
func ValidateFile(name string, size int64, limits Limits) error {
	var errs []error

	if strings.TrimSpace(name) == "" {
		errs = append(errs, errors.New("filename cannot be empty"))
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(limits.AllowedExtensions, ext) {
		errs = append(errs, fmt.Errorf("file type %q not allowed, supported: %s", ext, strings.Join(limits.AllowedExtensions, ", ")))
	}

	if limits.MaxFileSize > 0 && size > limits.MaxFileSize {
		errs = append(errs, fmt.Errorf("file too large, maximum size: %.1f MB", float64(limits.MaxFileSize)/(1024*1024)))
	}

	for _, part := range dangerousFilenameParts {
		if strings.Contains(name, part) {
			errs = append(errs, errors.New("filename contains invalid characters"))
			break
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidFile, errors.Join(errs...))
}
