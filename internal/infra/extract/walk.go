package extract

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnoreFile はディレクトリ取り込み時に読む除外パターンファイル名
const DefaultIgnoreFile = ".ragignore"

var defaultIgnorePatterns = []string{
	".git",
	".svn",
	".DS_Store",
	"node_modules",
	"__pycache__",
}

// IgnoreFilter は gitignore 形式のパターンでパスを除外する
type IgnoreFilter struct {
	matcher *gitignore.GitIgnore
}

// NewIgnoreFilter は root 直下の ignoreFile とデフォルトパターンからフィルタを作成する。
// ignoreFile が存在しない場合はデフォルトパターンのみを使う。
func NewIgnoreFilter(root, ignoreFile string) (*IgnoreFilter, error) {
	if ignoreFile == "" {
		ignoreFile = DefaultIgnoreFile
	}

	path := ignoreFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, ignoreFile)
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &IgnoreFilter{matcher: gitignore.CompileIgnoreLines(defaultIgnorePatterns...)}, nil
		}
		return nil, err
	}

	matcher, err := gitignore.CompileIgnoreFileAndLines(path, defaultIgnorePatterns...)
	if err != nil {
		return nil, err
	}
	return &IgnoreFilter{matcher: matcher}, nil
}

// ShouldIgnore は root からの相対パスが除外対象か判定する
func (f *IgnoreFilter) ShouldIgnore(relPath string) bool {
	return f.matcher.MatchesPath(filepath.ToSlash(relPath))
}

// Walk は root 配下の抽出可能なファイルを辞書順で返す。root がファイルならそれだけを返す
func Walk(root string, filter *IgnoreFilter) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if filter != nil && filter.ShouldIgnore(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		if slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path))) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)
	return files, nil
}
