package prompt

import (
	"fmt"
	"strings"

	"github.com/jinford/doc-rag/internal/core/vectorstore"
)

// ContextSeparator はコンテキスト内のチャンク同士の区切り
const ContextSeparator = "\n\n---\n\n"

// AssembleContext は検索ヒットを出典タグ付きのブロックに整形して連結する。
// ヒットがなければ空文字列を返す。
func AssembleContext(hits []vectorstore.Hit) string {
	blocks := make([]string, 0, len(hits))
	for _, h := range hits {
		if strings.TrimSpace(h.Text) == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("[document: %s, part %d]\n%s", h.Metadata.Filename, h.Metadata.ChunkIndex+1, h.Text))
	}
	return strings.Join(blocks, ContextSeparator)
}
