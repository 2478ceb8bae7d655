package retrieval

import (
	"errors"

	"github.com/jinford/doc-rag/internal/core/vectorstore"
)

// ErrInvalidRequest は検索条件が不正な場合のエラー
var ErrInvalidRequest = errors.New("invalid retrieval request")

// Request は検索条件
type Request struct {
	Query     string
	K         int
	Threshold float64
	Filter    vectorstore.Filter
}

// SourceAttribution は回答に寄与したドキュメント単位の集計
type SourceAttribution struct {
	DocumentID     string  `json:"document_id"`
	Filename       string  `json:"filename"`
	RelevanceScore float64 `json:"relevance_score"`
	ChunkCount     int     `json:"chunk_count"`
}

// Result は検索結果
type Result struct {
	Hits    []vectorstore.Hit
	Sources []SourceAttribution
}
