package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/doc-rag/internal/core/vectorstore"
)

// QueryEmbedder はクエリ文字列をベクトル化する
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Searcher は類似検索を行う
type Searcher interface {
	Search(ctx context.Context, query vectorstore.SearchQuery) ([]vectorstore.Hit, error)
}

// Retriever はクエリに類似したチャンクと出典を取得する
type Retriever struct {
	embedder QueryEmbedder
	searcher Searcher
	logger   *slog.Logger
}

// Option は Retriever のオプション設定
type Option func(*Retriever)

// WithLogger はロガーを差し替える
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New は新しい Retriever を作成する
func New(embedder QueryEmbedder, searcher Searcher, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		searcher: searcher,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve はクエリを埋め込み、閾値以上のヒットと出典を返す。
// 該当なしはエラーではなく空の結果になる。
func (r *Retriever) Retrieve(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	vector, err := r.embedder.EmbedOne(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.searcher.Search(ctx, vectorstore.SearchQuery{
		Vector:    vector,
		Limit:     req.K,
		Threshold: req.Threshold,
		Filter:    req.Filter,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	r.logger.Debug("検索が完了しました",
		"k", req.K,
		"threshold", req.Threshold,
		"hits", len(hits),
	)

	return &Result{
		Hits:    hits,
		Sources: Attribute(hits),
	}, nil
}

func validate(req Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("%w: query is empty", ErrInvalidRequest)
	}
	if req.K < 1 {
		return fmt.Errorf("%w: k must be at least 1, got %d", ErrInvalidRequest, req.K)
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be within [0, 1], got %v", ErrInvalidRequest, req.Threshold)
	}
	return nil
}

// Attribute はヒットを document_id ごとに集計する。
// 出現順を保ち、スコアは最大値、件数はヒット数とする。
// document_id を持たないヒットは出典にならないため数えない。
func Attribute(hits []vectorstore.Hit) []SourceAttribution {
	sources := make([]SourceAttribution, 0)
	index := make(map[string]int)

	for _, h := range hits {
		id := h.Metadata.DocumentID
		if id == "" {
			continue
		}
		if i, ok := index[id]; ok {
			sources[i].ChunkCount++
			if h.Score > sources[i].RelevanceScore {
				sources[i].RelevanceScore = h.Score
			}
			continue
		}

		index[id] = len(sources)
		sources = append(sources, SourceAttribution{
			DocumentID:     id,
			Filename:       h.Metadata.Filename,
			RelevanceScore: h.Score,
			ChunkCount:     1,
		})
	}
	return sources
}
