package vectorstore

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTimeout は1操作あたりの既定タイムアウト
	DefaultTimeout = 60 * time.Second

	// DefaultScrollLimit はドキュメント単位の取得件数上限
	DefaultScrollLimit = 10000
)

// Store はコレクションのライフサイクルを管理し、バックエンドの失敗を
// ErrStoreFailed / ErrStoreUnavailable に正規化するアダプタ
type Store struct {
	backend     Backend
	collection  CollectionConfig
	timeout     time.Duration
	scrollLimit int
	available   bool
	logger      *slog.Logger
	now         func() time.Time
}

// Option は Store のオプション設定
type Option func(*Store)

// WithTimeout は1操作あたりのタイムアウトを設定する
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithScrollLimit はドキュメント単位取得の上限件数を設定する
func WithScrollLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.scrollLimit = n
		}
	}
}

// WithLogger はロガーを差し替える
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock は created_at の採番に使う時計を差し替える
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore はバックエンドへの疎通を確認してコレクションを用意する。
// 疎通できない場合はエラーを返さず縮退モードの Store を返し、
// 以後の全操作が ErrStoreUnavailable を返す。
func NewStore(ctx context.Context, backend Backend, collection CollectionConfig, opts ...Option) (*Store, error) {
	if collection.Name == "" {
		return nil, fmt.Errorf("%w: collection name is empty", ErrInvalidInput)
	}
	if collection.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", ErrInvalidInput)
	}
	if collection.Metric == "" {
		collection.Metric = MetricCosine
	}

	s := &Store{
		backend:     backend,
		collection:  collection,
		timeout:     DefaultTimeout,
		scrollLimit: DefaultScrollLimit,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.call(ctx, "ping", func(ctx context.Context) error {
		return backend.Ping(ctx)
	}); err != nil {
		s.logger.Warn("ベクトルストアに接続できないため縮退モードで起動します",
			"collection", collection.Name,
			"error", err,
		)
		return s, nil
	}
	s.available = true

	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Available はバックエンドが利用可能か返す
func (s *Store) Available() bool {
	return s.available
}

// Collection はコレクション定義を返す
func (s *Store) Collection() CollectionConfig {
	return s.collection
}

// EnsureCollection はコレクションが無ければ作成する。既存コレクションの次元は検証しない
func (s *Store) EnsureCollection(ctx context.Context) error {
	return s.call(ctx, "ensure collection", func(ctx context.Context) error {
		exists, err := s.backend.CollectionExists(ctx, s.collection.Name)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		if err := s.backend.CreateCollection(ctx, s.collection); err != nil {
			return err
		}
		s.logger.Info("コレクションを作成しました",
			"collection", s.collection.Name,
			"dimension", s.collection.Dimension,
			"metric", s.collection.Metric,
		)
		return nil
	})
}

// Upsert はレコードごとに新しいIDを採番して保存し、保存件数を返す
func (s *Store) Upsert(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	createdAt := s.now().UTC()
	points := make([]Point, len(records))
	for i, r := range records {
		if len(r.Vector) != s.collection.Dimension {
			return 0, fmt.Errorf("%w: record %d has %d dimensions, collection %q expects %d",
				ErrInvalidInput, i, len(r.Vector), s.collection.Name, s.collection.Dimension)
		}
		payload := r.Payload
		payload.CreatedAt = createdAt
		points[i] = Point{
			ID:      uuid.New(),
			Vector:  r.Vector,
			Payload: payload,
		}
	}

	err := s.call(ctx, "upsert", func(ctx context.Context) error {
		return s.backend.Upsert(ctx, s.collection.Name, points)
	})
	if err != nil {
		return 0, err
	}
	return len(points), nil
}

// Search は類似度が Threshold 以上のヒットをスコア降順で最大 Limit 件返す
func (s *Store) Search(ctx context.Context, query SearchQuery) ([]Hit, error) {
	if query.Limit < 1 {
		return nil, fmt.Errorf("%w: limit must be at least 1", ErrInvalidInput)
	}
	if len(query.Vector) != s.collection.Dimension {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, expected %d",
			ErrInvalidInput, len(query.Vector), s.collection.Dimension)
	}

	var hits []Hit
	err := s.call(ctx, "search", func(ctx context.Context) error {
		var err error
		hits, err = s.backend.Search(ctx, s.collection.Name, query)
		return err
	})
	if err != nil {
		return nil, err
	}

	hits = slices.DeleteFunc(hits, func(h Hit) bool {
		return h.Score < query.Threshold
	})
	SortHits(hits)
	if len(hits) > query.Limit {
		hits = hits[:query.Limit]
	}
	return hits, nil
}

// DocumentChunks は document_id に一致するチャンクを chunk_index 順に返す
func (s *Store) DocumentChunks(ctx context.Context, documentID string) ([]Hit, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id is empty", ErrInvalidInput)
	}

	var hits []Hit
	err := s.call(ctx, "scroll", func(ctx context.Context) error {
		var err error
		hits, err = s.backend.Scroll(ctx, s.collection.Name, ByDocument(documentID), s.scrollLimit)
		return err
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(a.Metadata.ChunkIndex, b.Metadata.ChunkIndex)
	})
	return hits, nil
}

// Delete はフィルタに一致するポイントを削除する。空のフィルタは拒否する
func (s *Store) Delete(ctx context.Context, filter Filter) (int64, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("%w: delete requires a filter", ErrInvalidInput)
	}

	var deleted int64
	err := s.call(ctx, "delete", func(ctx context.Context) error {
		var err error
		deleted, err = s.backend.Delete(ctx, s.collection.Name, filter)
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Stats はコレクションの統計情報を返す
func (s *Store) Stats(ctx context.Context) (CollectionStats, error) {
	var stats CollectionStats
	err := s.call(ctx, "stats", func(ctx context.Context) error {
		var err error
		stats, err = s.backend.Stats(ctx, s.collection.Name)
		return err
	})
	return stats, err
}

// call はタイムアウト付きでバックエンド操作を実行し、エラーとパニックを ErrStoreFailed に変換する
func (s *Store) call(ctx context.Context, op string, fn func(ctx context.Context) error) (err error) {
	if !s.available && op != "ping" {
		return ErrStoreUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("ベクトルストア操作でパニックが発生しました", "op", op, "panic", r)
			err = fmt.Errorf("%w: %s: %v", ErrStoreFailed, op, r)
		}
	}()

	if err := fn(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStoreFailed, op, err)
	}
	return nil
}

// SortHits はスコア降順、同点は chunk_index 昇順、ID 昇順で安定に並べる
func SortHits(hits []Hit) {
	slices.SortStableFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Metadata.ChunkIndex, b.Metadata.ChunkIndex); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}
