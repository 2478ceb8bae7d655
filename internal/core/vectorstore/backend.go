package vectorstore

import "context"

// Backend はベクトルデータベースへのアクセスを抽象化する
type Backend interface {
	Ping(ctx context.Context) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	// CreateCollection は同時作成による重複を成功として扱わなければならない
	CreateCollection(ctx context.Context, cfg CollectionConfig) error
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search は Filter を事前フィルタとして適用し、Threshold 以上のヒットをスコア降順で返す
	Search(ctx context.Context, collection string, query SearchQuery) ([]Hit, error)
	// Scroll は Filter に一致するポイントをベクトルなしで最大 limit 件返す
	Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]Hit, error)
	Delete(ctx context.Context, collection string, filter Filter) (int64, error)
	Stats(ctx context.Context, collection string) (CollectionStats, error)
}
