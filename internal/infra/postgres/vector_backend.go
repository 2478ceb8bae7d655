package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"github.com/jinford/doc-rag/internal/core/vectorstore"
	"github.com/jinford/doc-rag/internal/platform/database"
)

// undefinedTable は PostgreSQL の relation does not exist エラーコード
const undefinedTable = "42P01"

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// DB は VectorBackend が使用する接続。*pgxpool.Pool が満たす
type DB interface {
	database.Beginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// VectorBackend は pgvector を使ったベクトルストア。
// コレクションごとに1テーブルを作成し、ペイロードは jsonb に保存する。
type VectorBackend struct {
	db     DB
	metric vectorstore.Metric
}

// NewVectorBackend は新しい VectorBackend を作成する。
// metric は検索時のスコア計算に使い、コレクション作成時の指定と一致させる。
func NewVectorBackend(db DB, metric vectorstore.Metric) *VectorBackend {
	if metric == "" {
		metric = vectorstore.MetricCosine
	}
	return &VectorBackend{db: db, metric: metric}
}

func (b *VectorBackend) Ping(ctx context.Context) error {
	return b.db.Ping(ctx)
}

func (b *VectorBackend) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}

	var exists bool
	err := b.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check collection %s: %w", name, err)
	}
	return exists, nil
}

// CreateCollection は拡張・テーブル・インデックスを作成する。
// 複数プロセスからの同時作成はアドバイザリロックで直列化する。
func (b *VectorBackend) CreateCollection(ctx context.Context, cfg vectorstore.CollectionConfig) error {
	if err := validateName(cfg.Name); err != nil {
		return err
	}
	ops, err := operatorClass(cfg.Metric)
	if err != nil {
		return err
	}

	table := pgx.Identifier{cfg.Name}.Sanitize()
	embeddingIndex := pgx.Identifier{cfg.Name + "_embedding_idx"}.Sanitize()
	payloadIndex := pgx.Identifier{cfg.Name + "_payload_idx"}.Sanitize()

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id uuid PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			payload jsonb NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, table, cfg.Dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding %s)`, embeddingIndex, table, ops),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING gin (payload jsonb_path_ops)`, payloadIndex, table),
	}

	_, err = database.Transact(ctx, b.db, func(tx pgx.Tx) (struct{}, error) {
		if err := database.AcquireXactLock(ctx, tx, database.GenerateLockID("collection", cfg.Name)); err != nil {
			return struct{}{}, err
		}
		for _, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return struct{}{}, fmt.Errorf("create collection %s: %w", cfg.Name, err)
			}
		}
		return struct{}{}, nil
	})
	return err
}

func (b *VectorBackend) Upsert(ctx context.Context, name string, points []vectorstore.Point) error {
	if err := validateName(name); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, payload, created_at)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (id) DO UPDATE
		SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload, created_at = EXCLUDED.created_at`,
		pgx.Identifier{name}.Sanitize())

	batch := &pgx.Batch{}
	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		batch.Queue(query, UUIDToPgtype(p.ID), pgvector.NewVector(p.Vector), string(payload), p.Payload.CreatedAt)
	}

	_, err := database.Transact(ctx, b.db, func(tx pgx.Tx) (struct{}, error) {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return struct{}{}, wrapTableError(name, fmt.Errorf("upsert points: %w", err))
		}
		return struct{}{}, nil
	})
	return err
}

func (b *VectorBackend) Search(ctx context.Context, name string, q vectorstore.SearchQuery) ([]vectorstore.Hit, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	score, err := scoreExpression(b.metric)
	if err != nil {
		return nil, err
	}
	filter, err := q.Filter.JSON()
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}

	sql := fmt.Sprintf(`
		SELECT id, payload, score FROM (
			SELECT id, payload, %s AS score
			FROM %s
			WHERE payload @> $2::jsonb
		) ranked
		WHERE score >= $3
		ORDER BY score DESC, (payload->>'chunk_index')::int, id
		LIMIT $4`, score, pgx.Identifier{name}.Sanitize())

	rows, err := b.db.Query(ctx, sql, pgvector.NewVector(q.Vector), string(filter), q.Threshold, q.Limit)
	if err != nil {
		return nil, wrapTableError(name, fmt.Errorf("search: %w", err))
	}
	defer rows.Close()

	var hits []vectorstore.Hit
	for rows.Next() {
		hit, err := scanHit(rows, true)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapTableError(name, fmt.Errorf("search: %w", err))
	}
	return hits, nil
}

func (b *VectorBackend) Scroll(ctx context.Context, name string, filter vectorstore.Filter, limit int) ([]vectorstore.Hit, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	raw, err := filter.JSON()
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}

	sql := fmt.Sprintf(`
		SELECT id, payload FROM %s
		WHERE payload @> $1::jsonb
		ORDER BY (payload->>'chunk_index')::int, id
		LIMIT $2`, pgx.Identifier{name}.Sanitize())

	rows, err := b.db.Query(ctx, sql, string(raw), limit)
	if err != nil {
		return nil, wrapTableError(name, fmt.Errorf("scroll: %w", err))
	}
	defer rows.Close()

	var hits []vectorstore.Hit
	for rows.Next() {
		hit, err := scanHit(rows, false)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapTableError(name, fmt.Errorf("scroll: %w", err))
	}
	return hits, nil
}

func (b *VectorBackend) Delete(ctx context.Context, name string, filter vectorstore.Filter) (int64, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}
	raw, err := filter.JSON()
	if err != nil {
		return 0, fmt.Errorf("encode filter: %w", err)
	}

	tag, err := b.db.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE payload @> $1::jsonb`, pgx.Identifier{name}.Sanitize()),
		string(raw))
	if err != nil {
		return 0, wrapTableError(name, fmt.Errorf("delete: %w", err))
	}
	return tag.RowsAffected(), nil
}

func (b *VectorBackend) Stats(ctx context.Context, name string) (vectorstore.CollectionStats, error) {
	if err := validateName(name); err != nil {
		return vectorstore.CollectionStats{}, err
	}

	stats := vectorstore.CollectionStats{Status: "green"}
	err := b.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT count(*), count(embedding) FROM %s`, pgx.Identifier{name}.Sanitize()),
	).Scan(&stats.PointCount, &stats.VectorCount)
	if err != nil {
		return vectorstore.CollectionStats{}, wrapTableError(name, fmt.Errorf("stats: %w", err))
	}
	return stats, nil
}

func scanHit(rows pgx.Rows, withScore bool) (vectorstore.Hit, error) {
	var (
		point   vectorstore.Point
		id      pgtype.UUID
		payload []byte
		score   float64
		err     error
	)
	if withScore {
		err = rows.Scan(&id, &payload, &score)
	} else {
		err = rows.Scan(&id, &payload)
	}
	if err != nil {
		return vectorstore.Hit{}, fmt.Errorf("scan point: %w", err)
	}

	point.ID = PgtypeToUUID(id)
	if point.Payload, err = DecodePayload(payload); err != nil {
		return vectorstore.Hit{}, err
	}
	return point.ToHit(score), nil
}

// scoreExpression は大きいほど類似するスコアの SQL 式を返す。$1 はクエリベクトル
func scoreExpression(metric vectorstore.Metric) (string, error) {
	switch metric {
	case vectorstore.MetricCosine, "":
		return "1 - (embedding <=> $1)", nil
	case vectorstore.MetricDot:
		// <#> は負の内積を返す
		return "(embedding <#> $1) * -1", nil
	default:
		return "", fmt.Errorf("%w: unsupported metric %q", vectorstore.ErrInvalidInput, metric)
	}
}

func operatorClass(metric vectorstore.Metric) (string, error) {
	switch metric {
	case vectorstore.MetricCosine, "":
		return "vector_cosine_ops", nil
	case vectorstore.MetricDot:
		return "vector_ip_ops", nil
	default:
		return "", fmt.Errorf("%w: unsupported metric %q", vectorstore.ErrInvalidInput, metric)
	}
}

func validateName(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: invalid collection name %q", vectorstore.ErrInvalidInput, name)
	}
	return nil
}

func wrapTableError(name string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
	}
	return err
}

var _ vectorstore.Backend = (*VectorBackend)(nil)
