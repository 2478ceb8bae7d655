package vectorstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	PingFunc             func(ctx context.Context) error
	CollectionExistsFunc func(ctx context.Context, name string) (bool, error)
	CreateCollectionFunc func(ctx context.Context, cfg CollectionConfig) error
	UpsertFunc           func(ctx context.Context, collection string, points []Point) error
	SearchFunc           func(ctx context.Context, collection string, query SearchQuery) ([]Hit, error)
	ScrollFunc           func(ctx context.Context, collection string, filter Filter, limit int) ([]Hit, error)
	DeleteFunc           func(ctx context.Context, collection string, filter Filter) (int64, error)
	StatsFunc            func(ctx context.Context, collection string) (CollectionStats, error)
}

func (s *stubBackend) Ping(ctx context.Context) error {
	if s.PingFunc == nil {
		return nil
	}
	return s.PingFunc(ctx)
}

func (s *stubBackend) CollectionExists(ctx context.Context, name string) (bool, error) {
	if s.CollectionExistsFunc == nil {
		return true, nil
	}
	return s.CollectionExistsFunc(ctx, name)
}

func (s *stubBackend) CreateCollection(ctx context.Context, cfg CollectionConfig) error {
	if s.CreateCollectionFunc == nil {
		return nil
	}
	return s.CreateCollectionFunc(ctx, cfg)
}

func (s *stubBackend) Upsert(ctx context.Context, collection string, points []Point) error {
	if s.UpsertFunc == nil {
		return nil
	}
	return s.UpsertFunc(ctx, collection, points)
}

func (s *stubBackend) Search(ctx context.Context, collection string, query SearchQuery) ([]Hit, error) {
	return s.SearchFunc(ctx, collection, query)
}

func (s *stubBackend) Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]Hit, error) {
	return s.ScrollFunc(ctx, collection, filter, limit)
}

func (s *stubBackend) Delete(ctx context.Context, collection string, filter Filter) (int64, error) {
	return s.DeleteFunc(ctx, collection, filter)
}

func (s *stubBackend) Stats(ctx context.Context, collection string) (CollectionStats, error) {
	return s.StatsFunc(ctx, collection)
}

var testCollection = CollectionConfig{Name: "docs", Dimension: 2}

func newTestStore(t *testing.T, backend Backend, opts ...Option) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), backend, testCollection, opts...)
	require.NoError(t, err)
	return store
}

func TestNewStore_CreatesMissingCollection(t *testing.T) {
	var created *CollectionConfig
	backend := &stubBackend{
		CollectionExistsFunc: func(context.Context, string) (bool, error) { return false, nil },
		CreateCollectionFunc: func(_ context.Context, cfg CollectionConfig) error {
			created = &cfg
			return nil
		},
	}

	store := newTestStore(t, backend)

	assert.True(t, store.Available())
	require.NotNil(t, created)
	assert.Equal(t, "docs", created.Name)
	assert.Equal(t, MetricCosine, created.Metric)
}

func TestNewStore_LeavesExistingCollection(t *testing.T) {
	backend := &stubBackend{
		CreateCollectionFunc: func(context.Context, CollectionConfig) error {
			t.Fatal("既存コレクションを再作成してはならない")
			return nil
		},
	}

	store := newTestStore(t, backend)
	assert.True(t, store.Available())
}

func TestNewStore_DegradedWhenUnreachable(t *testing.T) {
	backend := &stubBackend{
		PingFunc: func(context.Context) error { return errors.New("connection refused") },
	}

	store := newTestStore(t, backend)

	assert.False(t, store.Available())

	_, err := store.Upsert(context.Background(), []Record{{Vector: []float32{1, 0}}})
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = store.Search(context.Background(), SearchQuery{Vector: []float32{1, 0}, Limit: 1})
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = store.Delete(context.Background(), ByDocument("doc"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = store.Stats(context.Background())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, "vector store unavailable", err.Error())
}

func TestStore_UpsertAssignsFreshIDs(t *testing.T) {
	var stored []Point
	backend := &stubBackend{
		UpsertFunc: func(_ context.Context, _ string, points []Point) error {
			stored = points
			return nil
		},
	}
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store := newTestStore(t, backend, WithClock(func() time.Time { return now }))

	records := []Record{
		{Vector: []float32{1, 0}, Payload: Payload{Text: "a", Metadata: Metadata{ChunkIndex: 0}}},
		{Vector: []float32{0, 1}, Payload: Payload{Text: "b", Metadata: Metadata{ChunkIndex: 1}}},
	}

	n, err := store.Upsert(context.Background(), records)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, stored, 2)
	assert.NotEqual(t, uuid.Nil, stored[0].ID)
	assert.NotEqual(t, stored[0].ID, stored[1].ID)
	assert.Equal(t, now, stored[0].Payload.CreatedAt)
	assert.Equal(t, "b", stored[1].Payload.Text)
}

func TestStore_UpsertRejectsDimensionMismatch(t *testing.T) {
	store := newTestStore(t, &stubBackend{})

	_, err := store.Upsert(context.Background(), []Record{{Vector: []float32{1, 2, 3}}})

	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStore_SearchWrapsBackendErrors(t *testing.T) {
	backend := &stubBackend{
		SearchFunc: func(context.Context, string, SearchQuery) ([]Hit, error) {
			return nil, errors.New("timeout")
		},
	}
	store := newTestStore(t, backend)

	_, err := store.Search(context.Background(), SearchQuery{Vector: []float32{1, 0}, Limit: 3})

	assert.ErrorIs(t, err, ErrStoreFailed)
	assert.Contains(t, err.Error(), "search")
}

func TestStore_SearchRecoversPanics(t *testing.T) {
	backend := &stubBackend{
		SearchFunc: func(context.Context, string, SearchQuery) ([]Hit, error) {
			panic("nil client")
		},
	}
	store := newTestStore(t, backend)

	_, err := store.Search(context.Background(), SearchQuery{Vector: []float32{1, 0}, Limit: 3})

	assert.ErrorIs(t, err, ErrStoreFailed)
}

func TestStore_SearchEnforcesThresholdAndOrder(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	backend := &stubBackend{
		SearchFunc: func(_ context.Context, _ string, q SearchQuery) ([]Hit, error) {
			assert.Equal(t, ByDocument("doc-1"), q.Filter)
			return []Hit{
				{ID: a, Score: 0.5},
				{ID: b, Score: 0.95},
				{ID: c, Score: 0.8},
			}, nil
		},
	}
	store := newTestStore(t, backend)

	hits, err := store.Search(context.Background(), SearchQuery{
		Vector:    []float32{1, 0},
		Limit:     5,
		Threshold: 0.7,
		Filter:    ByDocument("doc-1"),
	})

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, b, hits[0].ID)
	assert.Equal(t, c, hits[1].ID)
}

func TestStore_DocumentChunksSortedByIndex(t *testing.T) {
	backend := &stubBackend{
		ScrollFunc: func(_ context.Context, _ string, filter Filter, limit int) ([]Hit, error) {
			assert.Equal(t, ByDocument("doc-1"), filter)
			assert.Equal(t, DefaultScrollLimit, limit)
			return []Hit{
				{Metadata: Metadata{ChunkIndex: 2}},
				{Metadata: Metadata{ChunkIndex: 0}},
				{Metadata: Metadata{ChunkIndex: 1}},
			}, nil
		},
	}
	store := newTestStore(t, backend)

	hits, err := store.DocumentChunks(context.Background(), "doc-1")

	require.NoError(t, err)
	require.Len(t, hits, 3)
	for i, h := range hits {
		assert.Equal(t, i, h.Metadata.ChunkIndex)
	}
}

func TestStore_DeleteRequiresFilter(t *testing.T) {
	store := newTestStore(t, &stubBackend{})

	_, err := store.Delete(context.Background(), nil)

	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFilter_Matches(t *testing.T) {
	payload := Payload{Text: "t", Metadata: Metadata{DocumentID: "doc-1", Filename: "a.txt", ChunkIndex: 3}}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "空フィルタ", filter: nil, want: true},
		{name: "document_id 一致", filter: ByDocument("doc-1"), want: true},
		{name: "document_id 不一致", filter: ByDocument("doc-2"), want: false},
		{name: "数値フィールド", filter: Filter{"chunk_index": 3}, want: true},
		{name: "複数条件", filter: Filter{"document_id": "doc-1", "filename": "b.txt"}, want: false},
		{name: "存在しないフィールド", filter: Filter{"missing": "x"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(payload))
		})
	}
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricCosine, m)

	m, err = ParseMetric("dot")
	require.NoError(t, err)
	assert.Equal(t, MetricDot, m)

	_, err = ParseMetric("euclid")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
