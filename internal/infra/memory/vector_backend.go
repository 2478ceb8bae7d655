package memory

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/jinford/doc-rag/internal/core/vectorstore"
)

type collection struct {
	cfg    vectorstore.CollectionConfig
	points []vectorstore.Point
}

// VectorBackend はプロセス内でブルートフォース検索を行うベクトルストア
type VectorBackend struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewVectorBackend は空の VectorBackend を作成する
func NewVectorBackend() *VectorBackend {
	return &VectorBackend{collections: make(map[string]*collection)}
}

func (b *VectorBackend) Ping(context.Context) error {
	return nil
}

func (b *VectorBackend) CollectionExists(_ context.Context, name string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.collections[name]
	return ok, nil
}

func (b *VectorBackend) CreateCollection(_ context.Context, cfg vectorstore.CollectionConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.collections[cfg.Name]; !ok {
		b.collections[cfg.Name] = &collection{cfg: cfg}
	}
	return nil
}

func (b *VectorBackend) Upsert(_ context.Context, name string, points []vectorstore.Point) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.get(name)
	if err != nil {
		return err
	}

	for _, p := range points {
		if len(p.Vector) != c.cfg.Dimension {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(p.Vector), c.cfg.Dimension)
		}
	}

	for _, p := range points {
		replaced := false
		for i := range c.points {
			if c.points[i].ID == p.ID {
				c.points[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			c.points = append(c.points, p)
		}
	}
	return nil
}

func (b *VectorBackend) Search(_ context.Context, name string, q vectorstore.SearchQuery) ([]vectorstore.Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, err := b.get(name)
	if err != nil {
		return nil, err
	}

	var hits []vectorstore.Hit
	for _, p := range c.points {
		if !q.Filter.Matches(p.Payload) {
			continue
		}
		score := similarity(c.cfg.Metric, p.Vector, q.Vector)
		if score < q.Threshold {
			continue
		}
		hits = append(hits, p.ToHit(score))
	}

	vectorstore.SortHits(hits)
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

func (b *VectorBackend) Scroll(_ context.Context, name string, filter vectorstore.Filter, limit int) ([]vectorstore.Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, err := b.get(name)
	if err != nil {
		return nil, err
	}

	var hits []vectorstore.Hit
	for _, p := range c.points {
		if limit > 0 && len(hits) >= limit {
			break
		}
		if filter.Matches(p.Payload) {
			hits = append(hits, p.ToHit(0))
		}
	}
	return hits, nil
}

func (b *VectorBackend) Delete(_ context.Context, name string, filter vectorstore.Filter) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.get(name)
	if err != nil {
		return 0, err
	}

	kept := c.points[:0]
	var deleted int64
	for _, p := range c.points {
		if filter.Matches(p.Payload) {
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	c.points = kept
	return deleted, nil
}

func (b *VectorBackend) Stats(_ context.Context, name string) (vectorstore.CollectionStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, err := b.get(name)
	if err != nil {
		return vectorstore.CollectionStats{}, err
	}
	n := int64(len(c.points))
	return vectorstore.CollectionStats{PointCount: n, VectorCount: n, Status: "green"}, nil
}

// get は呼び出し側でロックを保持していること
func (b *VectorBackend) get(name string) (*collection, error) {
	c, ok := b.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
	}
	return c, nil
}

func similarity(metric vectorstore.Metric, a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if metric == vectorstore.MetricDot {
		return dot
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ vectorstore.Backend = (*VectorBackend)(nil)
