package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/doc-rag/internal/core/vectorstore"
)

const scrollPageSize = 256

// Config は Qdrant への接続設定
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Backend は Qdrant の REST API を使ったベクトルストア
type Backend struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New は新しい Backend を作成する
func New(cfg Config) *Backend {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Backend{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type matchCondition struct {
	Key   string `json:"key"`
	Match struct {
		Value any `json:"value"`
	} `json:"match"`
}

type filterBody struct {
	Must []matchCondition `json:"must"`
}

type pointBody struct {
	ID      string              `json:"id"`
	Vector  []float32           `json:"vector,omitempty"`
	Payload vectorstore.Payload `json:"payload"`
}

type scoredPoint struct {
	ID      string              `json:"id"`
	Score   float64             `json:"score"`
	Payload vectorstore.Payload `json:"payload"`
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.do(ctx, http.MethodGet, "/", nil, nil)
}

func (b *Backend) CollectionExists(ctx context.Context, name string) (bool, error) {
	err := b.do(ctx, http.MethodGet, collectionPath(name), nil, nil)
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) CreateCollection(ctx context.Context, cfg vectorstore.CollectionConfig) error {
	distance, err := distanceName(cfg.Metric)
	if err != nil {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     cfg.Dimension,
			"distance": distance,
		},
	}

	err = b.do(ctx, http.MethodPut, collectionPath(cfg.Name), body, nil)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusConflict {
		// 同時作成で先行した側が作成済み
		return nil
	}
	return err
}

func (b *Backend) Upsert(ctx context.Context, name string, points []vectorstore.Point) error {
	body := struct {
		Points []pointBody `json:"points"`
	}{Points: make([]pointBody, len(points))}

	for i, p := range points {
		body.Points[i] = pointBody{ID: p.ID.String(), Vector: p.Vector, Payload: p.Payload}
	}
	return b.do(ctx, http.MethodPut, collectionPath(name)+"/points?wait=true", body, nil)
}

func (b *Backend) Search(ctx context.Context, name string, q vectorstore.SearchQuery) ([]vectorstore.Hit, error) {
	body := map[string]any{
		"vector":          q.Vector,
		"limit":           q.Limit,
		"score_threshold": q.Threshold,
		"with_payload":    true,
	}
	if f := toFilter(q.Filter); f != nil {
		body["filter"] = f
	}

	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	if err := b.do(ctx, http.MethodPost, collectionPath(name)+"/points/search", body, &resp); err != nil {
		return nil, err
	}

	hits := make([]vectorstore.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hit, err := toHit(r.ID, r.Score, r.Payload)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (b *Backend) Scroll(ctx context.Context, name string, filter vectorstore.Filter, limit int) ([]vectorstore.Hit, error) {
	var (
		hits   []vectorstore.Hit
		offset any
	)

	for limit <= 0 || len(hits) < limit {
		pageSize := scrollPageSize
		if limit > 0 {
			pageSize = min(pageSize, limit-len(hits))
		}

		body := map[string]any{
			"limit":        pageSize,
			"with_payload": true,
			"with_vector":  false,
		}
		if f := toFilter(filter); f != nil {
			body["filter"] = f
		}
		if offset != nil {
			body["offset"] = offset
		}

		var resp struct {
			Result struct {
				Points         []scoredPoint `json:"points"`
				NextPageOffset any           `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := b.do(ctx, http.MethodPost, collectionPath(name)+"/points/scroll", body, &resp); err != nil {
			return nil, err
		}

		for _, p := range resp.Result.Points {
			hit, err := toHit(p.ID, 0, p.Payload)
			if err != nil {
				return nil, err
			}
			hits = append(hits, hit)
		}

		if resp.Result.NextPageOffset == nil || len(resp.Result.Points) == 0 {
			break
		}
		offset = resp.Result.NextPageOffset
	}
	return hits, nil
}

func (b *Backend) Delete(ctx context.Context, name string, filter vectorstore.Filter) (int64, error) {
	f := toFilter(filter)

	var count struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	if err := b.do(ctx, http.MethodPost, collectionPath(name)+"/points/count",
		map[string]any{"filter": f, "exact": true}, &count); err != nil {
		return 0, err
	}

	if err := b.do(ctx, http.MethodPost, collectionPath(name)+"/points/delete?wait=true",
		map[string]any{"filter": f}, nil); err != nil {
		return 0, err
	}
	return count.Result.Count, nil
}

func (b *Backend) Stats(ctx context.Context, name string) (vectorstore.CollectionStats, error) {
	var resp struct {
		Result struct {
			Status       string `json:"status"`
			PointsCount  *int64 `json:"points_count"`
			VectorsCount *int64 `json:"vectors_count"`
		} `json:"result"`
	}
	if err := b.do(ctx, http.MethodGet, collectionPath(name), nil, &resp); err != nil {
		return vectorstore.CollectionStats{}, err
	}

	stats := vectorstore.CollectionStats{Status: resp.Result.Status}
	if resp.Result.PointsCount != nil {
		stats.PointCount = *resp.Result.PointsCount
	}
	// 新しい Qdrant は vectors_count を返さないため points_count で代用する
	stats.VectorCount = stats.PointCount
	if resp.Result.VectorsCount != nil {
		stats.VectorCount = *resp.Result.VectorsCount
	}
	return stats, nil
}

// StatusError は Qdrant が2xx以外を返した場合のエラー
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (b *Backend) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.apiKey != "" {
		req.Header.Set("api-key", b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, path)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode qdrant response: %w", err)
	}
	return nil
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}

func distanceName(metric vectorstore.Metric) (string, error) {
	switch metric {
	case vectorstore.MetricCosine, "":
		return "Cosine", nil
	case vectorstore.MetricDot:
		return "Dot", nil
	default:
		return "", fmt.Errorf("%w: unsupported metric %q", vectorstore.ErrInvalidInput, metric)
	}
}

// toFilter はキー順に並べた must 条件へ変換する
func toFilter(f vectorstore.Filter) *filterBody {
	if len(f) == 0 {
		return nil
	}

	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	body := &filterBody{Must: make([]matchCondition, 0, len(keys))}
	for _, k := range keys {
		cond := matchCondition{Key: k}
		cond.Match.Value = f[k]
		body.Must = append(body.Must, cond)
	}
	return body
}

func toHit(rawID string, score float64, payload vectorstore.Payload) (vectorstore.Hit, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return vectorstore.Hit{}, fmt.Errorf("parse point id %q: %w", rawID, err)
	}
	return vectorstore.Point{ID: id, Payload: payload}.ToHit(score), nil
}

var _ vectorstore.Backend = (*Backend)(nil)
