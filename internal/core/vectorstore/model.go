package vectorstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Metric はコレクションの距離尺度
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

// ParseMetric は文字列から Metric を得る（空文字は cosine）
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", MetricCosine:
		return MetricCosine, nil
	case MetricDot:
		return MetricDot, nil
	default:
		return "", fmt.Errorf("%w: unsupported distance metric %q", ErrInvalidInput, s)
	}
}

// CollectionConfig はコレクションの定義
type CollectionConfig struct {
	Name      string
	Dimension int
	Metric    Metric
}

// Metadata はポイントのペイロードのうち本文以外の属性
type Metadata struct {
	DocumentID      string    `json:"document_id"`
	Filename        string    `json:"filename"`
	FileSize        int64     `json:"file_size"`
	ProcessedAt     time.Time `json:"processed_at"`
	TotalChunks     int       `json:"total_chunks"`
	TotalCharacters int       `json:"total_characters"`
	ChunkIndex      int       `json:"chunk_index"`
	CharacterCount  int       `json:"character_count"`
	TokenCount      int       `json:"token_count,omitempty"`
	EmbeddingModel  string    `json:"embedding_model"`
	CreatedAt       time.Time `json:"created_at"`
}

// Payload はポイントに保存されるペイロード。JSON ではフラットなオブジェクトになる
type Payload struct {
	Text string `json:"text"`
	Metadata
}

// Point はベクトルインデックスの保存単位
type Point struct {
	ID      uuid.UUID
	Vector  []float32
	Payload Payload
}

// Record は Upsert に渡す1チャンク分の入力。ID と作成日時はストア側で採番する
type Record struct {
	Vector  []float32
	Payload Payload
}

// Hit は類似検索またはフィルタ取得の結果1件
type Hit struct {
	ID       uuid.UUID
	Score    float64
	Text     string
	Metadata Metadata
}

// SearchQuery は類似検索の条件
type SearchQuery struct {
	Vector    []float32
	Limit     int
	Threshold float64
	Filter    Filter
}

// CollectionStats はコレクションの統計情報
type CollectionStats struct {
	PointCount  int64  `json:"point_count"`
	VectorCount int64  `json:"vector_count"`
	Status      string `json:"status"`
}

// Filter はペイロードのフィールドに対する等価条件（AND）
type Filter map[string]any

// ByDocument は document_id で絞り込むフィルタを返す
func ByDocument(documentID string) Filter {
	return Filter{"document_id": documentID}
}

// ByFilename は filename で絞り込むフィルタを返す
func ByFilename(filename string) Filter {
	return Filter{"filename": filename}
}

// Matches はペイロードがフィルタの全条件を満たすか判定する。
// 値は JSON 表現同士で比較する。
func (f Filter) Matches(p Payload) bool {
	if len(f) == 0 {
		return true
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}

	for key, want := range f {
		got, ok := fields[key]
		if !ok {
			return false
		}
		wantRaw, err := json.Marshal(want)
		if err != nil || string(wantRaw) != string(got) {
			return false
		}
	}
	return true
}

// JSON はフィルタを JSON オブジェクトへ変換する
func (f Filter) JSON() ([]byte, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(f))
}

// ToHit はポイントを検索結果へ変換する
func (p Point) ToHit(score float64) Hit {
	return Hit{
		ID:       p.ID,
		Score:    score,
		Text:     p.Payload.Text,
		Metadata: p.Payload.Metadata,
	}
}
