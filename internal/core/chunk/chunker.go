package chunk

import (
	"strings"
	"unicode/utf8"
)

const (
	paragraphSeparator = "\n\n"
	separatorLen       = len(paragraphSeparator)
)

const (
	// DefaultChunkSize はチャンクの既定最大文字数
	DefaultChunkSize = 1000
	// DefaultOverlap は隣接チャンク間で重複させる既定文字数
	DefaultOverlap = 200
)

// Chunker はサイズとオーバーラップを保持した段落ベースのチャンカー
type Chunker struct {
	size    int
	overlap int
	counter TokenCounter
}

// Option は Chunker のオプション設定
type Option func(*Chunker)

// WithTokenCounter はチャンクごとのトークン数計測を有効化する
func WithTokenCounter(counter TokenCounter) Option {
	return func(c *Chunker) {
		c.counter = counter
	}
}

// New は新しい Chunker を作成する。
// size と overlap は Split と同じ規則で補正される。
func New(size, overlap int, opts ...Option) *Chunker {
	size, overlap = clamp(size, overlap)
	c := &Chunker{
		size:    size,
		overlap: overlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Size は補正後のチャンクサイズを返す
func (c *Chunker) Size() int {
	return c.size
}

// Overlap は補正後のオーバーラップを返す
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Chunk はテキストを分割し、TokenCounter があればトークン数を付与する
func (c *Chunker) Chunk(text string) []Chunk {
	chunks := Split(text, c.size, c.overlap)
	if c.counter == nil {
		return chunks
	}
	for i := range chunks {
		chunks[i].TokenCount = c.counter.CountTokens(chunks[i].Text)
	}
	return chunks
}

// Split は空行区切りの段落を単位にテキストを chunkSize 文字以下のチャンクへまとめる。
//
// バッファに区切りと次の段落を足すと chunkSize を超える場合にバッファを確定し、
// 確定したチャンクの末尾 overlap 文字を次のバッファの先頭に引き継ぐ。
// 区切りのない巨大な段落はサイズを超えていても1チャンクとして出力する。
// 長さはすべてルーン単位で数える。
func Split(text string, chunkSize, overlap int) []Chunk {
	chunkSize, overlap = clamp(chunkSize, overlap)

	var (
		texts []string
		buf   string
	)

	for _, raw := range strings.Split(text, paragraphSeparator) {
		para := strings.TrimSpace(raw)
		if para == "" {
			continue
		}

		bufLen := utf8.RuneCountInString(buf)
		if buf != "" && bufLen+separatorLen+utf8.RuneCountInString(para) > chunkSize {
			texts = append(texts, strings.TrimSpace(buf))

			if overlap > 0 && bufLen > overlap {
				buf = tail(buf, overlap) + paragraphSeparator + para
			} else {
				buf = para
			}
			continue
		}

		if buf == "" {
			buf = para
		} else {
			buf += paragraphSeparator + para
		}
	}

	if sealed := strings.TrimSpace(buf); sealed != "" {
		texts = append(texts, sealed)
	}

	if len(texts) == 0 {
		if whole := strings.TrimSpace(text); whole != "" {
			texts = append(texts, whole)
		}
	}

	chunks := make([]Chunk, 0, len(texts))
	for _, t := range texts {
		chunks = append(chunks, Chunk{
			Text:           t,
			Index:          len(chunks),
			CharacterCount: utf8.RuneCountInString(t),
		})
	}
	return chunks
}

// clamp はサイズを1以上、オーバーラップを [0, size/2] に収める
func clamp(size, overlap int) (int, int) {
	if size < 1 {
		size = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if limit := size / 2; overlap > limit {
		overlap = limit
	}
	return size, overlap
}

// tail は s の末尾 n ルーンを返す
func tail(s string, n int) string {
	r := []rune(s)
	if n >= len(r) {
		return s
	}
	return string(r[len(r)-n:])
}
