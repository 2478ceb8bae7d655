package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedParagraphs(n int) []string {
	paras := make([]string, n)
	for i := range paras {
		paras[i] = fmt.Sprintf("paragraph %02d ", i) + strings.Repeat("x", 36)
	}
	return paras
}

func TestSplit_ShortParagraphs(t *testing.T) {
	paras := numberedParagraphs(50)
	text := strings.Join(paras, "\n\n")
	require.Greater(t, len(text), 2500)

	chunks := Split(text, 1000, 200)

	require.GreaterOrEqual(t, len(chunks), 2)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, c.CharacterCount, 1000)
		assert.Equal(t, len([]rune(c.Text)), c.CharacterCount)
	}

	// オーバーラップの重複を無視すれば全段落が順序通りに現れる
	var joined strings.Builder
	for _, c := range chunks {
		joined.WriteString(c.Text)
		joined.WriteString("\n\n")
	}
	all := joined.String()
	pos := 0
	for _, p := range paras {
		idx := strings.Index(all[pos:], p)
		require.GreaterOrEqual(t, idx, 0, "段落が見つからない: %s", p)
		pos += idx + len(p)
	}
}

func TestSplit_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		size     int
		overlap  int
		expected []string
	}{
		{
			name:     "空文字列",
			text:     "",
			size:     1000,
			overlap:  200,
			expected: nil,
		},
		{
			name:     "空白のみ",
			text:     "   \n\n \t \n\n",
			size:     1000,
			overlap:  200,
			expected: nil,
		},
		{
			name:     "区切りのない巨大な段落",
			text:     strings.Repeat("a", 6000),
			size:     1000,
			overlap:  200,
			expected: []string{strings.Repeat("a", 6000)},
		},
		{
			name:     "オーバーラップの引き継ぎ",
			text:     "aaaaaa\n\nbbbbbb",
			size:     10,
			overlap:  3,
			expected: []string{"aaaaaa", "aaa\n\nbbbbbb"},
		},
		{
			name:     "過大なオーバーラップはサイズの半分に補正",
			text:     "abcdefgh\n\nijklmnop",
			size:     10,
			overlap:  100,
			expected: []string{"abcdefgh", "defgh\n\nijklmnop"},
		},
		{
			name:     "負のオーバーラップは0として扱う",
			text:     "aaaaaa\n\nbbbbbb",
			size:     10,
			overlap:  -5,
			expected: []string{"aaaaaa", "bbbbbb"},
		},
		{
			name:     "確定チャンクがオーバーラップ以下なら引き継がない",
			text:     "ab\n\ncdefghij",
			size:     10,
			overlap:  5,
			expected: []string{"ab", "cdefghij"},
		},
		{
			name:     "段落の前後の空白は除去される",
			text:     "  first  \n\n\n\n  second\t",
			size:     1000,
			overlap:  0,
			expected: []string{"first\n\nsecond"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.text, tt.size, tt.overlap)

			var texts []string
			for i, c := range chunks {
				assert.Equal(t, i, c.Index)
				texts = append(texts, c.Text)
			}
			assert.Equal(t, tt.expected, texts)
		})
	}
}

func TestSplit_CountsRunes(t *testing.T) {
	chunks := Split("สวัสดีครับ", 100, 0)

	require.Len(t, chunks, 1)
	assert.Equal(t, 10, chunks[0].CharacterCount)
}

type stubCounter struct {
	CountTokensFunc func(text string) int
}

func (s *stubCounter) CountTokens(text string) int {
	return s.CountTokensFunc(text)
}

func TestChunker_TokenCount(t *testing.T) {
	counter := &stubCounter{CountTokensFunc: func(text string) int {
		return len(strings.Fields(text))
	}}
	c := New(1000, 200, WithTokenCounter(counter))

	chunks := c.Chunk("one two three\n\nfour five")

	require.Len(t, chunks, 1)
	assert.Equal(t, 5, chunks[0].TokenCount)
}

func TestNew_ClampsSettings(t *testing.T) {
	c := New(0, 10)
	assert.Equal(t, 1, c.Size())
	assert.Equal(t, 0, c.Overlap())

	c = New(1000, 800)
	assert.Equal(t, 1000, c.Size())
	assert.Equal(t, 500, c.Overlap())
}
