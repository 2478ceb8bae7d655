package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jinford/doc-rag/internal/core/vectorstore"
)

func TestAssembleContext(t *testing.T) {
	hits := []vectorstore.Hit{
		{Score: 0.9, Text: "first body", Metadata: vectorstore.Metadata{Filename: "a.txt", ChunkIndex: 0}},
		{Score: 0.8, Text: "   ", Metadata: vectorstore.Metadata{Filename: "skip.txt", ChunkIndex: 5}},
		{Score: 0.7, Text: "second body", Metadata: vectorstore.Metadata{Filename: "b.pdf", ChunkIndex: 2}},
	}

	got := AssembleContext(hits)

	want := "[document: a.txt, part 1]\nfirst body\n\n---\n\n[document: b.pdf, part 3]\nsecond body"
	assert.Equal(t, want, got)
}

func TestAssembleContext_Empty(t *testing.T) {
	assert.Equal(t, "", AssembleContext(nil))
}

func TestBuildSystemPrompt(t *testing.T) {
	t.Run("コンテキストが空ならベースをそのまま返す", func(t *testing.T) {
		base := "base prompt\nwith lines  "
		assert.Equal(t, base, BuildSystemPrompt(base, "", "question"))
	})

	t.Run("コンテキストと質問を埋め込む", func(t *testing.T) {
		got := BuildSystemPrompt("base", "[document: a.txt, part 1]\nbody", "What is X?")

		assert.True(t, strings.HasPrefix(got, "base\n\n"))
		assert.Contains(t, got, "[document: a.txt, part 1]\nbody")
		assert.Contains(t, got, "no relevant information")
		assert.Contains(t, got, "## Question\nWhat is X?")
	})
}

func TestParseSuggestions(t *testing.T) {
	raw := `Here are some questions:
1. What is the contract term?
2) Who signs the agreement
- How are payments scheduled?
• What happens on early termination?
3. What fees apply?
4. Is insurance required?
Thanks!`

	got := ParseSuggestions(raw, DefaultSuggestionCount)

	assert.Equal(t, []string{
		"What is the contract term?",
		"Who signs the agreement",
		"How are payments scheduled?",
		"What happens on early termination?",
		"What fees apply?",
	}, got)
}

func TestBuildSuggestionPrompt_TruncatesContext(t *testing.T) {
	got := BuildSuggestionPrompt(strings.Repeat("ก", 1500))

	assert.Contains(t, got, "Document context: "+strings.Repeat("ก", SuggestionContextLimit))
	assert.NotContains(t, got, strings.Repeat("ก", SuggestionContextLimit+1))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "สวัส", Truncate("สวัสดี", 4))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "", Truncate("abc", -1))
}
