package rag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jinford/doc-rag/internal/core/llm"
	"github.com/jinford/doc-rag/internal/core/retrieval"
	"github.com/jinford/doc-rag/internal/core/vectorstore"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "入力エラー", err: validationError("bad %s", "input"), want: KindValidation},
		{name: "検索要求の不正", err: stageError(StageRetrieval, fmt.Errorf("%w: k", retrieval.ErrInvalidRequest)), want: KindValidation},
		{name: "プロバイダ利用不可", err: stageError(StageEmbedding, llm.ErrProviderUnavailable), want: KindProvider},
		{name: "ストア利用不可", err: stageError(StageStorage, vectorstore.ErrStoreUnavailable), want: KindStore},
		{name: "ドキュメントなし", err: stageError(StageLookup, ErrDocumentNotFound), want: KindNotFound},
		{name: "段階のみ分かるエラー", err: stageError(StageCompletion, errors.New("boom")), want: KindProvider},
		{name: "分類不能", err: errors.New("boom"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestPublicMessage_HidesDetails(t *testing.T) {
	err := stageError(StageCompletion, fmt.Errorf("%w: POST https://api.example.com/v1/chat: 503", llm.ErrProviderUnavailable))

	msg := PublicMessage(err)
	assert.Equal(t, "the AI service is temporarily unavailable, please try again", msg)
	assert.NotContains(t, msg, "https://")

	assert.Equal(t, "validation failed: query is empty", PublicMessage(validationError("query is empty")))
	assert.Equal(t, "internal error", PublicMessage(errors.New("secret detail")))
}
