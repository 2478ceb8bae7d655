package rag

import (
	"errors"
	"fmt"

	"github.com/jinford/doc-rag/internal/core/llm"
	"github.com/jinford/doc-rag/internal/core/retrieval"
	"github.com/jinford/doc-rag/internal/core/vectorstore"
)

var (
	// ErrValidation は入力が不正な場合のエラー
	ErrValidation = errors.New("validation failed")

	// ErrDocumentNotFound は指定ドキュメントのチャンクが存在しない場合のエラー
	ErrDocumentNotFound = errors.New("document not found")
)

// Stage はパイプライン中で失敗した段階
type Stage string

const (
	StageValidation Stage = "validation"
	StageEmbedding  Stage = "embedding"
	StageRetrieval  Stage = "retrieval"
	StageStorage    Stage = "storage"
	StageCompletion Stage = "completion"
	StageLookup     Stage = "lookup"
)

// StageError は失敗した段階と元のエラーを保持する
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

func validationError(format string, args ...any) error {
	return stageError(StageValidation, fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...))
}

// Kind は呼び出し側向けのエラー分類
type Kind string

const (
	KindValidation Kind = "validation"
	KindProvider   Kind = "provider"
	KindStore      Kind = "store"
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal"
)

// Classify はエラーを分類する
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation),
		errors.Is(err, retrieval.ErrInvalidRequest),
		errors.Is(err, vectorstore.ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrDocumentNotFound):
		return KindNotFound
	case errors.Is(err, llm.ErrProviderUnavailable),
		errors.Is(err, llm.ErrProviderFailed):
		return KindProvider
	case errors.Is(err, vectorstore.ErrStoreUnavailable),
		errors.Is(err, vectorstore.ErrStoreFailed),
		errors.Is(err, vectorstore.ErrCollectionNotFound):
		return KindStore
	}

	var stageErr *StageError
	if errors.As(err, &stageErr) {
		switch stageErr.Stage {
		case StageEmbedding, StageCompletion:
			return KindProvider
		case StageStorage, StageLookup:
			return KindStore
		case StageValidation:
			return KindValidation
		}
	}
	return KindInternal
}

// PublicMessage はプロバイダのURLや内部情報を含まない短いメッセージを返す
func PublicMessage(err error) string {
	switch Classify(err) {
	case "":
		return ""
	case KindValidation:
		var stageErr *StageError
		if errors.As(err, &stageErr) && stageErr.Stage == StageValidation {
			return stageErr.Err.Error()
		}
		return "invalid request"
	case KindNotFound:
		return "document not found"
	case KindProvider:
		if errors.Is(err, llm.ErrProviderUnavailable) {
			return "the AI service is temporarily unavailable, please try again"
		}
		return "the AI service failed to process the request"
	case KindStore:
		if errors.Is(err, vectorstore.ErrStoreUnavailable) {
			return "the document store is unavailable"
		}
		return "the document store failed to process the request"
	default:
		return "internal error"
	}
}
