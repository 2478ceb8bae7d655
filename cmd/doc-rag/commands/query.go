package commands

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-rag/internal/core/rag"
	"github.com/jinford/doc-rag/internal/core/vectorstore"
)

// QueryAction は取り込み済みドキュメントに対して単発の質問を行うコマンドのアクション
func QueryAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	req := rag.QueryRequest{
		Query:        cmd.String("q"),
		SystemPrompt: cmd.String("system-prompt"),
		TopK:         cmd.Int("top-k"),
	}
	if cmd.IsSet("threshold") {
		threshold := cmd.Float("threshold")
		req.Threshold = &threshold
	}
	if documentID := cmd.String("document"); documentID != "" {
		req.Filter = vectorstore.ByDocument(documentID)
	}

	result, err := appCtx.Container.RAG.Query(ctx, req)
	if err != nil {
		return failure(appCtx.Logger(), "質問への回答に失敗しました", err)
	}

	if cmd.Bool("json") {
		return writeJSON(os.Stdout, result)
	}
	renderQueryResult(os.Stdout, result)
	return nil
}

// SuggestAction は質問候補を生成するコマンドのアクション
func SuggestAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	suggestions, err := appCtx.Container.RAG.SuggestQuestions(ctx, cmd.String("context"))
	if err != nil {
		return failure(appCtx.Logger(), "質問候補の生成に失敗しました", err)
	}

	if cmd.Bool("json") {
		return writeJSON(os.Stdout, suggestions)
	}
	renderSuggestions(os.Stdout, suggestions)
	return nil
}

// StatsAction はベクトルストアとモデルの状態を表示するコマンドのアクション
func StatsAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	stats, err := appCtx.Container.RAG.Stats(ctx)
	if err != nil {
		return failure(appCtx.Logger(), "統計情報の取得に失敗しました", err)
	}

	if cmd.Bool("json") {
		return writeJSON(os.Stdout, stats)
	}
	renderStats(os.Stdout, stats)
	return nil
}
