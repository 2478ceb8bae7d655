package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// DocumentSummaryAction はドキュメントの要約を生成するコマンドのアクション
func DocumentSummaryAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	documentID := cmd.String("id")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	summary, err := appCtx.Container.RAG.SummarizeDocument(ctx, documentID)
	if err != nil {
		return failure(appCtx.Logger(), "ドキュメントの要約に失敗しました", err)
	}

	if cmd.Bool("json") {
		return writeJSON(os.Stdout, summary)
	}
	renderSummary(os.Stdout, summary)
	return nil
}

// DocumentChunksAction はドキュメントのチャンク一覧を表示するコマンドのアクション
func DocumentChunksAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	documentID := cmd.String("id")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	hits, err := appCtx.Container.RAG.DocumentChunks(ctx, documentID)
	if err != nil {
		return failure(appCtx.Logger(), "チャンクの取得に失敗しました", err)
	}

	if cmd.Bool("json") {
		return writeJSON(os.Stdout, hits)
	}
	renderChunks(os.Stdout, documentID, hits)
	return nil
}

// DocumentDeleteAction はドキュメントのポイントを削除するコマンドのアクション
func DocumentDeleteAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	documentID := cmd.String("id")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	deleted, err := appCtx.Container.RAG.DeleteDocument(ctx, documentID)
	if err != nil {
		return failure(appCtx.Logger(), "ドキュメントの削除に失敗しました", err)
	}

	fmt.Fprintf(os.Stdout, "ドキュメント %s を削除しました (%d ポイント)\n", documentID, deleted)
	return nil
}
