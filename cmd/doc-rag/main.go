package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-rag/cmd/doc-rag/commands"
)

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "結果をJSON形式で出力",
	}
}

func documentIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "id",
		Usage:    "ドキュメントID",
		Required: true,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "doc-rag",
		Usage: "ドキュメントを取り込み、内容に基づいて質問に回答する RAG ツール",
		Commands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "ファイルまたはディレクトリ配下のドキュメントを取り込む",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:     "path",
						Usage:    "取り込むファイルまたはディレクトリ",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "ignore-file",
						Usage: "除外パターンファイル（ディレクトリからの相対パス）",
						Value: ".ragignore",
					},
					&cli.BoolFlag{
						Name:  "replace",
						Usage: "同名ファイルの既存ポイントを置き換える",
					},
				},
				Action: commands.IngestAction,
			},
			{
				Name:  "query",
				Usage: "取り込み済みドキュメントに質問する",
				Flags: []cli.Flag{
					envFlag(),
					jsonFlag(),
					&cli.StringFlag{
						Name:     "q",
						Usage:    "質問文",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "検索するチャンク数（0 なら設定値）",
					},
					&cli.FloatFlag{
						Name:  "threshold",
						Usage: "類似度しきい値（未指定なら設定値）",
					},
					&cli.StringFlag{
						Name:  "document",
						Usage: "検索対象のドキュメントID",
					},
					&cli.StringFlag{
						Name:  "system-prompt",
						Usage: "システムプロンプト",
					},
				},
				Action: commands.QueryAction,
			},
			{
				Name:  "chat",
				Usage: "履歴を保持しながら対話する",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "session",
						Usage: "セッションID（未指定なら新規作成）",
					},
					&cli.BoolFlag{
						Name:  "no-rag",
						Usage: "ドキュメント検索を行わない",
					},
					&cli.BoolFlag{
						Name:  "hide-sources",
						Usage: "参照ドキュメントを表示しない",
					},
					&cli.StringFlag{
						Name:  "system-prompt",
						Usage: "システムプロンプト",
					},
				},
				Action: commands.ChatAction,
			},
			{
				Name:  "document",
				Usage: "取り込み済みドキュメントの操作",
				Commands: []*cli.Command{
					{
						Name:   "summary",
						Usage:  "ドキュメントの要約を生成",
						Flags:  []cli.Flag{envFlag(), jsonFlag(), documentIDFlag()},
						Action: commands.DocumentSummaryAction,
					},
					{
						Name:   "chunks",
						Usage:  "ドキュメントのチャンク一覧を表示",
						Flags:  []cli.Flag{envFlag(), jsonFlag(), documentIDFlag()},
						Action: commands.DocumentChunksAction,
					},
					{
						Name:   "delete",
						Usage:  "ドキュメントを削除",
						Flags:  []cli.Flag{envFlag(), documentIDFlag()},
						Action: commands.DocumentDeleteAction,
					},
				},
			},
			{
				Name:  "suggest",
				Usage: "質問候補を生成",
				Flags: []cli.Flag{
					envFlag(),
					jsonFlag(),
					&cli.StringFlag{
						Name:  "context",
						Usage: "候補生成の手がかりにするテキスト",
					},
				},
				Action: commands.SuggestAction,
			},
			{
				Name:   "stats",
				Usage:  "ベクトルストアとモデルの状態を表示",
				Flags:  []cli.Flag{envFlag(), jsonFlag()},
				Action: commands.StatsAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "エラー: %v\n", err)
		os.Exit(1)
	}
}
