package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-rag/internal/core/rag"
	"github.com/jinford/doc-rag/internal/infra/extract"
)

// IngestAction はファイルまたはディレクトリ配下のドキュメントを取り込むコマンドのアクション
func IngestAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	root := cmd.String("path")
	ignoreFile := cmd.String("ignore-file")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	logger := appCtx.Logger()
	replace := cmd.Bool("replace") || appCtx.Config.RAG.ReplaceOnReingest

	filterRoot := root
	if info, err := os.Stat(root); err != nil {
		return fmt.Errorf("パスの確認に失敗: %w", err)
	} else if !info.IsDir() {
		filterRoot = filepath.Dir(root)
	}

	filter, err := extract.NewIgnoreFilter(filterRoot, ignoreFile)
	if err != nil {
		return fmt.Errorf("除外パターンの読み込みに失敗: %w", err)
	}

	files, err := extract.Walk(root, filter)
	if err != nil {
		return fmt.Errorf("ファイル一覧の取得に失敗: %w", err)
	}
	if len(files) == 0 {
		logger.Warn("取り込み対象のファイルがありません", "path", root)
		return nil
	}

	logger.Info("取り込みを開始", "path", root, "files", len(files), "replace", replace)

	ing := &ingester{
		extractor: appCtx.Container.Extractor,
		service:   appCtx.Container.RAG,
		limits: extract.Limits{
			MaxFileSize:       appCtx.Config.Upload.MaxFileSize,
			AllowedExtensions: appCtx.Config.Upload.AllowedExtensions,
		},
		replace: replace,
		out:     os.Stdout,
	}

	var failed int
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ing.ingestFile(ctx, path); err != nil {
			failed++
			logger.Error("ファイルの取り込みに失敗", "path", path, "kind", rag.Classify(err), "error", err)
			fmt.Fprintf(os.Stderr, "%s: %s\n", path, describeIngestError(err))
		}
	}

	logger.Info("取り込みが完了しました", "files", len(files), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d/%d 件のファイルの取り込みに失敗しました", failed, len(files))
	}
	return nil
}

type textExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

type textIngester interface {
	IngestText(ctx context.Context, req rag.IngestRequest) (*rag.IngestResult, error)
}

// ingester は1ファイルの検証・抽出・取り込みを行う
type ingester struct {
	extractor textExtractor
	service   textIngester
	limits    extract.Limits
	replace   bool
	out       io.Writer
}

func (i *ingester) ingestFile(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	name := filepath.Base(path)
	if err := extract.ValidateFile(name, info.Size(), i.limits); err != nil {
		return fmt.Errorf("%w: %w", rag.ErrValidation, err)
	}

	text, err := i.extractor.Extract(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %w", rag.ErrValidation, err)
	}

	result, err := i.service.IngestText(ctx, rag.IngestRequest{
		Filename:        name,
		FileSize:        info.Size(),
		Text:            text,
		ReplaceExisting: i.replace,
	})
	if err != nil {
		return err
	}

	renderIngestResult(i.out, result)
	return nil
}

// describeIngestError はファイル起因の失敗なら詳細を、それ以外は利用者向けメッセージを返す
func describeIngestError(err error) string {
	if errors.Is(err, extract.ErrInvalidFile) ||
		errors.Is(err, extract.ErrUnsupportedFormat) ||
		errors.Is(err, extract.ErrExtractionFailed) {
		return err.Error()
	}
	return rag.PublicMessage(err)
}
