package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/jinford/doc-rag/internal/core/rag"
	"github.com/jinford/doc-rag/internal/core/retrieval"
	"github.com/jinford/doc-rag/internal/core/vectorstore"
)

const previewLength = 80

// writeJSON は v をインデント付きJSONで書き出す
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("JSONの書き出しに失敗: %w", err)
	}
	return nil
}

// failure はエラーをログに記録し、利用者向けのメッセージに置き換えて返す
func failure(logger *slog.Logger, msg string, err error) error {
	kind := rag.Classify(err)
	logger.Error(msg, "kind", kind, "error", err)
	return errors.New(rag.PublicMessage(err))
}

func renderSources(w io.Writer, sources []retrieval.SourceAttribution) {
	if len(sources) == 0 {
		fmt.Fprintln(w, "参照ドキュメント: なし")
		return
	}

	fmt.Fprintln(w, "参照ドキュメント:")
	table := tablewriter.NewWriter(w)
	table.Header("ファイル名", "ドキュメントID", "関連度", "チャンク数")
	for _, s := range sources {
		table.Append(
			s.Filename,
			s.DocumentID,
			fmt.Sprintf("%.3f", s.RelevanceScore),
			fmt.Sprintf("%d", s.ChunkCount),
		)
	}
	table.Render()
}

func renderQueryResult(w io.Writer, result *rag.QueryResult) {
	fmt.Fprintln(w, result.Response)
	fmt.Fprintln(w)
	renderSources(w, result.Sources)
	fmt.Fprintf(w, "モデル: %s / コンテキスト: %d チャンク\n", result.ModelUsed, result.ContextChunks)
}

func renderIngestResult(w io.Writer, result *rag.IngestResult) {
	doc := result.Document
	fmt.Fprintf(w, "%s -> %s (チャンク %d / 保存 %d", doc.Filename, doc.DocumentID, result.ChunksProcessed, result.PointsStored)
	if result.ReplacedPoints > 0 {
		fmt.Fprintf(w, " / 置換 %d", result.ReplacedPoints)
	}
	fmt.Fprintln(w, ")")
}

func renderChunks(w io.Writer, documentID string, hits []vectorstore.Hit) {
	if len(hits) == 0 {
		fmt.Fprintf(w, "ドキュメント %s のチャンクはありません\n", documentID)
		return
	}

	meta := hits[0].Metadata
	fmt.Fprintf(w, "%s (%s) 全 %d チャンク / %d 文字\n", meta.Filename, meta.DocumentID, meta.TotalChunks, meta.TotalCharacters)

	table := tablewriter.NewWriter(w)
	table.Header("#", "文字数", "本文")
	for _, h := range hits {
		table.Append(
			fmt.Sprintf("%d", h.Metadata.ChunkIndex),
			fmt.Sprintf("%d", h.Metadata.CharacterCount),
			preview(h.Text),
		)
	}
	table.Render()
}

func renderSummary(w io.Writer, summary *rag.DocumentSummary) {
	fmt.Fprintf(w, "%s (%s)\n", summary.Filename, summary.DocumentID)
	fmt.Fprintf(w, "チャンク数: %d / 文字数: %d / 取り込み: %s\n\n",
		summary.ChunkCount, summary.TotalCharacters, summary.ProcessedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w, summary.Summary)
}

func renderSuggestions(w io.Writer, suggestions *rag.Suggestions) {
	if len(suggestions.Questions) == 0 {
		fmt.Fprintln(w, suggestions.RawResponse)
		return
	}
	for i, q := range suggestions.Questions {
		fmt.Fprintf(w, "%d. %s\n", i+1, q)
	}
}

func renderStats(w io.Writer, stats *rag.SystemStats) {
	status := "利用可能"
	if !stats.StoreAvailable {
		status = "利用不可"
	}

	table := tablewriter.NewWriter(w)
	table.Header("項目", "値")
	table.Append("ベクトルストア", status)
	table.Append("コレクション", stats.Collection)
	if stats.StoreAvailable {
		table.Append("ポイント数", fmt.Sprintf("%d", stats.Stats.PointCount))
		table.Append("ベクトル数", fmt.Sprintf("%d", stats.Stats.VectorCount))
		table.Append("状態", stats.Stats.Status)
	}
	table.Append("埋め込みモデル", stats.EmbeddingModel)
	table.Append("チャットモデル", stats.ChatModel)
	table.Append("TopK", fmt.Sprintf("%d", stats.Settings.TopK))
	table.Append("類似度しきい値", fmt.Sprintf("%.2f", stats.Settings.SimilarityThreshold))
	table.Render()
}

// preview は改行を空白に置き換え、previewLength 文字で切り詰める
func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}
