package extract

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// maxUndecodableRatio を超えて復号できない文字を含む場合は抽出失敗とする
const maxUndecodableRatio = 0.1

var errUndecodableText = errors.New("pdf text could not be decoded, fonts have no usable encoding")

// extractPDF はフォントのエンコーディングと ToUnicode に従ってページごとのテキストを取り出す。
// 各ページの先頭に "--- Page N ---" を付ける。
// 相互参照表が壊れていて開けない場合は pdfcpu で書き直してから再試行する。
func (e *Extractor) extractPDF(path string) (string, error) {
	text, err := e.readPDFText(path)
	if err == nil || errors.Is(err, errUndecodableText) {
		return text, err
	}

	e.logger.Debug("PDFを書き直して再試行します", "path", path, "error", err)
	rewritten, rerr := e.rewritePDF(path)
	if rerr != nil {
		return "", fmt.Errorf("%w (rewrite: %v)", err, rerr)
	}
	defer os.Remove(rewritten)

	return e.readPDFText(rewritten)
}

func (e *Extractor) readPDFText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var (
		pages   []int
		texts   []string
		visible int
		bad     int
	)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("PDFページのテキストを取得できません", "page", i, "error", err)
			continue
		}
		pageText, v, b := cleanDecodedText(pageText)
		visible += v
		bad += b
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		pages = append(pages, i)
		texts = append(texts, pageText)
	}

	if visible > 0 && float64(bad)/float64(visible) > maxUndecodableRatio {
		return "", fmt.Errorf("%w: %d of %d characters", errUndecodableText, bad, visible)
	}

	var sb strings.Builder
	for i, pageText := range texts {
		fmt.Fprintf(&sb, "\n--- Page %d ---\n", pages[i])
		sb.WriteString(pageText)
	}
	return sb.String(), nil
}

// rewritePDF は pdfcpu で読み直した PDF を一時ファイルに書き出し、そのパスを返す
func (e *Extractor) rewritePDF(path string) (string, error) {
	out, err := os.CreateTemp(e.tempDir, "doc-rag-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := out.Name()
	out.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.OptimizeFile(path, name, conf); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

// cleanDecodedText は復号できなかった文字 (U+FFFD) を取り除き、
// 空白以外の文字数と、そのうち U+FFFD または制御文字だった数を返す
func cleanDecodedText(text string) (string, int, int) {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}

	var visible, bad int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		visible++
		if r == utf8.RuneError || unicode.IsControl(r) {
			bad++
		}
	}
	return strings.ReplaceAll(text, string(utf8.RuneError), ""), visible, bad
}
