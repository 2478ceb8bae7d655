package extract

import (
	"regexp"
	"strings"
)

var (
	blankLinesPattern   = regexp.MustCompile(`\n\s*\n`)
	horizontalSpace     = regexp.MustCompile(`[ \t]+`)
	controlCharsPattern = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f\x{80}-\x{84}\x{86}-\x{9f}]`)
)

// Normalize は抽出テキストの空白を整える。
// 改行を LF に揃え、空行の連続を1つの空行に、空白とタブの連続を1つの空白にまとめ、制御文字を除いて前後を切り詰める。
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = controlCharsPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
