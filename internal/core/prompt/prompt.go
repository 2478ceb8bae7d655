package prompt

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultSystemPrompt は設定で上書きされない場合のベースプロンプト
	DefaultSystemPrompt = `You are a document assistant. Answer questions about the uploaded documents, summarize their key points, and help the user find the information they need.
Reply politely and cite the documents you used.`

	// SummarySystemPrompt はドキュメント要約用のシステムプロンプト
	SummarySystemPrompt = "You are an expert at summarizing documents. Keep the summary concise while covering every important point."

	// SuggestionSystemPrompt は質問候補生成用のシステムプロンプト
	SuggestionSystemPrompt = "You are an expert at suggesting useful questions."

	// SuggestionContextLimit は質問候補生成に渡すドキュメント文脈の最大文字数
	SuggestionContextLimit = 1000

	// DefaultSuggestionCount は返す質問候補の最大数
	DefaultSuggestionCount = 5
)

// BuildSystemPrompt はベースプロンプトに検索コンテキストと質問を追記する。
// context が空の場合は base をそのまま返す。
func BuildSystemPrompt(base, context, query string) string {
	if context == "" {
		return base
	}

	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\n## Relevant information from the documents\n")
	sb.WriteString(context)
	sb.WriteString("\n\n## Instructions\n")
	sb.WriteString("Answer using the document excerpts above whenever they are relevant. ")
	sb.WriteString("If the documents contain no relevant information, say so explicitly before answering from general knowledge.\n\n")
	sb.WriteString("## Question\n")
	sb.WriteString(query)
	sb.WriteString("\n")
	return sb.String()
}

// BuildSummaryPrompt は要約依頼のユーザーメッセージを返す
func BuildSummaryPrompt(text string) string {
	return "Summarize the content of this document so that it is easy to read and understand:\n\n" + text
}

// BuildSuggestionPrompt は質問候補生成のユーザーメッセージを返す
func BuildSuggestionPrompt(documentContext string) string {
	var sb strings.Builder
	sb.WriteString("Suggest 5 interesting questions a user could ask about the documents in the system. Each question should:\n")
	sb.WriteString("1. Be useful and relevant to the user's work\n")
	sb.WriteString("2. Help the user understand the documents better\n")
	sb.WriteString("3. Be answerable from the documents\n\n")
	sb.WriteString("Reply with a numbered list of 5 questions, one per line.")

	if documentContext != "" {
		sb.WriteString("\n\nDocument context: ")
		sb.WriteString(Truncate(documentContext, SuggestionContextLimit))
	}
	return sb.String()
}

// ParseSuggestions は番号付きまたは箇条書きの行から質問を取り出す
func ParseSuggestions(raw string, limit int) []string {
	suggestions := make([]string, 0, limit)
	for _, line := range strings.Split(raw, "\n") {
		if len(suggestions) >= limit {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		first, _ := utf8.DecodeRuneInString(line)
		if !unicode.IsDigit(first) && first != '-' && first != '•' {
			continue
		}

		var question string
		if unicode.IsDigit(first) {
			question = strings.TrimLeftFunc(line, unicode.IsDigit)
			question = strings.TrimLeft(question, ".)")
		} else {
			question = strings.TrimLeft(line, "-• ")
		}
		if question = strings.TrimSpace(question); question != "" {
			suggestions = append(suggestions, question)
		}
	}
	return suggestions
}

// Truncate は s を先頭から最大 n ルーンに切り詰める
func Truncate(s string, n int) string {
	if n < 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
