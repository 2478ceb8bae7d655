package llm

import "context"

// Role はメッセージの話者
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message は補完APIへ渡す1件の会話メッセージ
type Message struct {
	Role    Role
	Content string
}

// Completion は補完APIの応答
type Completion struct {
	Text       string
	Model      string
	TokensUsed int
}

// Embedder は1テキストを1ベクトルへ変換するプロバイダ
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
	Dimension() int
}

// Completer は会話履歴とシステムプロンプトから応答を生成するプロバイダ
type Completer interface {
	Complete(ctx context.Context, messages []Message, systemPrompt string) (Completion, error)
	ModelName() string
}

// UserMessage はユーザーメッセージを作成する
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// LastUserMessage は履歴中で最も新しいユーザーメッセージを返す
func LastUserMessage(messages []Message) (Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i], true
		}
	}
	return Message{}, false
}
