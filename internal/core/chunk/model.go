package chunk

// Chunk はドキュメント本文から切り出された連続したテキスト片
type Chunk struct {
	Text           string
	Index          int // ドキュメント内での0始まりの連番
	CharacterCount int // Text のルーン数
	TokenCount     int // TokenCounter 設定時のみ値が入る
}

// TokenCounter はトークン数を数える
type TokenCounter interface {
	CountTokens(text string) int
}
