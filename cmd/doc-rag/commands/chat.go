package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-rag/internal/core/rag"
	"github.com/jinford/doc-rag/internal/core/session"
)

// ChatAction は標準入力から対話的に会話するコマンドのアクション
func ChatAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	loop := &chatLoop{
		sessions:     appCtx.Container.Sessions,
		logger:       appCtx.Logger(),
		sessionID:    cmd.String("session"),
		useRAG:       !cmd.Bool("no-rag"),
		systemPrompt: cmd.String("system-prompt"),
		showSources:  !cmd.Bool("hide-sources"),
	}

	fmt.Fprintln(os.Stdout, "終了するには /exit、履歴の表示は /history を入力してください")
	return loop.run(ctx, os.Stdin, os.Stdout)
}

type sessionSender interface {
	Send(ctx context.Context, req session.SendRequest) (*session.Reply, error)
	History(ctx context.Context, sessionID string) ([]session.Message, error)
}

// chatLoop は1行を1メッセージとして会話を進める
type chatLoop struct {
	sessions     sessionSender
	logger       *slog.Logger
	sessionID    string
	useRAG       bool
	systemPrompt string
	showSources  bool
}

func (l *chatLoop) run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/history":
			l.printHistory(ctx, out)
			continue
		}

		reply, err := l.sessions.Send(ctx, session.SendRequest{
			SessionID:    l.sessionID,
			Message:      line,
			UseRAG:       l.useRAG,
			SystemPrompt: l.systemPrompt,
		})
		if err != nil {
			l.logger.Error("メッセージの送信に失敗しました", "sessionID", l.sessionID, "kind", rag.Classify(err), "error", err)
			fmt.Fprintf(out, "エラー: %s\n", rag.PublicMessage(err))
			continue
		}

		l.sessionID = reply.SessionID
		fmt.Fprintln(out, reply.Response)
		if l.showSources && reply.ContextUsed {
			renderSources(out, reply.Sources)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("入力の読み込みに失敗: %w", err)
	}
	return nil
}

func (l *chatLoop) printHistory(ctx context.Context, out io.Writer) {
	if l.sessionID == "" {
		fmt.Fprintln(out, "履歴はまだありません")
		return
	}

	messages, err := l.sessions.History(ctx, l.sessionID)
	if err != nil {
		fmt.Fprintf(out, "エラー: %v\n", err)
		return
	}
	fmt.Fprintf(out, "セッション %s (%d 件)\n", l.sessionID, len(messages))
	for _, m := range messages {
		fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Role, preview(m.Content))
	}
}
