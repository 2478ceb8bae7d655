package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jinford/doc-rag/internal/core/llm"
)

// DefaultConcurrency は EmbedMany の既定並列数
const DefaultConcurrency = 4

// Orchestrator は複数テキストの埋め込みを順序を保ったまま生成する
type Orchestrator struct {
	provider    llm.Embedder
	concurrency int
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// Option は Orchestrator のオプション設定
type Option func(*Orchestrator)

// WithConcurrency はプロバイダ呼び出しの最大並列数を設定する（1で逐次実行）
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithRateLimit は毎秒のプロバイダ呼び出し数を制限する（rps<=0 で無制限）
func WithRateLimit(rps float64, burst int) Option {
	return func(o *Orchestrator) {
		if rps <= 0 {
			o.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger はロガーを差し替える
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New は新しい Orchestrator を作成する
func New(provider llm.Embedder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:    provider,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ModelName は埋め込みモデル名を返す
func (o *Orchestrator) ModelName() string {
	return o.provider.ModelName()
}

// Dimension はベクトル次元数を返す
func (o *Orchestrator) Dimension() int {
	return o.provider.Dimension()
}

// EmbedOne は1テキストの埋め込みを生成する
func (o *Orchestrator) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if err := o.wait(ctx); err != nil {
		return nil, err
	}

	vec, err := o.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if dim := o.provider.Dimension(); dim > 0 && len(vec) != dim {
		return nil, fmt.Errorf("%w: embedding has %d dimensions, expected %d", llm.ErrProviderFailed, len(vec), dim)
	}
	return vec, nil
}

// EmbedMany は texts と同じ順序・同じ件数のベクトルを返す。
// いずれか1件でも失敗した場合は残りの呼び出しを中断し、部分結果は返さない。
func (o *Orchestrator) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	if len(texts) == 0 {
		return vectors, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, text := range texts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vec, err := o.EmbedOne(gctx, text)
			if err != nil {
				return fmt.Errorf("text %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Warn("埋め込み生成に失敗しました", "texts", len(texts), "error", err)
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}

	return vectors, nil
}

func (o *Orchestrator) wait(ctx context.Context) error {
	if o.limiter == nil {
		return nil
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", llm.ErrProviderUnavailable, err)
	}
	return nil
}
