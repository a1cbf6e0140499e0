// Package gateway はNotion APIへの呼び出しをレート制限付きで実行する。
// すべての呼び出しは単一のリミッターを共有し、失敗はログ出力のうえnilに変換される。
package gateway

import (
	"context"
	"log/slog"
	"time"
)

// 呼び出し結果の分類。メトリクスのラベルに使う。
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeCanceled = "canceled"
)

// MetricsRecorder はゲートウェイのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordCall(op, outcome string, duration time.Duration)
	RecordLimiterWait(duration time.Duration)
	IncInFlight()
	DecInFlight()
}

type noopMetrics struct{}

func (noopMetrics) RecordCall(string, string, time.Duration) {}
func (noopMetrics) RecordLimiterWait(time.Duration)          {}
func (noopMetrics) IncInFlight()                             {}
func (noopMetrics) DecInFlight()                             {}

// Gateway はレート制限と同時実行数の制限を行う呼び出し窓口。
// 生成後は複数ゴルーチンから安全に使用できる。
type Gateway struct {
	limiter Limiter
	slots   chan struct{}
	logger  *slog.Logger
	metrics MetricsRecorder
}

// Option はGatewayの設定オプション。
type Option func(*Gateway)

// WithMaxInFlight は同時に実行中の呼び出し数の上限を設定する。0以下は無制限。
func WithMaxInFlight(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.slots = make(chan struct{}, n)
		}
	}
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(m MetricsRecorder) Option {
	return func(g *Gateway) {
		if m != nil {
			g.metrics = m
		}
	}
}

// New は新しいGatewayを生成する。
func New(limiter Limiter, logger *slog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		limiter: limiter,
		logger:  logger,
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Call はリミッターのスロットを待ってからfnを実行する。
// fnがエラーを返した場合（通信エラー・非2xx・デコード失敗・待機中のキャンセル）は
// 1回だけERRORログを出力してnilを返す。リトライはしない。
// 呼び出し側はnilを「操作が行われなかった」として扱う。
func Call[T any](ctx context.Context, g *Gateway, op string, fn func(ctx context.Context) (*T, error)) *T {
	start := time.Now()

	if g.slots != nil {
		select {
		case g.slots <- struct{}{}:
			defer func() { <-g.slots }()
		case <-ctx.Done():
			g.fail(op, OutcomeCanceled, start, ctx.Err())
			return nil
		}
	}

	waitStart := time.Now()
	if err := g.limiter.Wait(ctx); err != nil {
		g.fail(op, OutcomeCanceled, start, err)
		return nil
	}
	g.metrics.RecordLimiterWait(time.Since(waitStart))

	g.metrics.IncInFlight()
	defer g.metrics.DecInFlight()
	callStart := time.Now()
	result, err := fn(ctx)
	if err != nil {
		g.fail(op, OutcomeFailure, callStart, err)
		return nil
	}

	g.metrics.RecordCall(op, OutcomeSuccess, time.Since(callStart))
	return result
}

func (g *Gateway) fail(op, outcome string, start time.Time, err error) {
	d := time.Since(start)
	g.metrics.RecordCall(op, outcome, d)
	g.logger.Error("notion call failed",
		slog.String("operation", op),
		slog.String("outcome", outcome),
		slog.Duration("duration", d),
		slog.String("error", err.Error()),
	)
}
