package gateway

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Limiter は外部呼び出しの開始を許可するまで待機する。
type Limiter interface {
	Wait(ctx context.Context) error
}

// WindowLimiter はスライディングログ方式のレートリミッター。
// 任意の連続したinterval内で開始できる呼び出しをlimit件に制限する。
// 直近limit件の許可時刻をリングバッファで保持し、最古の許可からintervalが
// 経過するまで次の許可を待たせる。
type WindowLimiter struct {
	limit    int
	interval time.Duration

	mu     sync.Mutex
	grants []time.Time // 直近の許可時刻（リングバッファ）
	next   int
	now    func() time.Time
}

// NewWindowLimiter は新しいWindowLimiterを生成する。
func NewWindowLimiter(limit int, interval time.Duration) (*WindowLimiter, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	if interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	return &WindowLimiter{
		limit:    limit,
		interval: interval,
		grants:   make([]time.Time, limit),
		now:      time.Now,
	}, nil
}

// Wait はスロットが空くまで待機する。ctxがキャンセルされた場合はctx.Err()を返す。
// 待機中の呼び出し同士の順序は保証しない。
func (l *WindowLimiter) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		delay := l.reserve()
		if delay <= 0 {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve はスロットが空いていれば許可を記録して0を返す。
// 空いていなければ最古の許可がウィンドウから外れるまでの時間を返す。
func (l *WindowLimiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	oldest := l.grants[l.next]
	if !oldest.IsZero() {
		if wait := oldest.Add(l.interval).Sub(now); wait > 0 {
			return wait
		}
	}

	l.grants[l.next] = now
	l.next = (l.next + 1) % l.limit
	return 0
}
