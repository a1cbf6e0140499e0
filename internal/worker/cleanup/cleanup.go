// Package cleanup は期限切れセッションとメール認証トークンの定期アーカイブジョブを提供する。
// Notionのページは削除できないため、アーカイブ（archived: true）で除去する。
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Purger は期限切れレコードをアーカイブする。*adapter.Adapter が実装する。
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (sessions, tokens int)
}

// PurgeRecorder はアーカイブ件数を記録する。*metrics.Collector が実装する。
type PurgeRecorder interface {
	RecordPurged(kind string, count int)
}

type noopRecorder struct{}

func (noopRecorder) RecordPurged(string, int) {}

// CleanupJob は期限切れレコードのアーカイブジョブ。
// 何度実行しても結果は変わらない（アーカイブ済みのページは検索対象外）。
type CleanupJob struct {
	purger   Purger
	logger   *slog.Logger
	recorder PurgeRecorder
	now      func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(purger Purger, logger *slog.Logger, recorder PurgeRecorder) *CleanupJob {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &CleanupJob{
		purger:   purger,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// Run は期限切れのセッションとメール認証トークンを1回アーカイブする。
func (j *CleanupJob) Run(ctx context.Context) {
	start := j.now()

	sessions, tokens := j.purger.PurgeExpired(ctx, start)
	j.recorder.RecordPurged("session", sessions)
	j.recorder.RecordPurged("verification_token", tokens)

	j.logger.Info("cleanup job completed",
		slog.Int("archived_sessions", sessions),
		slog.Int("archived_verification_tokens", tokens),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}

// Start は起動直後に1回実行し、以降intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("cleanup job started", slog.Duration("interval", interval))

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cleanup job stopped")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
