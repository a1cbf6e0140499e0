package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type mockPurger struct {
	mu       sync.Mutex
	calls    []time.Time
	sessions int
	tokens   int
}

func (m *mockPurger) PurgeExpired(ctx context.Context, now time.Time) (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, now)
	return m.sessions, m.tokens
}

func (m *mockPurger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type recordingRecorder struct {
	counts map[string]int
}

func (r *recordingRecorder) RecordPurged(kind string, count int) {
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[kind] += count
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestCleanupJob_Run_PurgesWithCurrentTime(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{sessions: 3, tokens: 2}
	recorder := &recordingRecorder{}
	job := NewCleanupJob(purger, newTestLogger(&buf), recorder)

	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	job.Run(context.Background())

	if purger.callCount() != 1 {
		t.Fatalf("PurgeExpired called %d times, want 1", purger.callCount())
	}
	if !purger.calls[0].Equal(fixed) {
		t.Errorf("PurgeExpired now = %v, want %v", purger.calls[0], fixed)
	}
	if recorder.counts["session"] != 3 || recorder.counts["verification_token"] != 2 {
		t.Errorf("recorded counts = %v", recorder.counts)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "cleanup job completed" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["archived_sessions"] != float64(3) || entry["archived_verification_tokens"] != float64(2) {
		t.Errorf("unexpected log entry: %v", entry)
	}
}

func TestCleanupJob_NilRecorder(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPurger{}, newTestLogger(&buf), nil)

	// パニックしないこと
	job.Run(context.Background())
}

func TestCleanupJob_Start_RunsImmediatelyAndOnTick(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{}
	job := NewCleanupJob(purger, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 20*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for purger.callCount() < 3 {
		select {
		case <-deadline:
			t.Fatalf("PurgeExpired called %d times, want at least 3", purger.callCount())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}
