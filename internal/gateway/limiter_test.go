package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWindowLimiter_RejectsInvalidConfig(t *testing.T) {
	_, err := NewWindowLimiter(0, time.Second)
	assert.Error(t, err)

	_, err = NewWindowLimiter(3, 0)
	assert.Error(t, err)

	l, err := NewWindowLimiter(3, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, l.limit)
	assert.Equal(t, time.Second, l.interval)
}

// 固定時計で、ウィンドウ内の許可数が上限を超えないことを検証する。
func TestWindowLimiter_ReserveRespectsRollingWindow(t *testing.T) {
	l, err := NewWindowLimiter(3, time.Second)
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		now = base.Add(time.Duration(i) * 100 * time.Millisecond)
		assert.Zero(t, l.reserve(), "grant %d", i)
	}

	// 4件目は最初の許可（base）から1秒経つまで待たされる
	now = base.Add(300 * time.Millisecond)
	assert.Equal(t, 700*time.Millisecond, l.reserve())

	now = base.Add(time.Second)
	assert.Zero(t, l.reserve())

	// 次は2件目（base+100ms）の1秒後
	now = base.Add(time.Second + 50*time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, l.reserve())
}

func TestWindowLimiter_WaitHonorsContext(t *testing.T) {
	l, err := NewWindowLimiter(1, time.Hour)
	require.NoError(t, err)

	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWindowLimiter_WaitReturnsImmediatelyWhenCanceled(t *testing.T) {
	l, err := NewWindowLimiter(3, time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}
