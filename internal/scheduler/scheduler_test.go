package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/osint-ingest/internal/scheduler"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDispatcher struct {
	mu         sync.Mutex
	fetchCalls []string
	sweepCalls int
	fetchErr   error
	sweepErr   error
}

func (f *fakeDispatcher) EnqueueFetch(ctx context.Context, adapterName string, maxRetries int, retryDelay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls = append(f.fetchCalls, adapterName)
	return f.fetchErr
}

func (f *fakeDispatcher) EnqueueSweep(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweepCalls++
	return f.sweepErr
}

func (f *fakeDispatcher) snapshot() (fetch []string, sweep int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.fetchCalls))
	copy(out, f.fetchCalls)
	return out, f.sweepCalls
}

func TestScheduler_RegisterFetch_DispatchesOnEveryTick(t *testing.T) {
	disp := &fakeDispatcher{}
	s := scheduler.New(disp, scheduler.RetryPolicy{FetchMaxRetries: 3, FetchRetryDelay: time.Second}, discardLogger())
	require.NoError(t, s.RegisterFetch("@every 10ms", "rss"))

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	}()

	require.Eventually(t, func() bool {
		calls, _ := disp.snapshot()
		return len(calls) >= 2
	}, 500*time.Millisecond, 10*time.Millisecond)
}

func TestScheduler_RegisterSweep_DispatchesOnEveryTick(t *testing.T) {
	disp := &fakeDispatcher{}
	s := scheduler.New(disp, scheduler.RetryPolicy{SweepMaxRetries: 2, SweepRetryDelay: time.Second}, discardLogger())
	require.NoError(t, s.RegisterSweep("@every 10ms"))

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	}()

	require.Eventually(t, func() bool {
		_, sweeps := disp.snapshot()
		return sweeps >= 2
	}, 500*time.Millisecond, 10*time.Millisecond)
}

func TestScheduler_Stop_ReturnsAfterInFlightJobsFinish(t *testing.T) {
	disp := &fakeDispatcher{}
	s := scheduler.New(disp, scheduler.RetryPolicy{}, discardLogger())
	require.NoError(t, s.RegisterSweep("@every 10ms"))

	s.Start()
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.Stop(ctx)
	assert.NoError(t, err)
}

func TestCronSpecEveryMinutes(t *testing.T) {
	assert.Equal(t, "*/15 * * * *", scheduler.CronSpecEveryMinutes(15))
	assert.Equal(t, "*/5 * * * *", scheduler.CronSpecEveryMinutes(5))
	assert.Equal(t, "*/1 * * * *", scheduler.CronSpecEveryMinutes(0))
}
