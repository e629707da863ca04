// Package scheduler runs the recurring, calendar-based jobs that dispatch
// fetch and sweep units: every 15 minutes for each fetch adapter, every
// 5 minutes for the processing sweep. The scheduler never blocks on a
// dispatched unit's completion.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Dispatcher is the subset of dispatcher.Client the scheduler depends on.
type Dispatcher interface {
	EnqueueFetch(ctx context.Context, adapterName string, maxRetries int, retryDelay time.Duration) error
	EnqueueSweep(ctx context.Context, maxRetries int, retryDelay time.Duration) error
}

// RetryPolicy configures the per-job-type retry count and base delay.
type RetryPolicy struct {
	FetchMaxRetries int
	FetchRetryDelay time.Duration
	SweepMaxRetries int
	SweepRetryDelay time.Duration
}

// Scheduler runs cron-style recurring jobs against a Dispatcher, in UTC,
// using calendar-based (minute-of-hour) recurrence.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher Dispatcher
	policy     RetryPolicy
	logger     *slog.Logger
}

// New creates a scheduler with no jobs; fetch and sweep jobs are added
// with RegisterFetch and RegisterSweep. The scheduler command registers
// fetch jobs for the feed and events adapters only; the business-registry
// adapter is typically run via run-once against an operator-supplied
// search term list.
func New(dispatcher Dispatcher, policy RetryPolicy, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		dispatcher: dispatcher,
		policy:     policy,
		logger:     logger,
	}
}

// RegisterFetch adds a recurring fetch job for the named adapter on the
// given cron spec (e.g. "*/15 * * * *" for every 15 minutes).
func (s *Scheduler) RegisterFetch(spec, adapterName string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.dispatcher.EnqueueFetch(ctx, adapterName, s.policy.FetchMaxRetries, s.policy.FetchRetryDelay); err != nil {
			s.logger.Error("scheduler: failed to enqueue fetch", "adapter", adapterName, "error", err)
		}
	})
	return err
}

// RegisterSweep adds the recurring processing-sweep job on the given cron
// spec (e.g. "*/5 * * * *" for every 5 minutes).
func (s *Scheduler) RegisterSweep(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.dispatcher.EnqueueSweep(ctx, s.policy.SweepMaxRetries, s.policy.SweepRetryDelay); err != nil {
			s.logger.Error("scheduler: failed to enqueue sweep", "error", err)
		}
	})
	return err
}

// Start runs the scheduler in the background. It does not block.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop signals the scheduler to stop dispatching new ticks and waits for
// any running job functions to return. It does not wait for dispatched
// units themselves to complete, since the scheduler never blocks on them.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CronSpecEveryMinutes builds a calendar-based "every N minutes" cron spec
// using minute-of-hour modulo recurrence.
func CronSpecEveryMinutes(n int) string {
	if n <= 0 {
		n = 1
	}
	return "*/" + itoa(n) + " * * * *"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
