// Package scheduler runs a job at wall-clock-aligned interval boundaries.
// A 15-minute interval fires at :00, :15, :30, :45 regardless of when the
// scheduler started.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// stopJoinTimeout bounds how long Stop waits for the loop to exit.
const stopJoinTimeout = 5 * time.Second

// maxSleep keeps the wait loop responsive to Stop even for long intervals.
const maxSleep = time.Second

// Job runs at an interval boundary. boundary is the wall-clock instant the
// tick was aligned to, which may be slightly in the past by the time the job
// runs.
type Job func(ctx context.Context, boundary time.Time) error

// Scheduler fires a single job at aligned boundaries until stopped.
type Scheduler struct {
	interval time.Duration
	job      Job

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a scheduler for the given interval and job.
func New(interval time.Duration, job Job) *Scheduler {
	return &Scheduler{interval: interval, job: job}
}

// NextBoundary returns the first interval boundary strictly after now,
// aligned to the local wall clock. Truncate alone aligns to the UTC epoch,
// which puts an hourly tick at :30 local in fractional-offset zones; the
// offset shift keeps boundaries on local :00/:15/:30/:45.
func NextBoundary(now time.Time, interval time.Duration) time.Time {
	_, offset := now.Zone()
	shift := time.Duration(offset) * time.Second
	return now.Add(shift).Truncate(interval).Add(interval - shift)
}

// Start launches the tick loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(runCtx)
	slog.Info("scheduler started", "interval", s.interval)
}

// Stop signals the loop and waits for it to exit. Safe to call on a stopped
// scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	s.cancel()
	select {
	case <-s.done:
	case <-time.After(stopJoinTimeout):
		slog.Warn("scheduler loop did not exit in time")
	}
	s.running = false
	slog.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	for {
		boundary := NextBoundary(time.Now(), s.interval)
		if !s.waitUntil(ctx, boundary) {
			return
		}
		s.runJob(ctx, boundary)
	}
}

// waitUntil sleeps until t in short increments so a stop request is noticed
// within a second. Returns false if the context was canceled.
func (s *Scheduler) waitUntil(ctx context.Context, t time.Time) bool {
	for {
		d := time.Until(t)
		if d <= 0 {
			return true
		}
		if d > maxSleep {
			d = maxSleep
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
		}
	}
}

// runJob isolates the loop from job failures. An error or panic is logged
// and the next tick proceeds normally.
func (s *Scheduler) runJob(ctx context.Context, boundary time.Time) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduled job panicked", "boundary", boundary, "panic", r)
		}
	}()

	if err := s.job(ctx, boundary); err != nil {
		slog.Warn("scheduled job failed", "boundary", boundary, "error", err)
	}
}
