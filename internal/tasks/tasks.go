// Package tasks runs named fire-and-forget jobs on tracked goroutines.
// Every failure lands in the log with the job's name, and Close blocks
// until in-flight jobs drain, so a write dispatched in the background is
// never silently abandoned.
package tasks

import (
	"context"
	"log"
	"sync"
	"time"
)

const defaultTimeout = 30 * time.Second

// Runner executes named background jobs.
type Runner struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	timeout time.Duration
	closed  bool
}

// NewRunner builds a Runner whose jobs each get their own context with the
// given timeout.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Runner{timeout: timeout}
}

// Go schedules fn on its own goroutine. Once the runner is closed the job
// runs inline instead, so shutdown-time writes still land before the
// caller returns.
func (r *Runner) Go(name string, fn func(context.Context) error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.run(name, fn)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		r.run(name, fn)
	}()
}

func (r *Runner) run(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Printf("background task %s failed: %v", name, err)
	}
}

// Close stops accepting new goroutines and waits for in-flight jobs,
// giving up when ctx expires.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
