// Package worker drives the pipeline on a fixed interval.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrShutdownTimeout is returned when the runner doesn't stop within timeout.
var ErrShutdownTimeout = errors.New("runner shutdown timed out")

// Pass is one unit of pipeline work.
type Pass interface {
	Run(ctx context.Context) error
}

// Purger reclaims expired state entries. Optional.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Runner executes one pipeline pass per tick. Passes run sequentially: a
// slow pass delays the next tick's work rather than overlapping with it,
// which keeps the reservation store free of self-inflicted lease contention.
type Runner struct {
	pass     Pass
	purger   Purger
	interval time.Duration
	logger   *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunner creates a runner. purger may be nil.
func NewRunner(pass Pass, purger Purger, interval time.Duration, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		pass:     pass,
		purger:   purger,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the run loop. The first pass fires immediately.
func (r *Runner) Start() {
	r.logger.Info("starting runner", "interval", r.interval)

	r.wg.Add(1)
	go r.loop()
}

// Stop gracefully stops the runner, waiting for an in-flight pass.
func (r *Runner) Stop(timeout time.Duration) error {
	r.logger.Info("stopping runner")
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("runner stopped gracefully")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

func (r *Runner) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runOnce()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.runOnce()
		}
	}
}

func (r *Runner) runOnce() {
	start := time.Now()

	if err := r.pass.Run(r.ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		r.logger.Error("pass failed", "error", err, "elapsed", time.Since(start))
		return
	}
	r.logger.Info("pass completed", "elapsed", time.Since(start))

	r.purge()
}

// purge opportunistically drops expired reservation rows after a clean pass.
func (r *Runner) purge() {
	if r.purger == nil {
		return
	}

	n, err := r.purger.PurgeExpired(r.ctx)
	if err != nil {
		r.logger.Warn("purge failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("purged expired state", "rows", n)
	}
}
