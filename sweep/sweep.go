// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/danielhkuo/stall-allot/engine"
	"github.com/danielhkuo/stall-allot/models"
	"github.com/danielhkuo/stall-allot/obs"
)

// DueLister lists active processes whose expiry has passed.
type DueLister interface {
	ListDueProcesses(ctx context.Context, now time.Time, limit int) ([]models.Process, error)
}

// Resolver commits the outcome of one process.
type Resolver interface {
	Resolve(ctx context.Context, processID string, method models.ResolutionMethod, actor string) (models.Outcome, error)
}

// Result summarises one sweep pass.
type Result struct {
	Due      int
	Resolved int
	Failed   int
}

// Job periodically resolves expired processes. A failure on one process is
// logged and counted; the pass continues with the next one and the failed
// process is picked up again on the next tick.
type Job struct {
	lister   DueLister
	resolver Resolver
	clock    engine.Clock
	metrics  *obs.Metrics
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

// NewJob creates a sweep job. A nil clock uses the wall clock.
func NewJob(lister DueLister, resolver Resolver, clock engine.Clock, metrics *obs.Metrics, interval time.Duration, batch int) *Job {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	if clock == nil {
		clock = engine.SystemClock{}
	}
	return &Job{
		lister:   lister,
		resolver: resolver,
		clock:    clock,
		metrics:  metrics,
		logger:   slog.Default().With("component", "sweep"),
		interval: interval,
		batch:    batch,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (j *Job) Run(ctx context.Context) error {
	t := time.NewTicker(j.interval)
	defer t.Stop()

	// Run once immediately
	j.SweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			j.SweepOnce(ctx)
		}
	}
}

// SweepOnce resolves up to one batch of due processes.
func (j *Job) SweepOnce(ctx context.Context) Result {
	start := time.Now()
	var res Result

	due, err := j.lister.ListDueProcesses(ctx, j.clock.Now(), j.batch)
	if err != nil {
		j.logger.Error("sweep list failed", "error", err)
		j.metrics.SweepRun(1)
		return Result{Failed: 1}
	}
	res.Due = len(due)

	for _, p := range due {
		if ctx.Err() != nil {
			break
		}
		o, err := j.resolver.Resolve(ctx, p.ID, models.MethodAutoSweep, models.SweepActor)
		if err != nil {
			res.Failed++
			j.logger.Error("sweep resolve failed", "process_id", p.ID, "error", err)
			continue
		}
		res.Resolved++
		j.logger.Debug("sweep resolved process", "process_id", p.ID, "winner_id", o.WinnerID)
	}

	j.metrics.SweepRun(res.Failed)

	// Only log at Info if something interesting happened
	if res.Due > 0 {
		j.logger.Info("sweep pass",
			"due", res.Due,
			"resolved", res.Resolved,
			"failed", res.Failed,
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
	return res
}
