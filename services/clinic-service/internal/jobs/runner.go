// Package jobs runs the service's periodic maintenance tasks on cron schedules.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

type Runner struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
	ctx     context.Context
}

// NewRunner builds a runner whose jobs are skipped while a previous run of the
// same job is still in flight. Each run is bounded by timeout.
func NewRunner(logger *slog.Logger, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = time.Minute
	}
	cl := cronLogger{logger}
	return &Runner{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		timeout: timeout,
		ctx:     context.Background(),
	}
}

// Add schedules job under spec (standard five-field cron or "@every 15m").
func (r *Runner) Add(name, spec string, job Job) error {
	_, err := r.cron.AddFunc(spec, func() { r.runOnce(name, job) })
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	r.logger.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

// Run starts the scheduler and blocks until ctx is done and in-flight jobs finish.
func (r *Runner) Run(ctx context.Context) {
	r.ctx = ctx
	r.cron.Start()
	<-ctx.Done()
	<-r.cron.Stop().Done()
}

func (r *Runner) runOnce(name string, job Job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), r.timeout)
	defer cancel()
	start := time.Now()
	if err := job(ctx); err != nil {
		r.logger.Error("job failed", "job", name, "err", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	r.logger.Debug("job finished", "job", name, "duration_ms", time.Since(start).Milliseconds())
}

type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debug("cron: "+msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error("cron: "+msg, append(kv, "err", err)...)
}
