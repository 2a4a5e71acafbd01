package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/rewardzway/internal/observability/context"
	obslogger "github.com/smallbiznis/rewardzway/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/rewardzway/internal/observability/metrics"
	"github.com/smallbiznis/rewardzway/internal/settlement"
	"go.uber.org/zap"
)

// jobRun accumulates what one scheduler run did so the finish line can
// report the settlement week and the payout outcome per member.
type jobRun struct {
	job       string
	runID     string
	batchSize int
	startedAt time.Time

	window   *settlement.Window
	deferred string

	processedCount int
	createdCount   int
	skippedCount   int
	errorCount     int
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processedCount += count
}

// AddCreated counts payout rows this run inserted.
func (r *jobRun) AddCreated(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.createdCount += count
}

// AddSkipped counts members with nothing to pay for the week.
func (r *jobRun) AddSkipped(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.skippedCount += count
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

func (r *jobRun) SetWindow(week settlement.Window) {
	if r == nil {
		return
	}
	r.window = &week
}

// Defer records why the run left the week untouched.
func (r *jobRun) Defer(reason string) {
	if r == nil {
		return
	}
	r.deferred = reason
}

func (s *Scheduler) ensureJobRun(ctx context.Context, job string, batchSize int) (context.Context, *jobRun, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing := jobRunFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithJob(ctx, job)
	return ctx, run, true
}

func jobRunFromContext(ctx context.Context) *jobRun {
	if ctx == nil {
		return nil
	}
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("run_id", run.runID),
		zap.Int("batch_size", run.batchSize),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	fields := []zap.Field{
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("members_processed", run.processedCount),
		zap.Int("payouts_created", run.createdCount),
		zap.Int("members_nothing_to_pay", run.skippedCount),
		zap.Int("error_count", run.errorCount),
	}
	if run.window != nil {
		fields = append(fields,
			zap.String("week_start", run.window.Start.Format(time.DateOnly)),
			zap.String("week_end", run.window.End.Format(time.DateOnly)),
		)
	}
	if run.deferred != "" {
		fields = append(fields, zap.String("deferred_reason", run.deferred))
	}

	log := s.logger(ctx)
	if run.errorCount > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

// logPayoutFailure logs a member whose payout could not be settled and
// counts it against the run.
func (s *Scheduler) logPayoutFailure(ctx context.Context, run *jobRun, userID snowflake.ID, err error) {
	if err == nil {
		return
	}
	run.IncError()
	if userID != 0 {
		ctx = obscontext.WithUserID(ctx, userID.String())
	}
	fields := []zap.Field{
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	}
	if run != nil && run.window != nil {
		fields = append(fields, zap.String("week_start", run.window.Start.Format(time.DateOnly)))
	}
	s.logger(ctx).Error("scheduler.payout.failed", fields...)
}
