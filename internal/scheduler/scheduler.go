package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rewardzway/internal/clock"
	"github.com/smallbiznis/rewardzway/internal/config"
	"github.com/smallbiznis/rewardzway/internal/lock"
	obsmetrics "github.com/smallbiznis/rewardzway/internal/observability/metrics"
	payoutdomain "github.com/smallbiznis/rewardzway/internal/payout/domain"
	referraldomain "github.com/smallbiznis/rewardzway/internal/referral/domain"
	rewardconfigdomain "github.com/smallbiznis/rewardzway/internal/rewardconfig/domain"
	"github.com/smallbiznis/rewardzway/internal/settlement"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	PayoutSvc payoutdomain.Service
	UserRepo  referraldomain.Repository

	Locker   *lock.Locker                `optional:"true"`
	Settings *config.RewardsConfigHolder `optional:"true"`
	Config   Config                      `optional:"true"`
}

type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	payoutSvc payoutdomain.Service
	userRepo  referraldomain.Repository
	locker    *lock.Locker
	settings  *config.RewardsConfigHolder

	mu          sync.Mutex
	lastSettled time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.PayoutSvc == nil || p.UserRepo == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:        p.DB,
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		payoutSvc: p.PayoutSvc,
		userRepo:  p.UserRepo,
		locker:    p.Locker,
		settings:  p.Settings,
	}, nil
}

// current returns the config for this run with the reloadable knobs applied.
func (s *Scheduler) current() (Config, bool) {
	if s.settings == nil {
		return s.cfg, true
	}
	payout := s.settings.Get().Payout
	return s.cfg.merge(payout), payout.Enabled
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(zap.String("run_id", run.runID))
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A timed out batch resumes on the next tick; payouts already written stay.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	cfg, payoutEnabled := s.current()
	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobWeeklyPayout, payoutEnabled && s.isJobEnabled(JobWeeklyPayout), func(ctx context.Context) error {
			return s.runJob(ctx, JobWeeklyPayout, cfg.BatchSize, cfg.JobTimeout, func(ctx context.Context) error {
				return s.weeklyPayout(ctx, cfg)
			})
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty list enables every job.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// WeeklyPayoutJob settles the most recently closed week for every member.
// Members already paid for that week are left untouched, so the job can be
// rerun or resumed after a timeout.
func (s *Scheduler) WeeklyPayoutJob(ctx context.Context) error {
	cfg, _ := s.current()
	return s.weeklyPayout(ctx, cfg)
}

func (s *Scheduler) weeklyPayout(ctx context.Context, cfg Config) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobWeeklyPayout, cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	schedMetrics := obsmetrics.Scheduler()

	week := settlement.PreviousWeek(s.clock.Now())
	run.SetWindow(week)
	log := s.logger(ctx).With(
		zap.Time("start_date", week.Start),
		zap.Time("end_date", week.End),
	)
	if s.isSettled(week) {
		schedMetrics.IncBatchDeferred(JobWeeklyPayout, obsmetrics.SchedulerBatchDeferredReasonWindowSettled)
		run.Defer(obsmetrics.SchedulerBatchDeferredReasonWindowSettled)
		log.Debug("scheduler.payout.already_settled")
		return nil
	}

	lockKey := weekLockKey(week)
	if s.locker.Enabled() {
		token, ok, err := s.locker.TryLock(ctx, lockKey, cfg.LockTTL)
		if err != nil {
			return err
		}
		if !ok {
			schedMetrics.IncBatchDeferred(JobWeeklyPayout, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
			run.Defer(obsmetrics.SchedulerBatchDeferredReasonLockHeld)
			log.Info("scheduler.payout.lock_held")
			return nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
				log.Warn("scheduler.payout.unlock_failed", zap.Error(err))
			}
		}()
	}

	var (
		afterID snowflake.ID
		failed  error
	)
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(failed, err)
		}

		ids, err := s.userRepo.ListIDsAfter(ctx, s.db.WithContext(ctx), afterID, cfg.BatchSize)
		if err != nil {
			return errors.Join(failed, err)
		}
		if len(ids) == 0 {
			break
		}

		created, skipped := 0, 0
		for _, id := range ids {
			_, ok, err := s.payoutSvc.WeeklyPayout(ctx, id, &week.Start)
			switch {
			case err == nil:
				if ok {
					created++
				}
			case errors.Is(err, payoutdomain.ErrNothingToPay):
				skipped++
			case errors.Is(err, rewardconfigdomain.ErrConfigurationMissing):
				return errors.Join(failed, err)
			case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
				return errors.Join(failed, err)
			default:
				failed = errors.Join(failed, fmt.Errorf("user %s: %w", id, err))
				s.logPayoutFailure(ctx, run, id, err)
			}
		}

		run.AddProcessed(len(ids))
		run.AddCreated(created)
		run.AddSkipped(skipped)
		schedMetrics.AddBatchProcessed(JobWeeklyPayout, "payouts", created)
		afterID = ids[len(ids)-1]
		if len(ids) < cfg.BatchSize {
			break
		}
	}

	if failed != nil {
		return failed
	}
	s.markSettled(week)
	log.Info("scheduler.payout.settled",
		zap.Int("members_processed", run.processedCount),
		zap.Int("payouts_created", run.createdCount),
	)
	return nil
}

func (s *Scheduler) isSettled(week settlement.Window) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSettled.Equal(week.Start)
}

func (s *Scheduler) markSettled(week settlement.Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSettled = week.Start
}

func weekLockKey(week settlement.Window) string {
	return "rewardzway:payout:week:" + week.Start.Format(time.DateOnly)
}
