package scheduler

import (
	"time"

	"github.com/smallbiznis/rewardzway/internal/config"
)

const JobWeeklyPayout = "weekly_payout"

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
	LockTTL     time.Duration
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Hour,
		BatchSize:   200,
		JobTimeout:  30 * time.Minute,
		LockTTL:     time.Hour,
	}
}

// ProvideConfig seeds the scheduler from the rewards file. Batch size and
// timeout are re-read from the holder on every run.
func ProvideConfig(holder *config.RewardsConfigHolder) Config {
	payout := holder.Get().Payout
	return Config{
		RunInterval: payout.Interval,
		BatchSize:   payout.BatchSize,
		JobTimeout:  payout.Timeout,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

// merge overlays the hot-reloadable payout knobs onto c.
func (c Config) merge(payout config.PayoutJobConfig) Config {
	if payout.BatchSize > 0 {
		c.BatchSize = payout.BatchSize
	}
	if payout.Timeout > 0 {
		c.JobTimeout = payout.Timeout
	}
	return c
}
