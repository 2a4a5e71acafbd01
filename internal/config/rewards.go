package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RewardsConfig carries operational knobs that can change without a restart.
// Reward amounts and rates live in the configurations table, not here.
type RewardsConfig struct {
	Allocation AllocationConfig `mapstructure:"allocation"`
	Payout     PayoutJobConfig  `mapstructure:"payout"`
}

type AllocationConfig struct {
	LockTTL        time.Duration `mapstructure:"lockTTL"`
	LockRetries    int           `mapstructure:"lockRetries"`
	LockRetryDelay time.Duration `mapstructure:"lockRetryDelay"`
}

type PayoutJobConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BatchSize int           `mapstructure:"batchSize"`
	Interval  time.Duration `mapstructure:"interval"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func DefaultRewardsConfig() RewardsConfig {
	return RewardsConfig{
		Allocation: AllocationConfig{
			LockTTL:        5 * time.Second,
			LockRetries:    20,
			LockRetryDelay: 50 * time.Millisecond,
		},
		Payout: PayoutJobConfig{
			Enabled:   true,
			BatchSize: 200,
			Interval:  time.Hour,
			Timeout:   30 * time.Minute,
		},
	}
}

type RewardsConfigHolder struct {
	current atomic.Value // holds RewardsConfig
}

// NewStaticRewardsConfigHolder returns a holder pinned to cfg.
func NewStaticRewardsConfigHolder(cfg RewardsConfig) *RewardsConfigHolder {
	holder := &RewardsConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewRewardsConfigHolder() (*RewardsConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("rewards")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/rewardzway/config")
	v.AddConfigPath("/etc/rewardzway")
	v.AddConfigPath(".")

	v.SetEnvPrefix("REWARDZWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRewardsConfig()
	v.SetDefault("rewards.allocation.lockTTL", defaults.Allocation.LockTTL)
	v.SetDefault("rewards.allocation.lockRetries", defaults.Allocation.LockRetries)
	v.SetDefault("rewards.allocation.lockRetryDelay", defaults.Allocation.LockRetryDelay)
	v.SetDefault("rewards.payout.enabled", defaults.Payout.Enabled)
	v.SetDefault("rewards.payout.batchSize", defaults.Payout.BatchSize)
	v.SetDefault("rewards.payout.interval", defaults.Payout.Interval)
	v.SetDefault("rewards.payout.timeout", defaults.Payout.Timeout)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg RewardsConfig
	if err := v.UnmarshalKey("rewards", &cfg); err != nil {
		return nil, err
	}
	if err := validateRewardsConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticRewardsConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RewardsConfig
		if err := v.UnmarshalKey("rewards", &updated); err != nil {
			log.Printf("[rewards-config] reload failed: %v", err)
			return
		}
		if err := validateRewardsConfig(updated); err != nil {
			log.Printf("[rewards-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[rewards-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *RewardsConfigHolder) Get() RewardsConfig {
	if h == nil {
		return DefaultRewardsConfig()
	}
	return h.current.Load().(RewardsConfig)
}

func validateRewardsConfig(cfg RewardsConfig) error {
	if cfg.Allocation.LockTTL <= 0 {
		return errors.New("rewards.allocation.lockTTL must be positive")
	}
	if cfg.Allocation.LockRetries < 0 {
		return errors.New("rewards.allocation.lockRetries cannot be negative")
	}
	if cfg.Payout.BatchSize <= 0 {
		return errors.New("rewards.payout.batchSize must be positive")
	}
	if cfg.Payout.Interval <= 0 {
		return errors.New("rewards.payout.interval must be positive")
	}
	return nil
}
