package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultRewardsConfigIsValid(t *testing.T) {
	require.NoError(t, validateRewardsConfig(DefaultRewardsConfig()))
}

func TestValidateRewardsConfigRejectsZeroBatch(t *testing.T) {
	cfg := DefaultRewardsConfig()
	cfg.Payout.BatchSize = 0
	require.Error(t, validateRewardsConfig(cfg))
}

func TestNilHolderFallsBackToDefaults(t *testing.T) {
	var holder *RewardsConfigHolder
	require.Equal(t, 5*time.Second, holder.Get().Allocation.LockTTL)
}

func TestStaticHolder(t *testing.T) {
	cfg := DefaultRewardsConfig()
	cfg.Payout.BatchSize = 7
	holder := NewStaticRewardsConfigHolder(cfg)
	require.Equal(t, 7, holder.Get().Payout.BatchSize)
}

func TestGetenvBool(t *testing.T) {
	t.Setenv("REWARDZWAY_TEST_FLAG", "off")
	require.False(t, getenvBool("REWARDZWAY_TEST_FLAG", true))
	t.Setenv("REWARDZWAY_TEST_FLAG", "garbage")
	require.True(t, getenvBool("REWARDZWAY_TEST_FLAG", true))
}
