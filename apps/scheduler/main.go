package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rewardzway/internal/clock"
	"github.com/smallbiznis/rewardzway/internal/config"
	"github.com/smallbiznis/rewardzway/internal/lock"
	"github.com/smallbiznis/rewardzway/internal/observability"
	"github.com/smallbiznis/rewardzway/internal/payout"
	"github.com/smallbiznis/rewardzway/internal/referral"
	"github.com/smallbiznis/rewardzway/internal/reward"
	"github.com/smallbiznis/rewardzway/internal/rewardconfig"
	"github.com/smallbiznis/rewardzway/internal/scheduler"
	"github.com/smallbiznis/rewardzway/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,

		// Domain services required by the payout job
		rewardconfig.Module,
		referral.Module,
		reward.Module,
		payout.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
