package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rewardzway/internal/clock"
	"github.com/smallbiznis/rewardzway/internal/config"
	"github.com/smallbiznis/rewardzway/internal/observability"
	"github.com/smallbiznis/rewardzway/internal/server"
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

		// No scheduler; payouts are settled by apps/scheduler.
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
