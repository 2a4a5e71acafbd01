package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rewardzway/internal/clock"
	"github.com/smallbiznis/rewardzway/internal/config"
	"github.com/smallbiznis/rewardzway/internal/migration"
	"github.com/smallbiznis/rewardzway/internal/observability"
	"github.com/smallbiznis/rewardzway/internal/scheduler"
	"github.com/smallbiznis/rewardzway/internal/server"
	"github.com/smallbiznis/rewardzway/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP API plus every reward domain
		server.Module,

		// Weekly payout batch
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
