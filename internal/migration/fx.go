package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rewardzway/internal/config"
	"github.com/smallbiznis/rewardzway/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
		if !cfg.RunMigrations {
			log.Info("migrations disabled")
			return nil
		}

		if err := Apply(conn, cfg.DBType); err != nil {
			return err
		}
		return seed.EnsureDefaultConfigurations(conn, node)
	}),
)
