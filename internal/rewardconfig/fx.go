package rewardconfig

import (
	"github.com/smallbiznis/rewardzway/internal/rewardconfig/repository"
	"github.com/smallbiznis/rewardzway/internal/rewardconfig/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rewardconfig.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
