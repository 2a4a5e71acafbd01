package rewardclaim

import (
	"github.com/smallbiznis/rewardzway/internal/rewardclaim/repository"
	"github.com/smallbiznis/rewardzway/internal/rewardclaim/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rewardclaim.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
