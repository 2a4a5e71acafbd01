package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/rewardzway/internal/config"
	"github.com/smallbiznis/rewardzway/internal/lock"
	"github.com/smallbiznis/rewardzway/internal/observability"
	obsmiddleware "github.com/smallbiznis/rewardzway/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/rewardzway/internal/observability/metrics"
	obstracing "github.com/smallbiznis/rewardzway/internal/observability/tracing"
	"github.com/smallbiznis/rewardzway/internal/payout"
	payoutdomain "github.com/smallbiznis/rewardzway/internal/payout/domain"
	"github.com/smallbiznis/rewardzway/internal/ratelimit"
	"github.com/smallbiznis/rewardzway/internal/referral"
	referraldomain "github.com/smallbiznis/rewardzway/internal/referral/domain"
	"github.com/smallbiznis/rewardzway/internal/reward"
	rewarddomain "github.com/smallbiznis/rewardzway/internal/reward/domain"
	"github.com/smallbiznis/rewardzway/internal/rewardclaim"
	rewardclaimdomain "github.com/smallbiznis/rewardzway/internal/rewardclaim/domain"
	"github.com/smallbiznis/rewardzway/internal/rewardconfig"
	rewardconfigdomain "github.com/smallbiznis/rewardzway/internal/rewardconfig/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	lock.Module,
	ratelimit.Module,
	rewardconfig.Module,
	referral.Module,
	reward.Module,
	rewardclaim.Module,
	payout.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	rewardSvc rewarddomain.Service
	claimSvc  rewardclaimdomain.Service
	payoutSvc payoutdomain.Service
	teamSvc   referraldomain.Service
	configSvc rewardconfigdomain.Service
	limiter   *ratelimit.RewardWriteLimiter
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	RewardSvc rewarddomain.Service
	ClaimSvc  rewardclaimdomain.Service
	PayoutSvc payoutdomain.Service
	TeamSvc   referraldomain.Service
	ConfigSvc rewardconfigdomain.Service
	Limiter   *ratelimit.RewardWriteLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		rewardSvc: p.RewardSvc,
		claimSvc:  p.ClaimSvc,
		payoutSvc: p.PayoutSvc,
		teamSvc:   p.TeamSvc,
		configSvc: p.ConfigSvc,
		limiter:   p.Limiter,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Rewards --------
	api.POST("/rewards/allocations", s.RewardWriteRateLimit("allocations"), s.AllocateReward)
	api.POST("/rewards/spot", s.RewardWriteRateLimit("spot"), s.RecordSpotReward)
	api.POST("/orders/:user_id/paid", s.RewardWriteRateLimit("orders"), s.OrderPaid)

	// -------- Members --------
	api.POST("/users/:user_id/referral", s.RewardWriteRateLimit("referral"), s.AttachReferral)
	api.GET("/users/:user_id/reward-criteria", s.CriteriaProgress)
	api.POST("/users/:user_id/reward-claims", s.UpsertClaim)
	api.POST("/users/:user_id/payouts/weekly", s.WeeklyPayout)
	api.GET("/users/:user_id/dashboard", s.UserDashboard)
	api.GET("/users/:user_id/team/tree", s.TeamTree)
	api.GET("/users/:user_id/team/levels", s.TeamLevels)
	api.GET("/users/:user_id/referral-report", s.ReferralReport)
	api.GET("/users/:user_id/matching-report", s.MatchingReport)

	// -------- Payouts --------
	api.GET("/payouts", s.ListPayouts)
	api.POST("/payout-reports", s.CustomPayoutReport)
	api.GET("/dashboard", s.OrgDashboard)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.GET("/configurations", s.ListConfigurations)
	admin.PUT("/configurations/:name", s.UpsertConfiguration)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
