package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rewardzway/internal/clock"
	"github.com/smallbiznis/rewardzway/internal/observability/logger"
	referraldomain "github.com/smallbiznis/rewardzway/internal/referral/domain"
	rewarddomain "github.com/smallbiznis/rewardzway/internal/reward/domain"
	"github.com/smallbiznis/rewardzway/internal/rewardclaim/domain"
	rewardconfigdomain "github.com/smallbiznis/rewardzway/internal/rewardconfig/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	UserRepo   referraldomain.Repository
	RewardRepo rewarddomain.Repository
	ConfigSvc  rewardconfigdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	userRepo   referraldomain.Repository
	rewardRepo rewarddomain.Repository
	configSvc  rewardconfigdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("rewardclaim.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		userRepo:   p.UserRepo,
		rewardRepo: p.RewardRepo,
		configSvc:  p.ConfigSvc,
	}
}

// CriteriaProgress reports the member's standing against every configured
// tier, lowest threshold first.
func (s *Service) CriteriaProgress(ctx context.Context, userID snowflake.ID) ([]domain.TierProgress, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidID
	}

	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", referraldomain.ErrUserNotFound, userID)
	}

	snapshot, err := s.configSvc.Current(ctx)
	if err != nil {
		return nil, err
	}
	unit, err := snapshot.Amount(rewardconfigdomain.NamePRP)
	if err != nil {
		return nil, err
	}

	teams, err := s.rewardRepo.CountMatchings(ctx, s.db, userID, rewarddomain.TimeRange{})
	if err != nil {
		return nil, err
	}
	claims, err := s.repo.ListByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	rows := BuildProgress(snapshot.Tiers, claims, unit.Mul(decimal.NewFromInt(teams)))
	for i := range rows {
		rows[i].UserID = user.ID
		rows[i].Name = user.FullName
		rows[i].MobileNumber = user.MobileNumber
	}
	return rows, nil
}

// BuildProgress merges claim decisions into tier progress for a reward
// total. Each claim lands on the tier it names; claims for tiers no longer
// configured are ignored. A claimed tier consumes its threshold from the
// total; the remainder then fills tiers in ascending order, the first
// unreached tier taking it as progress.
func BuildProgress(tiers []rewardconfigdomain.Tier, claims []domain.RewardClaim, total decimal.Decimal) []domain.TierProgress {
	rows := make([]domain.TierProgress, len(tiers))
	for i, tier := range tiers {
		rows[i] = domain.TierProgress{
			RPCriteria: tier.Code,
			Threshold:  tier.Threshold,
			RPComplete: decimal.Zero,
			RPRequired: decimal.Zero,
			Status:     domain.ProgressInProgress,
		}
	}

	index := make(map[string]int, len(tiers))
	for i, tier := range tiers {
		index[tier.Code] = i
	}
	for _, claim := range claims {
		i, ok := index[claim.Criteria]
		if !ok {
			continue
		}
		switch {
		case claim.Status == domain.ClaimStatusClaimed && claim.ClaimedOn != nil:
			rows[i].Status = string(claim.Status)
			rows[i].ClaimedOn = claim.ClaimedOn
			rows[i].RPComplete = tiers[i].Threshold
			total = total.Sub(tiers[i].Threshold)
		case claim.Status == domain.ClaimStatusCompleted, claim.Status == domain.ClaimStatusSkipped:
			rows[i].Status = string(claim.Status)
		}
	}

	assigned := false
	for i, tier := range tiers {
		switch {
		case total.LessThan(tier.Threshold) && !rows[i].RPComplete.Equal(tier.Threshold):
			rows[i].RPRequired = tier.Threshold.Sub(total)
			if !assigned {
				rows[i].RPComplete = total
				assigned = true
			}
		case total.GreaterThanOrEqual(tier.Threshold) && rows[i].Status == domain.ProgressInProgress:
			rows[i].Status = domain.ProgressCompleted
		}
	}
	return rows
}

// UpsertClaim records the member's decision on a tier. Unknown tiers and
// statuses are rejected before anything is written.
func (s *Service) UpsertClaim(ctx context.Context, req domain.UpsertClaimRequest) (*domain.RewardClaim, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidID
	}

	status := domain.ClaimStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidClaim, req.Status)
	}
	criteria := strings.ToUpper(strings.TrimSpace(req.Criteria))

	snapshot, err := s.configSvc.Current(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snapshot.Tier(criteria); !ok {
		return nil, fmt.Errorf("%w: criteria %q", domain.ErrInvalidClaim, req.Criteria)
	}

	user, err := s.userRepo.FindByID(ctx, s.db, req.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", referraldomain.ErrUserNotFound, req.UserID)
	}

	now := s.clock.Now()
	claim := domain.RewardClaim{
		ID:        s.genID.Generate(),
		UserID:    req.UserID,
		Criteria:  criteria,
		Status:    status,
		ClaimedOn: req.ClaimedOn,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var stored *domain.RewardClaim
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Upsert(ctx, tx, &claim); err != nil {
			return err
		}
		found, err := s.repo.FindByCriteria(ctx, tx, req.UserID, criteria)
		if err != nil {
			return err
		}
		stored = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	if stored == nil {
		stored = &claim
	}

	logger.WithContext(ctx, s.log).Info("reward claim saved",
		zap.String("user_id", req.UserID.String()),
		zap.String("criteria", criteria),
		zap.String("status", string(status)),
	)
	return stored, nil
}
