package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rewardzway/internal/clock"
	"github.com/smallbiznis/rewardzway/internal/config"
	"github.com/smallbiznis/rewardzway/internal/lock"
	"github.com/smallbiznis/rewardzway/internal/observability/logger"
	"github.com/smallbiznis/rewardzway/internal/observability/metrics"
	referraldomain "github.com/smallbiznis/rewardzway/internal/referral/domain"
	"github.com/smallbiznis/rewardzway/internal/reward/domain"
	rewardconfigdomain "github.com/smallbiznis/rewardzway/internal/rewardconfig/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("rewardzway/reward")

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	UserRepo  referraldomain.Repository
	ConfigSvc rewardconfigdomain.Service
	Locker    *lock.Locker                `optional:"true"`
	Settings  *config.RewardsConfigHolder `optional:"true"`
	Metrics   *metrics.Metrics            `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	userRepo  referraldomain.Repository
	configSvc rewardconfigdomain.Service
	locker    *lock.Locker
	settings  *config.RewardsConfigHolder
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("reward.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		userRepo:  p.UserRepo,
		configSvc: p.ConfigSvc,
		locker:    p.Locker,
		settings:  p.Settings,
		metrics:   p.Metrics,
	}
}

// AllocateReward records a PRP slot for the new user under the primary user
// and pairs it with an open slot when one exists.
func (s *Service) AllocateReward(ctx context.Context, req domain.AllocateRewardRequest) (*domain.MatchingResult, error) {
	newUserID, err := parseID(req.NewUserID)
	if err != nil {
		return nil, err
	}
	referredUserID, err := parseID(req.ReferredUserID)
	if err != nil {
		return nil, err
	}
	return s.allocate(ctx, newUserID, referredUserID, nil)
}

// errSkipAllocation aborts an allocation transaction without reporting an error.
var errSkipAllocation = errors.New("skip_allocation")

// allocate runs one allocation. When guard is set it runs first inside the
// allocation transaction; returning errSkipAllocation rolls back quietly.
func (s *Service) allocate(ctx context.Context, newUserID, referredUserID snowflake.ID, guard func(tx *gorm.DB) error) (*domain.MatchingResult, error) {
	ctx, span := tracer.Start(ctx, "reward.allocate")
	defer span.End()

	log := logger.WithContext(ctx, s.log).With(
		zap.String("new_user_id", newUserID.String()),
		zap.String("referred_user_id", referredUserID.String()),
	)

	referred, primaryID, err := s.resolvePrimary(ctx, newUserID, referredUserID)
	if err != nil {
		s.metrics.RecordAllocation(ctx, outcomeFor(err), "")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("rewardzway.primary_user_id", primaryID.String()))

	settings := s.settings.Get().Allocation
	release, err := s.locker.Acquire(ctx, allocationLockKey(primaryID), settings.LockTTL, settings.LockRetries, settings.LockRetryDelay)
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			err = domain.ErrAllocationBusy
		}
		s.metrics.RecordAllocation(ctx, outcomeFor(err), "")
		log.Warn("allocation lock not acquired", zap.Error(err))
		return nil, err
	}
	defer release()

	var result *domain.MatchingResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if guard != nil {
			if err := guard(tx); err != nil {
				return err
			}
		}
		r, err := s.allocateTx(ctx, tx, newUserID, *referred, primaryID)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if errors.Is(err, errSkipAllocation) {
		log.Debug("allocation skipped")
		return nil, nil
	}
	if err != nil {
		s.metrics.RecordAllocation(ctx, outcomeFor(err), "")
		span.RecordError(err)
		span.SetStatus(codes.Error, "allocation failed")
		log.Error("reward allocation failed", zap.Error(err))
		return nil, err
	}

	s.metrics.RecordAllocation(ctx, outcomeFor(nil), string(result.Kind))
	if result.Secondary != nil {
		s.metrics.RecordSecondaryCredit(ctx, string(result.Secondary.RewardCategory))
	}
	span.SetAttributes(attribute.String("rewardzway.match_kind", string(result.Kind)))

	fields := []zap.Field{
		zap.String("primary_user_id", primaryID.String()),
		zap.String("prp_id", result.PRP.ID.String()),
		zap.String("match_kind", string(result.Kind)),
	}
	if result.Partner != nil {
		fields = append(fields, zap.String("partner_prp_id", result.Partner.ID.String()))
	}
	if result.Secondary != nil {
		fields = append(fields,
			zap.String("srp_eligible_user_id", result.Secondary.EligibleSU.String()),
			zap.String("srp_category", string(result.Secondary.RewardCategory)),
		)
	}
	log.Info("reward allocated", fields...)
	return result, nil
}

// resolvePrimary loads the referring user and returns the member whose slot
// pool receives the new PRP: the referrer's upline if any, else the referrer.
func (s *Service) resolvePrimary(ctx context.Context, newUserID, referredUserID snowflake.ID) (*referraldomain.User, snowflake.ID, error) {
	newUser, err := s.userRepo.FindByID(ctx, s.db, newUserID)
	if err != nil {
		return nil, 0, err
	}
	if newUser == nil {
		return nil, 0, fmt.Errorf("%w: new user %s", domain.ErrReferenceNotFound, newUserID)
	}

	referred, err := s.userRepo.FindByID(ctx, s.db, referredUserID)
	if err != nil {
		return nil, 0, err
	}
	if referred == nil {
		return nil, 0, fmt.Errorf("%w: referred user %s", domain.ErrReferenceNotFound, referredUserID)
	}
	if referred.ReferralID == nil {
		return referred, referred.ID, nil
	}

	upline, err := s.userRepo.FindByID(ctx, s.db, *referred.ReferralID)
	if err != nil {
		return nil, 0, err
	}
	if upline == nil {
		return nil, 0, fmt.Errorf("%w: upline %s of %s", domain.ErrReferenceNotFound, *referred.ReferralID, referredUserID)
	}
	return referred, upline.ID, nil
}

func (s *Service) allocateTx(ctx context.Context, tx *gorm.DB, newUserID snowflake.ID, referred referraldomain.User, primaryID snowflake.ID) (*domain.MatchingResult, error) {
	if err := s.repo.LockAllocation(ctx, tx); err != nil {
		return nil, err
	}

	excluded, err := s.excludedSlots(ctx, tx)
	if err != nil {
		return nil, err
	}
	open, err := s.repo.ListOpenSlots(ctx, tx, primaryID, excluded)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	prp := domain.PrimaryRewardPoint{
		ID:            s.genID.Generate(),
		PRPUserID:     primaryID,
		ReferredBy:    referred.ID,
		NewUser:       newUserID,
		MatchingCount: 0,
		CreatedAt:     now,
	}
	if err := s.repo.InsertPRP(ctx, tx, &prp); err != nil {
		return nil, err
	}

	result := &domain.MatchingResult{
		PrimaryUserID: primaryID,
		PRP:           prp,
		Kind:          domain.MatchKindNone,
	}

	for _, candidate := range orderCandidates(open, referred.ID, newUserID) {
		ok, err := s.repo.IncrementMatchingCount(ctx, tx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		partner := candidate
		partner.MatchingCount++
		matching := domain.PRPMatching{
			ID:            s.genID.Generate(),
			PRPID:         prp.ID,
			PartnerPRPID:  partner.ID,
			MatchingUser1: newUserID,
			MatchingUser2: partner.NewUser,
			CreatedAt:     now,
		}
		if err := s.repo.InsertMatching(ctx, tx, &matching); err != nil {
			return nil, err
		}

		result.Matched = true
		result.Partner = &partner
		result.Matching = &matching
		result.Kind = domain.MatchKindChild
		if partner.ReferredBy == referred.ID {
			result.Kind = domain.MatchKindParent
			return result, nil
		}

		srp, err := s.creditSecondary(ctx, tx, prp, referred, partner.ReferredBy)
		if err != nil {
			return nil, err
		}
		result.Secondary = srp
		return result, nil
	}

	return result, nil
}

// excludedSlots applies the global edge rule: half-used slots at the very
// start or end of the PRP table are held back from matching.
func (s *Service) excludedSlots(ctx context.Context, tx *gorm.DB) ([]snowflake.ID, error) {
	total, err := s.repo.CountPRP(ctx, tx)
	if err != nil {
		return nil, err
	}
	if total < 2 {
		return nil, nil
	}

	var excluded []snowflake.ID
	first, err := s.repo.FirstPRP(ctx, tx)
	if err != nil {
		return nil, err
	}
	if first != nil && first.MatchingCount == 1 {
		excluded = append(excluded, first.ID)
	}
	if total == 2 {
		return excluded, nil
	}

	last, err := s.repo.LastPRP(ctx, tx)
	if err != nil {
		return nil, err
	}
	if last != nil && last.MatchingCount == 1 {
		excluded = append(excluded, last.ID)
	}
	return excluded, nil
}

// orderCandidates puts parent matches (slots opened through the same
// referrer) ahead of the rest, each group oldest first. Slots belonging to
// the new user itself are dropped so a pair always joins two members.
func orderCandidates(open []domain.PrimaryRewardPoint, referredID, newUserID snowflake.ID) []domain.PrimaryRewardPoint {
	parents := make([]domain.PrimaryRewardPoint, 0, len(open))
	children := make([]domain.PrimaryRewardPoint, 0, len(open))
	for _, slot := range open {
		if slot.NewUser == newUserID {
			continue
		}
		if slot.ReferredBy == referredID {
			parents = append(parents, slot)
		} else {
			children = append(children, slot)
		}
	}
	return append(parents, children...)
}

// creditSecondary awards the SRP for a cross-referrer pair. The referrer
// who joined first is credited first_join on their first SRP; once they
// already hold one, the other referrer is credited first_reward.
func (s *Service) creditSecondary(ctx context.Context, tx *gorm.DB, prp domain.PrimaryRewardPoint, referred referraldomain.User, otherID snowflake.ID) (*domain.SecondaryRewardPoint, error) {
	other, err := s.userRepo.FindByID(ctx, tx, otherID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, fmt.Errorf("%w: partner referrer %s", domain.ErrReferenceNotFound, otherID)
	}

	selected, alternate := referred, *other
	if other.JoinedBefore(referred) {
		selected, alternate = *other, referred
	}

	hasSecondary, err := s.repo.HasSecondary(ctx, tx, selected.ID)
	if err != nil {
		return nil, err
	}

	eligible, category := selected.ID, domain.RewardCategoryFirstJoin
	if hasSecondary {
		eligible, category = alternate.ID, domain.RewardCategoryFirstReward
	}

	srp := domain.SecondaryRewardPoint{
		ID:             s.genID.Generate(),
		PRPID:          prp.ID,
		ReferredSU1:    referred.ID,
		ReferredSU2:    other.ID,
		EligibleSU:     eligible,
		RewardCategory: category,
		CreatedAt:      prp.CreatedAt,
	}
	if err := s.repo.InsertSecondary(ctx, tx, &srp); err != nil {
		return nil, err
	}
	return &srp, nil
}

// OnOrderPaid handles a member's first paid order: it marks the order flags
// and, for referred members, runs the allocation once.
func (s *Service) OnOrderPaid(ctx context.Context, userID snowflake.ID) (*domain.MatchingResult, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidID
	}

	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", domain.ErrReferenceNotFound, userID)
	}

	markFirstOrder := func(tx *gorm.DB) error {
		first, err := s.userRepo.MarkOrderComplete(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !first {
			return errSkipAllocation
		}
		return nil
	}

	if user.ReferralID == nil {
		if err := markFirstOrder(s.db); err != nil && !errors.Is(err, errSkipAllocation) {
			return nil, err
		}
		return nil, nil
	}
	return s.allocate(ctx, userID, *user.ReferralID, markFirstOrder)
}

func (s *Service) RecordSpotReward(ctx context.Context, req domain.RecordSpotRewardRequest) (*domain.SpotRewardPoint, error) {
	referrerID, err := parseID(req.ReferrerID)
	if err != nil {
		return nil, err
	}
	referralID, err := parseID(req.NewReferralID)
	if err != nil {
		return nil, err
	}

	referrer, err := s.userRepo.FindByID(ctx, s.db, referrerID)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		return nil, fmt.Errorf("%w: referrer %s", domain.ErrReferenceNotFound, referrerID)
	}

	spot := s.newSpot(referrerID, referralID)
	if err := s.repo.InsertSpot(ctx, s.db, &spot); err != nil {
		return nil, err
	}
	s.metrics.RecordSpotReward(ctx)
	return &spot, nil
}

// AttachReferral links a member to the referrer whose mobile number
// contains the given fragment and records the referrer's spot reward.
func (s *Service) AttachReferral(ctx context.Context, req domain.AttachReferralRequest) (*domain.SpotRewardPoint, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidID
	}
	fragment := strings.TrimSpace(req.ReferralMobile)
	if fragment == "" {
		return nil, domain.ErrInvalidID
	}

	user, err := s.userRepo.FindByID(ctx, s.db, req.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", domain.ErrReferenceNotFound, req.UserID)
	}
	if user.ReferralID != nil {
		return nil, domain.ErrReferralAlreadySet
	}

	referrer, err := s.userRepo.FindByMobileFragment(ctx, s.db, fragment)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		return nil, fmt.Errorf("%w: referrer mobile %q", domain.ErrReferenceNotFound, fragment)
	}
	if referrer.ID == user.ID {
		return nil, domain.ErrSelfReferral
	}

	spot := s.newSpot(referrer.ID, user.ID)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertSpot(ctx, tx, &spot); err != nil {
			return err
		}
		return s.userRepo.SetReferral(ctx, tx, user.ID, referrer.ID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSpotReward(ctx)
	logger.WithContext(ctx, s.log).Info("referral attached",
		zap.String("user_id", user.ID.String()),
		zap.String("referrer_id", referrer.ID.String()),
	)
	return &spot, nil
}

func (s *Service) newSpot(referrerID, referralID snowflake.ID) domain.SpotRewardPoint {
	return domain.SpotRewardPoint{
		ID:           s.genID.Generate(),
		EligibleUser: referrerID,
		Referral:     referralID,
		CreatedAt:    s.clock.Now(),
	}
}

// MatchingReport totals all pairs ever completed on the member's slots.
func (s *Service) MatchingReport(ctx context.Context, userID snowflake.ID) (*domain.MatchingReport, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidID
	}

	snapshot, err := s.configSvc.Current(ctx)
	if err != nil {
		return nil, err
	}
	unit, err := snapshot.Amount(rewardconfigdomain.NamePRP)
	if err != nil {
		return nil, err
	}

	teams, err := s.repo.CountMatchings(ctx, s.db, userID, domain.TimeRange{})
	if err != nil {
		return nil, err
	}
	return &domain.MatchingReport{
		UserID:        userID,
		EligibleTeams: teams,
		TotalRewards:  unit.Mul(decimal.NewFromInt(teams)),
	}, nil
}

func allocationLockKey(primaryID snowflake.ID) string {
	return "rewardzway:allocation:" + strconv.FormatInt(primaryID.Int64(), 10)
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrReferenceNotFound):
		return "reference_not_found"
	case errors.Is(err, domain.ErrAllocationBusy):
		return "busy"
	default:
		return "error"
	}
}
