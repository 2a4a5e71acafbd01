package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rewardzway/internal/clock"
	"github.com/smallbiznis/rewardzway/internal/observability/logger"
	"github.com/smallbiznis/rewardzway/internal/observability/metrics"
	"github.com/smallbiznis/rewardzway/internal/payout/domain"
	referraldomain "github.com/smallbiznis/rewardzway/internal/referral/domain"
	rewarddomain "github.com/smallbiznis/rewardzway/internal/reward/domain"
	rewardconfigdomain "github.com/smallbiznis/rewardzway/internal/rewardconfig/domain"
	"github.com/smallbiznis/rewardzway/internal/settlement"
	"github.com/smallbiznis/rewardzway/pkg/db/pagination"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("rewardzway/payout")

const reportBatchSize = 500

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
	Metrics    *metrics.Metrics `optional:"true"`
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
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payout.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		userRepo:   p.UserRepo,
		rewardRepo: p.RewardRepo,
		configSvc:  p.ConfigSvc,
		metrics:    p.Metrics,
	}
}

// WeeklyPayout settles the week containing referenceDate (now when nil).
// A week already settled for the user is returned as stored with
// created=false.
func (s *Service) WeeklyPayout(ctx context.Context, userID snowflake.ID, referenceDate *time.Time) (*domain.Payout, bool, error) {
	if userID == 0 {
		return nil, false, domain.ErrInvalidID
	}

	at := s.clock.Now()
	if referenceDate != nil {
		at = *referenceDate
	}
	week := settlement.WeekContaining(at)

	ctx, span := tracer.Start(ctx, "payout.weekly")
	defer span.End()
	span.SetAttributes(
		attribute.String("rewardzway.user_id", userID.String()),
		attribute.String("rewardzway.window_start", week.Start.Format(time.DateOnly)),
	)

	log := logger.WithContext(ctx, s.log).With(
		zap.String("user_id", userID.String()),
		zap.Time("start_date", week.Start),
		zap.Time("end_date", week.End),
	)

	existing, err := s.repo.FindByWindow(ctx, s.db, userID, week.Start, week.End)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		s.metrics.RecordPayout(ctx, "existing", 0, false)
		return existing, false, nil
	}

	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, false, err
	}
	if user == nil {
		return nil, false, fmt.Errorf("%w: %s", referraldomain.ErrUserNotFound, userID)
	}

	units, rates, err := s.loadRates(ctx)
	if err != nil {
		s.metrics.RecordPayout(ctx, "configuration_missing", 0, false)
		log.Warn("weekly payout skipped", zap.Error(err))
		return nil, false, err
	}

	var (
		payout  *domain.Payout
		created bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stored, err := s.repo.FindByWindow(ctx, tx, userID, week.Start, week.End)
		if err != nil {
			return err
		}
		if stored != nil {
			payout = stored
			return nil
		}

		row, err := s.computeWeek(ctx, tx, userID, week, units, rates)
		if err != nil {
			return err
		}
		ok, err := s.repo.InsertIgnore(ctx, tx, row)
		if err != nil {
			return err
		}
		if ok {
			payout, created = row, true
			return nil
		}

		stored, err = s.repo.FindByWindow(ctx, tx, userID, week.Start, week.End)
		if err != nil {
			return err
		}
		payout = stored
		return nil
	})
	if err != nil {
		s.metrics.RecordPayout(ctx, "error", 0, false)
		log.Error("weekly payout failed", zap.Error(err))
		return nil, false, err
	}
	if payout == nil {
		return nil, false, fmt.Errorf("payout for %s vanished after insert", userID)
	}

	gross, _ := payout.Gross.Float64()
	s.metrics.RecordPayout(ctx, "ok", gross, created)
	if created {
		log.Info("weekly payout created",
			zap.String("payout_id", payout.ID.String()),
			zap.String("gross", payout.Gross.String()),
			zap.String("final", payout.Final.String()),
		)
	}
	return payout, created, nil
}

func (s *Service) computeWeek(ctx context.Context, tx *gorm.DB, userID snowflake.ID, week settlement.Window, units rewardconfigdomain.UnitAmounts, rates rewardconfigdomain.PayoutRates) (*domain.Payout, error) {
	window := rewarddomain.TimeRange{From: &week.Start, To: &week.End}

	primary, err := s.rewardRepo.CountMatchings(ctx, tx, userID, window)
	if err != nil {
		return nil, err
	}
	referrals, err := s.rewardRepo.CountReferrals(ctx, tx, userID, window)
	if err != nil {
		return nil, err
	}
	secondary, err := s.rewardRepo.CountSecondary(ctx, tx, userID, rewarddomain.TimeRange{})
	if err != nil {
		return nil, err
	}
	spot, err := s.rewardRepo.CountSpot(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	row := &domain.Payout{
		ID:            s.genID.Generate(),
		UserID:        userID,
		StartDate:     week.Start,
		EndDate:       week.End,
		PRPTeamCount:  primary,
		ReferralCount: referrals,
		PrimaryRP:     domain.Subtotal(primary, units.PRP),
		SecondaryRP:   domain.Subtotal(secondary, units.SRP),
		SpotRP:        domain.Subtotal(spot, units.IRP),
		CreatedAt:     s.clock.Now(),
	}
	financials, err := domain.Derive([]decimal.NullDecimal{row.PrimaryRP, row.SecondaryRP, row.SpotRP}, rates)
	if err != nil {
		return nil, err
	}
	row.Apply(financials)
	return row, nil
}

func (s *Service) loadRates(ctx context.Context) (rewardconfigdomain.UnitAmounts, rewardconfigdomain.PayoutRates, error) {
	snapshot, err := s.configSvc.Current(ctx)
	if err != nil {
		return rewardconfigdomain.UnitAmounts{}, rewardconfigdomain.PayoutRates{}, err
	}
	units, err := snapshot.UnitAmounts()
	if err != nil {
		return rewardconfigdomain.UnitAmounts{}, rewardconfigdomain.PayoutRates{}, err
	}
	rates, err := snapshot.PayoutRates()
	if err != nil {
		return rewardconfigdomain.UnitAmounts{}, rewardconfigdomain.PayoutRates{}, err
	}
	return units, rates, nil
}

// PayoutsInRange lists stored payouts whose window lies within the given
// days, newest first. A nil UserID lists the whole organisation.
func (s *Service) PayoutsInRange(ctx context.Context, req domain.PayoutRangeRequest) (*domain.PayoutRangeResponse, error) {
	if req.Start.IsZero() || req.End.IsZero() {
		return nil, domain.ErrInvalidDateRange
	}
	days, err := settlement.DayRange(req.Start, req.End)
	if err != nil {
		return nil, domain.ErrInvalidDateRange
	}

	limit := req.Page.Limit()
	filter := domain.RangeFilter{
		UserID: req.UserID,
		From:   days.Start,
		Before: days.End.Add(time.Microsecond),
		Limit:  limit + 1,
	}
	if req.Page.PageToken != "" {
		key, err := decodePageKey(req.Page.PageToken)
		if err != nil {
			return nil, err
		}
		filter.AfterKey = key
	}

	rows, err := s.repo.ListRange(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	rows, info := pagination.BuildCursorPageInfo(rows, limit, func(p domain.Payout) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        p.ID.String(),
			StartDate: p.StartDate.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if rows == nil {
		rows = []domain.Payout{}
	}
	return &domain.PayoutRangeResponse{Payouts: rows, PageInfo: info}, nil
}

func decodePageKey(token string) (*domain.PageKey, error) {
	cursor, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(cursor.ID, 10, 64)
	if err != nil {
		return nil, pagination.ErrInvalidPageToken
	}
	start, err := time.Parse(time.RFC3339Nano, cursor.StartDate)
	if err != nil {
		return nil, pagination.ErrInvalidPageToken
	}
	return &domain.PageKey{StartDate: start.UTC(), ID: snowflake.ID(id)}, nil
}

// CustomPayoutReport recomputes payouts over whole days without storing
// them. Secondary credits are limited to the range; spot rewards are not.
func (s *Service) CustomPayoutReport(ctx context.Context, req domain.CustomReportRequest) ([]domain.ReportRow, error) {
	days, err := settlement.DayRange(req.StartDate, req.EndDate)
	if err != nil || req.StartDate.IsZero() {
		return nil, domain.ErrInvalidDateRange
	}

	units, rates, err := s.loadRates(ctx)
	if err != nil {
		return nil, err
	}

	if req.UserID != nil {
		user, err := s.userRepo.FindByID(ctx, s.db, *req.UserID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, fmt.Errorf("%w: %s", referraldomain.ErrUserNotFound, *req.UserID)
		}
		row, err := s.reportRow(ctx, *user, days, units, rates)
		if err != nil {
			return nil, err
		}
		return []domain.ReportRow{row}, nil
	}

	rows := []domain.ReportRow{}
	var after snowflake.ID
	for {
		ids, err := s.userRepo.ListIDsAfter(ctx, s.db, after, reportBatchSize)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			user, err := s.userRepo.FindByID(ctx, s.db, id)
			if err != nil {
				return nil, err
			}
			if user == nil {
				continue
			}
			row, err := s.reportRow(ctx, *user, days, units, rates)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		if len(ids) < reportBatchSize {
			break
		}
		after = ids[len(ids)-1]
	}
	return rows, nil
}

func (s *Service) reportRow(ctx context.Context, user referraldomain.User, days settlement.Window, units rewardconfigdomain.UnitAmounts, rates rewardconfigdomain.PayoutRates) (domain.ReportRow, error) {
	window := rewarddomain.TimeRange{From: &days.Start, To: &days.End}

	primary, err := s.rewardRepo.CountMatchings(ctx, s.db, user.ID, window)
	if err != nil {
		return domain.ReportRow{}, err
	}
	referrals, err := s.rewardRepo.CountReferrals(ctx, s.db, user.ID, window)
	if err != nil {
		return domain.ReportRow{}, err
	}
	secondary, err := s.rewardRepo.CountSecondary(ctx, s.db, user.ID, window)
	if err != nil {
		return domain.ReportRow{}, err
	}
	spot, err := s.rewardRepo.CountSpot(ctx, s.db, user.ID)
	if err != nil {
		return domain.ReportRow{}, err
	}

	row := domain.ReportRow{
		UserID:          user.ID,
		Name:            user.FullName,
		MobileNumber:    user.MobileNumber,
		StartDate:       days.Start,
		EndDate:         days.End,
		PRPTeamCount:    primary,
		ReferralCount:   referrals,
		SecondaryCount:  secondary,
		SpotCount:       spot,
		PrimaryReward:   domain.Subtotal(primary, units.PRP),
		SecondaryReward: domain.Subtotal(secondary, units.SRP),
		SpotReward:      domain.Subtotal(spot, units.IRP),
	}
	financials, err := domain.Derive([]decimal.NullDecimal{row.PrimaryReward, row.SecondaryReward, row.SpotReward}, rates)
	if err != nil {
		return domain.ReportRow{}, err
	}
	row.Financials = financials
	return row, nil
}

// UserDashboard summarises a member's all-time rewards and team size. The
// team is the member's upline's direct referrals plus their referrals.
func (s *Service) UserDashboard(ctx context.Context, userID snowflake.ID) (*domain.UserDashboard, error) {
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
	units, err := snapshot.UnitAmounts()
	if err != nil {
		return nil, err
	}

	dash := &domain.UserDashboard{UserID: userID}
	if dash.ReferralCount, err = s.userRepo.CountDirectReferrals(ctx, s.db, []snowflake.ID{userID}); err != nil {
		return nil, err
	}
	if user.ReferralID != nil {
		if dash.TeamCount, err = s.teamCount(ctx, *user.ReferralID); err != nil {
			return nil, err
		}
	}

	primary, err := s.rewardRepo.CountMatchings(ctx, s.db, userID, rewarddomain.TimeRange{})
	if err != nil {
		return nil, err
	}
	secondary, err := s.rewardRepo.CountSecondary(ctx, s.db, userID, rewarddomain.TimeRange{})
	if err != nil {
		return nil, err
	}
	spot, err := s.rewardRepo.CountSpot(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	dash.PrimaryRewards = units.PRP.Mul(decimal.NewFromInt(primary))
	dash.SecondaryReward = units.SRP.Mul(decimal.NewFromInt(secondary))
	dash.SpotRewards = units.IRP.Mul(decimal.NewFromInt(spot))
	dash.TotalRewards = dash.PrimaryRewards.Add(dash.SecondaryReward).Add(dash.SpotRewards)
	return dash, nil
}

func (s *Service) teamCount(ctx context.Context, uplineID snowflake.ID) (int64, error) {
	siblings, err := s.userRepo.ListDirectReferrals(ctx, s.db, uplineID)
	if err != nil {
		return 0, err
	}
	ids := make([]snowflake.ID, 0, len(siblings))
	for _, sibling := range siblings {
		ids = append(ids, sibling.ID)
	}
	nested, err := s.userRepo.CountDirectReferrals(ctx, s.db, ids)
	if err != nil {
		return 0, err
	}
	return int64(len(siblings)) + nested, nil
}

func (s *Service) OrgDashboard(ctx context.Context) (*domain.OrgDashboard, error) {
	counts, err := s.userRepo.CountUsers(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return &domain.OrgDashboard{
		TotalStrength: counts.TotalStrength,
		FreeUsers:     counts.FreeUsers,
		OrderPlaced:   counts.OrderPlaced,
	}, nil
}
