package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rewardzway/internal/clock"
	"github.com/smallbiznis/rewardzway/internal/observability/logger"
	"github.com/smallbiznis/rewardzway/internal/referral/domain"
	rewarddomain "github.com/smallbiznis/rewardzway/internal/reward/domain"
	"github.com/smallbiznis/rewardzway/internal/settlement"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Repo       domain.Repository
	RewardRepo rewarddomain.Repository
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	repo       domain.Repository
	rewardRepo rewarddomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("referral.service"),
		clock:      p.Clock,
		repo:       p.Repo,
		rewardRepo: p.RewardRepo,
	}
}

// TeamTree returns the root member with its downline nested as children.
func (s *Service) TeamTree(ctx context.Context, rootID snowflake.ID) ([]domain.TeamNode, error) {
	root, err := s.loadRoot(ctx, rootID)
	if err != nil {
		return nil, err
	}

	visited := map[snowflake.ID]struct{}{root.ID: {}}
	node, err := s.expand(ctx, *root, visited)
	if err != nil {
		return nil, err
	}
	return []domain.TeamNode{node}, nil
}

func (s *Service) expand(ctx context.Context, user domain.User, visited map[snowflake.ID]struct{}) (domain.TeamNode, error) {
	node, err := s.describe(ctx, user)
	if err != nil {
		return domain.TeamNode{}, err
	}

	referrals, err := s.repo.ListDirectReferrals(ctx, s.db, user.ID)
	if err != nil {
		return domain.TeamNode{}, err
	}
	for _, referral := range referrals {
		if err := visit(visited, referral.ID); err != nil {
			return domain.TeamNode{}, err
		}
		child, err := s.expand(ctx, referral, visited)
		if err != nil {
			return domain.TeamNode{}, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// FlatTeamByLevel lists the downline depth first with each member tagged by
// its distance from the root, then orders by level. The root is omitted.
func (s *Service) FlatTeamByLevel(ctx context.Context, rootID snowflake.ID) ([]domain.TeamNode, error) {
	root, err := s.loadRoot(ctx, rootID)
	if err != nil {
		return nil, err
	}

	nodes := []domain.TeamNode{}
	visited := map[snowflake.ID]struct{}{root.ID: {}}
	if err := s.walk(ctx, root.ID, 1, visited, &nodes); err != nil {
		return nil, err
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Level < nodes[j].Level
	})
	return nodes, nil
}

func (s *Service) walk(ctx context.Context, parentID snowflake.ID, level int, visited map[snowflake.ID]struct{}, out *[]domain.TeamNode) error {
	referrals, err := s.repo.ListDirectReferrals(ctx, s.db, parentID)
	if err != nil {
		return err
	}
	for _, referral := range referrals {
		if err := visit(visited, referral.ID); err != nil {
			return err
		}
		node, err := s.describe(ctx, referral)
		if err != nil {
			return err
		}
		node.Level = level
		*out = append(*out, node)
		if err := s.walk(ctx, referral.ID, level+1, visited, out); err != nil {
			return err
		}
	}
	return nil
}

func visit(visited map[snowflake.ID]struct{}, id snowflake.ID) error {
	if _, seen := visited[id]; seen {
		return fmt.Errorf("%w: user %s reached twice", domain.ErrCycleDetected, id)
	}
	visited[id] = struct{}{}
	return nil
}

func (s *Service) describe(ctx context.Context, user domain.User) (domain.TeamNode, error) {
	city, err := s.repo.FirstCity(ctx, s.db, user.ID)
	if err != nil {
		return domain.TeamNode{}, err
	}
	if city == "" {
		city = domain.UnknownCity
	}
	ordered, err := s.repo.FirstOrderTotal(ctx, s.db, user.ID)
	if err != nil {
		return domain.TeamNode{}, err
	}

	status := domain.StatusInactive
	if user.IsActive {
		status = domain.StatusActive
	}
	return domain.TeamNode{
		UserID:           user.ID,
		Name:             user.FullName,
		MobileNumber:     user.MobileNumber,
		City:             city,
		Referral:         user.ReferralID,
		Status:           status,
		RegistrationDate: user.DateJoined,
		OrderPlaced:      ordered,
	}, nil
}

// ReferralReport tallies each direct referral's slots opened during the
// current settlement week and balances sales between siblings.
func (s *Service) ReferralReport(ctx context.Context, userID snowflake.ID) ([]domain.ReferralRow, error) {
	if _, err := s.loadRoot(ctx, userID); err != nil {
		return nil, err
	}

	referrals, err := s.repo.ListDirectReferrals(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if len(referrals) == 0 {
		return []domain.ReferralRow{}, nil
	}

	ids := make([]snowflake.ID, 0, len(referrals))
	for _, referral := range referrals {
		ids = append(ids, referral.ID)
	}

	week := settlement.WeekContaining(s.clock.Now())
	sales, err := s.rewardRepo.CountReferralsByUser(ctx, s.db, ids, rewarddomain.TimeRange{
		From: &week.Start,
		To:   &week.End,
	})
	if err != nil {
		return nil, err
	}

	rows := CarryForward(referrals, sales)
	logger.WithContext(ctx, s.log).Debug("referral report built",
		zap.String("user_id", userID.String()),
		zap.Int("referrals", len(referrals)),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

// CarryForward walks referrals in order. Each unmatched referral absorbs
// min(its own sales, sibling sales) from every sibling with sales left,
// moving that amount from considered to carried forward. Siblings drawn
// from are matched and get no row of their own.
func CarryForward(referrals []domain.User, sales map[snowflake.ID]int64) []domain.ReferralRow {
	remaining := make(map[snowflake.ID]int64, len(referrals))
	for _, referral := range referrals {
		remaining[referral.ID] += sales[referral.ID]
	}

	rows := make([]domain.ReferralRow, 0, len(referrals))
	matched := make(map[snowflake.ID]bool, len(referrals))
	for _, referral := range referrals {
		if matched[referral.ID] {
			continue
		}

		total := remaining[referral.ID]
		row := domain.ReferralRow{
			UserID:        referral.ID,
			Name:          referral.FullName,
			MobileNumber:  referral.MobileNumber,
			TotalSales:    total,
			SalesConsider: total,
		}
		for _, other := range referrals {
			if other.ID == referral.ID || remaining[other.ID] <= 0 {
				continue
			}
			moved := min(total, remaining[other.ID])
			row.SalesConsider -= moved
			row.SalesCarryForwarded += moved
			remaining[other.ID] -= moved
			matched[other.ID] = true
		}

		rows = append(rows, row)
		matched[referral.ID] = true
	}
	return rows
}

func (s *Service) loadRoot(ctx context.Context, userID snowflake.ID) (*domain.User, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidID
	}
	user, err := s.repo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	return user, nil
}
