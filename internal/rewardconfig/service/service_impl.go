package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rewardzway/internal/clock"
	"github.com/smallbiznis/rewardzway/internal/rewardconfig/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var configNamePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,31}$`)

// kinds pins the well-known names to the kind the engine reads them as.
var kinds = map[string]domain.Kind{
	domain.NamePRP: domain.KindAmount,
	domain.NameSRP: domain.KindAmount,
	domain.NameIRP: domain.KindAmount,
	domain.NameTDS: domain.KindRate,
	domain.NameRTL: domain.KindRate,
	domain.NameRPS: domain.KindRate,
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("rewardconfig.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Current reads every configuration row. Callers take one snapshot per
// operation so a concurrent admin edit never splits a computation.
func (s *Service) Current(ctx context.Context) (domain.Snapshot, error) {
	configs, err := s.repo.List(ctx, s.db)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load configurations: %w", err)
	}
	return domain.NewSnapshot(configs), nil
}

func (s *Service) List(ctx context.Context) ([]domain.Configuration, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertRequest) (*domain.Configuration, error) {
	name := strings.ToUpper(strings.TrimSpace(req.Name))
	if !configNamePattern.MatchString(name) {
		return nil, domain.ErrInvalidName
	}

	kind := domain.Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
	switch kind {
	case domain.KindAmount, domain.KindRate, domain.KindTier:
	case "":
		if pinned, ok := kinds[name]; ok {
			kind = pinned
		} else {
			return nil, domain.ErrInvalidKind
		}
	default:
		return nil, domain.ErrInvalidKind
	}
	if pinned, ok := kinds[name]; ok && pinned != kind {
		return nil, domain.ErrInvalidKind
	}

	value, err := decimal.NewFromString(strings.TrimSpace(req.Value))
	if err != nil || value.IsNegative() {
		return nil, domain.ErrInvalidValue
	}
	if kind == domain.KindRate && value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, domain.ErrInvalidValue
	}

	cfg := domain.Configuration{
		ID:           s.genID.Generate(),
		Name:         name,
		Kind:         kind,
		Ordinal:      req.Ordinal,
		Value:        value.Round(2),
		DecimalValue: domain.DecimalValueOf(value),
		UpdatedAt:    s.clock.Now(),
	}
	if err := s.repo.Upsert(ctx, s.db, &cfg); err != nil {
		return nil, err
	}

	stored, err := s.repo.FindByName(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, domain.ErrConfigurationMissing
	}

	s.log.Info("configuration updated",
		zap.String("name", stored.Name),
		zap.String("kind", string(stored.Kind)),
		zap.String("value", stored.Value.String()),
	)
	return stored, nil
}
