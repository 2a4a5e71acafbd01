package repository

import (
	"context"

	"github.com/smallbiznis/rewardzway/internal/rewardconfig/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Configuration, error) {
	var configs []domain.Configuration
	err := db.WithContext(ctx).
		Order("kind ASC, ordinal ASC, name ASC").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (r *repo) FindByName(ctx context.Context, db *gorm.DB, name string) (*domain.Configuration, error) {
	var cfg domain.Configuration
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, kind, ordinal, value, decimal_value, updated_at FROM configurations WHERE name = ?`,
		name,
	).Scan(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.ID == 0 {
		return nil, nil
	}
	return &cfg, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, cfg *domain.Configuration) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "ordinal", "value", "decimal_value", "updated_at"}),
		}).
		Create(cfg).Error
}
