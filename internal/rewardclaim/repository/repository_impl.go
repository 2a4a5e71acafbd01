package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rewardzway/internal/rewardclaim/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.RewardClaim, error) {
	var claims []domain.RewardClaim
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("criteria ASC").
		Find(&claims).Error
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (r *repo) FindByCriteria(ctx context.Context, db *gorm.DB, userID snowflake.ID, criteria string) (*domain.RewardClaim, error) {
	var claim domain.RewardClaim
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, criteria, status, claimed_on, created_at, updated_at
		 FROM reward_claims WHERE user_id = ? AND criteria = ?`,
		userID,
		criteria,
	).Scan(&claim).Error
	if err != nil {
		return nil, err
	}
	if claim.ID == 0 {
		return nil, nil
	}
	return &claim, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, claim *domain.RewardClaim) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "criteria"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "claimed_on", "updated_at"}),
		}).
		Create(claim).Error
}
