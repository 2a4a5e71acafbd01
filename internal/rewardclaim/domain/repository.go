package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]RewardClaim, error)
	FindByCriteria(ctx context.Context, db *gorm.DB, userID snowflake.ID, criteria string) (*RewardClaim, error)
	Upsert(ctx context.Context, db *gorm.DB, claim *RewardClaim) error
}
