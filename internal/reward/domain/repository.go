package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	LockAllocation(ctx context.Context, db *gorm.DB) error
	InsertPRP(ctx context.Context, db *gorm.DB, prp *PrimaryRewardPoint) error
	CountPRP(ctx context.Context, db *gorm.DB) (int64, error)
	FirstPRP(ctx context.Context, db *gorm.DB) (*PrimaryRewardPoint, error)
	LastPRP(ctx context.Context, db *gorm.DB) (*PrimaryRewardPoint, error)
	ListOpenSlots(ctx context.Context, db *gorm.DB, prpUserID snowflake.ID, exclude []snowflake.ID) ([]PrimaryRewardPoint, error)
	IncrementMatchingCount(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	InsertMatching(ctx context.Context, db *gorm.DB, matching *PRPMatching) error
	InsertSecondary(ctx context.Context, db *gorm.DB, srp *SecondaryRewardPoint) error
	HasSecondary(ctx context.Context, db *gorm.DB, userID snowflake.ID) (bool, error)
	InsertSpot(ctx context.Context, db *gorm.DB, spot *SpotRewardPoint) error

	CountMatchings(ctx context.Context, db *gorm.DB, prpUserID snowflake.ID, window TimeRange) (int64, error)
	CountReferrals(ctx context.Context, db *gorm.DB, referredBy snowflake.ID, window TimeRange) (int64, error)
	CountReferralsByUser(ctx context.Context, db *gorm.DB, referredBy []snowflake.ID, window TimeRange) (map[snowflake.ID]int64, error)
	CountSecondary(ctx context.Context, db *gorm.DB, userID snowflake.ID, window TimeRange) (int64, error)
	CountSpot(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error)
}
