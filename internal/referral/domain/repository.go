package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByMobileFragment(ctx context.Context, db *gorm.DB, fragment string) (*User, error)
	ListDirectReferrals(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]User, error)
	CountDirectReferrals(ctx context.Context, db *gorm.DB, userIDs []snowflake.ID) (int64, error)
	ListIDsAfter(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]snowflake.ID, error)
	FirstCity(ctx context.Context, db *gorm.DB, userID snowflake.ID) (string, error)
	FirstOrderTotal(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*decimal.Decimal, error)
	CountUsers(ctx context.Context, db *gorm.DB) (UserCounts, error)
	SetReferral(ctx context.Context, db *gorm.DB, userID, referralID snowflake.ID) error
	MarkOrderComplete(ctx context.Context, db *gorm.DB, userID snowflake.ID) (bool, error)
}
