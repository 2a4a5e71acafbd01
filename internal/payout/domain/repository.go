package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByWindow(ctx context.Context, db *gorm.DB, userID snowflake.ID, start, end time.Time) (*Payout, error)
	InsertIgnore(ctx context.Context, db *gorm.DB, payout *Payout) (bool, error)
	ListRange(ctx context.Context, db *gorm.DB, filter RangeFilter) ([]Payout, error)
}
