package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rewardzway/internal/payout/domain"
	pkgdb "github.com/smallbiznis/rewardzway/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByWindow(ctx context.Context, db *gorm.DB, userID snowflake.ID, start, end time.Time) (*domain.Payout, error) {
	var rows []domain.Payout
	err := db.WithContext(ctx).
		Where("user_id = ? AND start_date = ? AND end_date = ?", userID, start, end).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// InsertIgnore inserts payout unless a row for the same user and window
// already exists. It reports whether this call created the row.
func (r *repo) InsertIgnore(ctx context.Context, db *gorm.DB, payout *domain.Payout) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "start_date"}, {Name: "end_date"}},
			DoNothing: true,
		}).
		Create(payout)
	if res.Error != nil {
		// Some dialects report the unique violation instead of skipping.
		if pkgdb.IsDuplicateKeyErr(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListRange(ctx context.Context, db *gorm.DB, filter domain.RangeFilter) ([]domain.Payout, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Payout{}).
		Where("start_date >= ? AND end_date < ?", filter.From, filter.Before)
	if filter.UserID != nil {
		stmt = stmt.Where("user_id = ?", *filter.UserID)
	}
	if key := filter.AfterKey; key != nil {
		stmt = stmt.Where("(start_date < ? OR (start_date = ? AND id < ?))", key.StartDate, key.StartDate, key.ID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	var payouts []domain.Payout
	if err := stmt.Order("start_date DESC, id DESC").Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}
