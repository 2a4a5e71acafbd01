package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rewardzway/internal/referral/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const userColumns = `id, full_name, mobile_number, referral_id, is_active, is_free, is_updated, order_complete, date_joined`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

// FindByMobileFragment returns the earliest user whose mobile number
// contains fragment.
func (r *repo) FindByMobileFragment(ctx context.Context, db *gorm.DB, fragment string) (*domain.User, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, nil
	}
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE mobile_number LIKE ? ESCAPE '!' ORDER BY id ASC LIMIT 1`,
		"%"+escapeLike(fragment)+"%",
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) ListDirectReferrals(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.User, error) {
	var users []domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE referral_id = ? ORDER BY id ASC`,
		userID,
	).Scan(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) CountDirectReferrals(ctx context.Context, db *gorm.DB, userIDs []snowflake.ID) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("referral_id IN ?", userIDs).
		Count(&count).Error
	return count, err
}

func (r *repo) ListIDsAfter(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) FirstCity(ctx context.Context, db *gorm.DB, userID snowflake.ID) (string, error) {
	var cities []string
	err := db.WithContext(ctx).
		Model(&domain.Address{}).
		Where("user_id = ?", userID).
		Order("id ASC").
		Limit(1).
		Pluck("city", &cities).Error
	if err != nil {
		return "", err
	}
	if len(cities) == 0 {
		return "", nil
	}
	return cities[0], nil
}

func (r *repo) FirstOrderTotal(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*decimal.Decimal, error) {
	var order domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, total_amount, payment_status, created_at
		 FROM orders WHERE user_id = ? ORDER BY id ASC LIMIT 1`,
		userID,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order.TotalAmount, nil
}

func (r *repo) CountUsers(ctx context.Context, db *gorm.DB) (domain.UserCounts, error) {
	var counts domain.UserCounts
	err := db.WithContext(ctx).Raw(
		`SELECT
			COALESCE(SUM(CASE WHEN is_updated THEN 1 ELSE 0 END), 0) AS total_strength,
			COALESCE(SUM(CASE WHEN is_free THEN 1 ELSE 0 END), 0) AS free_users,
			COALESCE(SUM(CASE WHEN order_complete THEN 1 ELSE 0 END), 0) AS order_placed
		 FROM users`,
	).Scan(&counts).Error
	return counts, err
}

func (r *repo) SetReferral(ctx context.Context, db *gorm.DB, userID, referralID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET referral_id = ?, is_updated = ? WHERE id = ?`,
		referralID,
		true,
		userID,
	).Error
}

// MarkOrderComplete flips the first-order flags and reports whether this
// call performed the transition.
func (r *repo) MarkOrderComplete(ctx context.Context, db *gorm.DB, userID snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users SET order_complete = ?, is_free = ? WHERE id = ? AND order_complete = ?`,
		true,
		false,
		userID,
		false,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func escapeLike(v string) string {
	return strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(v)
}
