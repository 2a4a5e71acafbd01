package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rewardzway/internal/reward/domain"
	"github.com/smallbiznis/rewardzway/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// allocationLockKey is the pg advisory lock id serializing allocations so
// the global first/last slot exclusion sees a stable table.
const allocationLockKey int64 = 0x5257415244 // "RWARD"

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// LockAllocation takes a transaction-scoped advisory lock on PostgreSQL.
// Other dialects rely on row locks and the guarded increment alone.
func (r *repo) LockAllocation(ctx context.Context, tx *gorm.DB) error {
	if !db.IsPostgres(tx) {
		return nil
	}
	return tx.WithContext(ctx).Exec(`SELECT pg_advisory_xact_lock(?)`, allocationLockKey).Error
}

func (r *repo) InsertPRP(ctx context.Context, db *gorm.DB, prp *domain.PrimaryRewardPoint) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO primary_reward_points (id, prp_user_id, referred_by, new_user, matching_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		prp.ID,
		prp.PRPUserID,
		prp.ReferredBy,
		prp.NewUser,
		prp.MatchingCount,
		prp.CreatedAt,
	).Error
}

func (r *repo) CountPRP(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.PrimaryRewardPoint{}).Count(&count).Error
	return count, err
}

func (r *repo) FirstPRP(ctx context.Context, db *gorm.DB) (*domain.PrimaryRewardPoint, error) {
	return r.edgePRP(ctx, db, "id ASC")
}

func (r *repo) LastPRP(ctx context.Context, db *gorm.DB) (*domain.PrimaryRewardPoint, error) {
	return r.edgePRP(ctx, db, "id DESC")
}

func (r *repo) edgePRP(ctx context.Context, db *gorm.DB, order string) (*domain.PrimaryRewardPoint, error) {
	var rows []domain.PrimaryRewardPoint
	err := db.WithContext(ctx).
		Order(order).
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

// ListOpenSlots returns prpUserID's slots that can still be paired, oldest
// first, locked for update.
func (r *repo) ListOpenSlots(ctx context.Context, db *gorm.DB, prpUserID snowflake.ID, exclude []snowflake.ID) ([]domain.PrimaryRewardPoint, error) {
	stmt := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("prp_user_id = ?", prpUserID).
		Where("matching_count < ?", domain.MaxMatchingCount)
	if len(exclude) > 0 {
		stmt = stmt.Where("id NOT IN ?", exclude)
	}

	var rows []domain.PrimaryRewardPoint
	if err := stmt.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// IncrementMatchingCount consumes one pairing from the slot. It reports false
// when the slot was already full, which callers treat as a lost race.
func (r *repo) IncrementMatchingCount(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE primary_reward_points SET matching_count = matching_count + 1 WHERE id = ? AND matching_count < ?`,
		id,
		domain.MaxMatchingCount,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) InsertMatching(ctx context.Context, db *gorm.DB, m *domain.PRPMatching) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO prp_matchings (id, prp_id, partner_prp_id, matching_user1, matching_user2, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.PRPID,
		m.PartnerPRPID,
		m.MatchingUser1,
		m.MatchingUser2,
		m.CreatedAt,
	).Error
}

func (r *repo) InsertSecondary(ctx context.Context, db *gorm.DB, srp *domain.SecondaryRewardPoint) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO secondary_reward_points (id, prp_id, referred_su1, referred_su2, eligible_su, reward_category, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		srp.ID,
		srp.PRPID,
		srp.ReferredSU1,
		srp.ReferredSU2,
		srp.EligibleSU,
		srp.RewardCategory,
		srp.CreatedAt,
	).Error
}

func (r *repo) HasSecondary(ctx context.Context, db *gorm.DB, userID snowflake.ID) (bool, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Model(&domain.SecondaryRewardPoint{}).
		Where("eligible_su = ?", userID).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (r *repo) InsertSpot(ctx context.Context, db *gorm.DB, spot *domain.SpotRewardPoint) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO spot_reward_points (id, eligible_user, referral, created_at) VALUES (?, ?, ?, ?)`,
		spot.ID,
		spot.EligibleUser,
		spot.Referral,
		spot.CreatedAt,
	).Error
}

// CountMatchings counts pairs completed on prpUserID's slots. The window
// applies to the completing slot's timestamp.
func (r *repo) CountMatchings(ctx context.Context, db *gorm.DB, prpUserID snowflake.ID, window domain.TimeRange) (int64, error) {
	stmt := db.WithContext(ctx).
		Table("prp_matchings AS m").
		Joins("JOIN primary_reward_points AS p ON p.id = m.prp_id").
		Where("p.prp_user_id = ?", prpUserID)
	stmt = applyWindow(stmt, "p.created_at", window)

	var count int64
	err := stmt.Count(&count).Error
	return count, err
}

func (r *repo) CountReferrals(ctx context.Context, db *gorm.DB, referredBy snowflake.ID, window domain.TimeRange) (int64, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.PrimaryRewardPoint{}).
		Where("referred_by = ?", referredBy)
	stmt = applyWindow(stmt, "created_at", window)

	var count int64
	err := stmt.Count(&count).Error
	return count, err
}

type referralCount struct {
	ReferredBy snowflake.ID
	Total      int64
}

func (r *repo) CountReferralsByUser(ctx context.Context, db *gorm.DB, referredBy []snowflake.ID, window domain.TimeRange) (map[snowflake.ID]int64, error) {
	counts := make(map[snowflake.ID]int64, len(referredBy))
	if len(referredBy) == 0 {
		return counts, nil
	}

	stmt := db.WithContext(ctx).
		Model(&domain.PrimaryRewardPoint{}).
		Select("referred_by, COUNT(*) AS total").
		Where("referred_by IN ?", referredBy)
	stmt = applyWindow(stmt, "created_at", window)

	var rows []referralCount
	if err := stmt.Group("referred_by").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ReferredBy] = row.Total
	}
	return counts, nil
}

func (r *repo) CountSecondary(ctx context.Context, db *gorm.DB, userID snowflake.ID, window domain.TimeRange) (int64, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.SecondaryRewardPoint{}).
		Where("eligible_su = ?", userID)
	stmt = applyWindow(stmt, "created_at", window)

	var count int64
	err := stmt.Count(&count).Error
	return count, err
}

func (r *repo) CountSpot(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.SpotRewardPoint{}).
		Where("eligible_user = ?", userID).
		Count(&count).Error
	return count, err
}

func applyWindow(stmt *gorm.DB, column string, window domain.TimeRange) *gorm.DB {
	if window.From != nil {
		stmt = stmt.Where(column+" >= ?", *window.From)
	}
	if window.To != nil {
		stmt = stmt.Where(column+" <= ?", *window.To)
	}
	return stmt
}
