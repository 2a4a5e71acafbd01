package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	rewardconfigdomain "github.com/smallbiznis/rewardzway/internal/rewardconfig/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// defaultRates are the statutory deductions applied to every payout. Unit
// amounts and tiers have no safe default and are left to the admin.
var defaultRates = []struct {
	Name  string
	Value string
}{
	{rewardconfigdomain.NameTDS, "3.27"},
	{rewardconfigdomain.NameRTL, "6.73"},
	{rewardconfigdomain.NameRPS, "10"},
}

// EnsureDefaultConfigurations inserts the default deduction rates. Rows an
// admin already edited are left as they are.
func EnsureDefaultConfigurations(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed snowflake node is required")
	}

	ctx := context.Background()
	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rate := range defaultRates {
			value := decimal.RequireFromString(rate.Value)
			row := rewardconfigdomain.Configuration{
				ID:           node.Generate(),
				Name:         rate.Name,
				Kind:         rewardconfigdomain.KindRate,
				Value:        value,
				DecimalValue: rewardconfigdomain.DecimalValueOf(value),
				UpdatedAt:    now,
			}
			err := tx.WithContext(ctx).
				Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
				Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
