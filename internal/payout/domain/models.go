package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rewardzway/pkg/db/pagination"
)

// Payout is the settled statement for one member and one settlement week.
type Payout struct {
	ID            snowflake.ID        `gorm:"primaryKey" json:"id"`
	UserID        snowflake.ID        `gorm:"column:user_id;not null;uniqueIndex:ux_payouts_user_window,priority:1" json:"user_id"`
	StartDate     time.Time           `gorm:"column:start_date;not null;uniqueIndex:ux_payouts_user_window,priority:2" json:"start_date"`
	EndDate       time.Time           `gorm:"column:end_date;not null;uniqueIndex:ux_payouts_user_window,priority:3" json:"end_date"`
	PRPTeamCount  int64               `gorm:"column:prp_team_count;not null" json:"prp_team_count"`
	ReferralCount int64               `gorm:"column:referral_count;not null" json:"referral_count"`
	PrimaryRP     decimal.NullDecimal `gorm:"column:primary_rp;type:numeric(12,2)" json:"primary_rp"`
	SecondaryRP   decimal.NullDecimal `gorm:"column:secondary_rp;type:numeric(12,2)" json:"secondary_rp"`
	SpotRP        decimal.NullDecimal `gorm:"column:spot_rp;type:numeric(12,2)" json:"spot_rp"`
	Gross         decimal.Decimal     `gorm:"column:gross;type:numeric(12,2);not null" json:"gross"`
	TDS           decimal.Decimal     `gorm:"column:tds;type:numeric(12,2);not null" json:"tds"`
	Rental        decimal.Decimal     `gorm:"column:rental;type:numeric(12,2);not null" json:"rental"`
	Net           decimal.Decimal     `gorm:"column:net;type:numeric(12,2);not null" json:"net"`
	Repurchase    decimal.Decimal     `gorm:"column:repurchase;type:numeric(12,2);not null" json:"repurchase"`
	Final         decimal.Decimal     `gorm:"column:final;type:numeric(12,2);not null" json:"final"`
	CreatedAt     time.Time           `gorm:"column:created_at;not null" json:"created_at"`
}

func (Payout) TableName() string { return "payouts" }

func (p *Payout) Apply(f Financials) {
	p.Gross = f.Gross
	p.TDS = f.TDS
	p.Rental = f.Rental
	p.Net = f.Net
	p.Repurchase = f.Repurchase
	p.Final = f.Final
}

// ReportRow is a payout computed on demand over an arbitrary date range.
type ReportRow struct {
	UserID          snowflake.ID        `json:"user_id"`
	Name            string              `json:"name"`
	MobileNumber    string              `json:"mobile_number"`
	StartDate       time.Time           `json:"start_date"`
	EndDate         time.Time           `json:"end_date"`
	PRPTeamCount    int64               `json:"prp_team_count"`
	ReferralCount   int64               `json:"referral_count"`
	SecondaryCount  int64               `json:"secondary_count"`
	SpotCount       int64               `json:"spot_count"`
	PrimaryReward   decimal.NullDecimal `json:"primary_reward"`
	SecondaryReward decimal.NullDecimal `json:"secondary_reward"`
	SpotReward      decimal.NullDecimal `json:"spot_reward"`
	Financials
}

type PayoutRangeRequest struct {
	UserID *snowflake.ID
	Start  time.Time
	End    time.Time
	Page   pagination.Pagination
}

type PayoutRangeResponse struct {
	Payouts  []Payout             `json:"payouts"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

type RangeFilter struct {
	UserID   *snowflake.ID
	From     time.Time
	Before   time.Time
	AfterKey *PageKey
	Limit    int
}

// PageKey is the (start_date, id) position of the last row already returned.
type PageKey struct {
	StartDate time.Time
	ID        snowflake.ID
}

type UserDashboard struct {
	UserID          snowflake.ID    `json:"user_id"`
	ReferralCount   int64           `json:"referral_count"`
	TeamCount       int64           `json:"team_count"`
	PrimaryRewards  decimal.Decimal `json:"primary_rewards"`
	SecondaryReward decimal.Decimal `json:"secondary_rewards"`
	SpotRewards     decimal.Decimal `json:"spot_rewards"`
	TotalRewards    decimal.Decimal `json:"total_rewards"`
}

type OrgDashboard struct {
	TotalStrength int64 `json:"total_strength"`
	FreeUsers     int64 `json:"free_users"`
	OrderPlaced   int64 `json:"order_placed"`
}
