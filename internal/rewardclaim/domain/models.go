package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type ClaimStatus string

const (
	ClaimStatusInProgress ClaimStatus = "in_progress"
	ClaimStatusCompleted  ClaimStatus = "completed"
	ClaimStatusClaimed    ClaimStatus = "claimed"
	ClaimStatusSkipped    ClaimStatus = "skipped"
	ClaimStatusDelivered  ClaimStatus = "delivered"
)

func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimStatusInProgress, ClaimStatusCompleted, ClaimStatusClaimed, ClaimStatusSkipped, ClaimStatusDelivered:
		return true
	default:
		return false
	}
}

// Progress labels reported for tiers without an explicit claim decision.
const (
	ProgressInProgress = "In-progress"
	ProgressCompleted  = "Completed"
)

// RewardClaim is a member's decision on one reward-criteria tier.
type RewardClaim struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;uniqueIndex:ux_reward_claims_user_criteria,priority:1" json:"user_id"`
	Criteria  string       `gorm:"column:criteria;type:text;not null;uniqueIndex:ux_reward_claims_user_criteria,priority:2" json:"criteria"`
	Status    ClaimStatus  `gorm:"column:status;type:text;not null" json:"status"`
	ClaimedOn *time.Time   `gorm:"column:claimed_on" json:"claimed_on"`
	CreatedAt time.Time    `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (RewardClaim) TableName() string { return "reward_claims" }

// TierProgress is one row of the criteria progress report.
type TierProgress struct {
	UserID       snowflake.ID    `json:"user_id"`
	Name         string          `json:"name"`
	MobileNumber string          `json:"mobile_number"`
	RPCriteria   string          `json:"rp_criteria"`
	Threshold    decimal.Decimal `json:"threshold"`
	RPComplete   decimal.Decimal `json:"rp_complete"`
	RPRequired   decimal.Decimal `json:"rp_required"`
	Status       string          `json:"status"`
	ClaimedOn    *time.Time      `json:"claimed_on"`
}
