package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// MaxMatchingCount is the number of pairings a single PRP slot can absorb.
const MaxMatchingCount = 2

type MatchKind string

const (
	MatchKindNone   MatchKind = "none"
	MatchKindParent MatchKind = "parent"
	MatchKindChild  MatchKind = "child"
)

type RewardCategory string

const (
	RewardCategoryFirstJoin   RewardCategory = "first_join"
	RewardCategoryFirstReward RewardCategory = "first_reward"
)

// PrimaryRewardPoint is a matching slot owned by PRPUserID, created when
// NewUser joined through ReferredBy.
type PrimaryRewardPoint struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	PRPUserID     snowflake.ID `gorm:"column:prp_user_id;not null;index" json:"prp_user_id"`
	ReferredBy    snowflake.ID `gorm:"column:referred_by;not null;index" json:"referred_by"`
	NewUser       snowflake.ID `gorm:"column:new_user;not null" json:"new_user"`
	MatchingCount int          `gorm:"column:matching_count;not null;check:chk_prp_matching_count,matching_count BETWEEN 0 AND 2" json:"matching_count"`
	CreatedAt     time.Time    `gorm:"column:created_at;not null;index" json:"date"`
}

func (PrimaryRewardPoint) TableName() string { return "primary_reward_points" }

// PRPMatching records that two new users were paired under the same primary
// user. PRPID is the slot inserted by the allocation that completed the pair.
type PRPMatching struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	PRPID         snowflake.ID `gorm:"column:prp_id;not null;index" json:"prp_id"`
	PartnerPRPID  snowflake.ID `gorm:"column:partner_prp_id;not null;index" json:"partner_prp_id"`
	MatchingUser1 snowflake.ID `gorm:"column:matching_user1;not null" json:"matching_user1"`
	MatchingUser2 snowflake.ID `gorm:"column:matching_user2;not null" json:"matching_user2"`
	CreatedAt     time.Time    `gorm:"column:created_at;not null" json:"created_at"`
}

func (PRPMatching) TableName() string { return "prp_matchings" }

type SecondaryRewardPoint struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	PRPID          snowflake.ID   `gorm:"column:prp_id;not null;index" json:"prp_id"`
	ReferredSU1    snowflake.ID   `gorm:"column:referred_su1;not null" json:"referred_su1"`
	ReferredSU2    snowflake.ID   `gorm:"column:referred_su2;not null" json:"referred_su2"`
	EligibleSU     snowflake.ID   `gorm:"column:eligible_su;not null;index" json:"eligible_su"`
	RewardCategory RewardCategory `gorm:"column:reward_category;type:text;not null" json:"reward_category"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (SecondaryRewardPoint) TableName() string { return "secondary_reward_points" }

type SpotRewardPoint struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	EligibleUser snowflake.ID `gorm:"column:eligible_user;not null;index" json:"eligible_user"`
	Referral     snowflake.ID `gorm:"column:referral;not null" json:"referral"`
	CreatedAt    time.Time    `gorm:"column:created_at;not null" json:"created_at"`
}

func (SpotRewardPoint) TableName() string { return "spot_reward_points" }

// MatchingResult describes what a single allocation wrote.
type MatchingResult struct {
	PrimaryUserID snowflake.ID          `json:"primary_user_id"`
	PRP           PrimaryRewardPoint    `json:"prp"`
	Matched       bool                  `json:"matched"`
	Kind          MatchKind             `json:"match_kind"`
	Partner       *PrimaryRewardPoint   `json:"partner,omitempty"`
	Matching      *PRPMatching          `json:"matching,omitempty"`
	Secondary     *SecondaryRewardPoint `json:"secondary,omitempty"`
}

// TimeRange bounds a count query. Nil ends are open.
type TimeRange struct {
	From *time.Time
	To   *time.Time
}
