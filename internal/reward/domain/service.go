package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type AllocateRewardRequest struct {
	NewUserID      string `json:"new_user_id"`
	ReferredUserID string `json:"referred_user_id"`
}

type RecordSpotRewardRequest struct {
	ReferrerID    string `json:"referrer_id"`
	NewReferralID string `json:"new_referral_id"`
}

type AttachReferralRequest struct {
	UserID         snowflake.ID `json:"-"`
	ReferralMobile string       `json:"referral_id"`
}

// MatchingReport summarises a member's completed pairs.
type MatchingReport struct {
	UserID        snowflake.ID    `json:"user_id"`
	EligibleTeams int64           `json:"eligible_teams"`
	TotalRewards  decimal.Decimal `json:"total_rewards"`
}

type Service interface {
	AllocateReward(ctx context.Context, req AllocateRewardRequest) (*MatchingResult, error)
	OnOrderPaid(ctx context.Context, userID snowflake.ID) (*MatchingResult, error)
	RecordSpotReward(ctx context.Context, req RecordSpotRewardRequest) (*SpotRewardPoint, error)
	AttachReferral(ctx context.Context, req AttachReferralRequest) (*SpotRewardPoint, error)
	MatchingReport(ctx context.Context, userID snowflake.ID) (*MatchingReport, error)
}
