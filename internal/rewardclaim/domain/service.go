package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type UpsertClaimRequest struct {
	UserID    snowflake.ID `json:"-"`
	Criteria  string       `json:"criteria"`
	Status    string       `json:"status"`
	ClaimedOn *time.Time   `json:"claimed_on"`
}

type Service interface {
	CriteriaProgress(ctx context.Context, userID snowflake.ID) ([]TierProgress, error)
	UpsertClaim(ctx context.Context, req UpsertClaimRequest) (*RewardClaim, error)
}
