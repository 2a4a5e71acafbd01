package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	TeamTree(ctx context.Context, rootID snowflake.ID) ([]TeamNode, error)
	FlatTeamByLevel(ctx context.Context, rootID snowflake.ID) ([]TeamNode, error)
	ReferralReport(ctx context.Context, userID snowflake.ID) ([]ReferralRow, error)
}
