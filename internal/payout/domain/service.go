package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CustomReportRequest struct {
	UserID    *snowflake.ID
	StartDate time.Time
	EndDate   time.Time
}

type Service interface {
	WeeklyPayout(ctx context.Context, userID snowflake.ID, referenceDate *time.Time) (*Payout, bool, error)
	PayoutsInRange(ctx context.Context, req PayoutRangeRequest) (*PayoutRangeResponse, error)
	CustomPayoutReport(ctx context.Context, req CustomReportRequest) ([]ReportRow, error)
	UserDashboard(ctx context.Context, userID snowflake.ID) (*UserDashboard, error)
	OrgDashboard(ctx context.Context) (*OrgDashboard, error)
}
