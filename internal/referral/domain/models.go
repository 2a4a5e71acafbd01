package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// User is the reward engine's view of a member. The row is owned by the
// account service; rewards only flip the referral and order flags.
type User struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	FullName      string        `gorm:"column:full_name;type:text" json:"full_name"`
	MobileNumber  string        `gorm:"column:mobile_number;type:text;not null;uniqueIndex" json:"mobile_number"`
	ReferralID    *snowflake.ID `gorm:"column:referral_id;index" json:"referral_id,omitempty"`
	IsActive      bool          `gorm:"column:is_active;not null" json:"is_active"`
	IsFree        bool          `gorm:"column:is_free;not null" json:"is_free"`
	IsUpdated     bool          `gorm:"column:is_updated;not null" json:"is_updated"`
	OrderComplete bool          `gorm:"column:order_complete;not null" json:"order_complete"`
	DateJoined    time.Time     `gorm:"column:date_joined;not null" json:"date_joined"`
}

func (User) TableName() string { return "users" }

// JoinedBefore orders users by join date, breaking ties on id.
func (u User) JoinedBefore(other User) bool {
	if u.DateJoined.Equal(other.DateJoined) {
		return u.ID < other.ID
	}
	return u.DateJoined.Before(other.DateJoined)
}

type Address struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID snowflake.ID `gorm:"column:user_id;not null;index" json:"user_id"`
	City   string       `gorm:"column:city;type:text" json:"city"`
}

func (Address) TableName() string { return "addresses" }

type Order struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID        snowflake.ID    `gorm:"column:user_id;not null;index" json:"user_id"`
	TotalAmount   decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null" json:"total_amount"`
	PaymentStatus bool            `gorm:"column:payment_status;not null" json:"payment_status"`
	CreatedAt     time.Time       `gorm:"column:created_at;not null" json:"created_at"`
}

func (Order) TableName() string { return "orders" }

const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
	UnknownCity    = "City Unknown"
)

// TeamNode is one member of a downline report.
type TeamNode struct {
	UserID           snowflake.ID     `json:"user_id"`
	Level            int              `json:"level,omitempty"`
	Name             string           `json:"name"`
	MobileNumber     string           `json:"mobile_number"`
	City             string           `json:"city"`
	Referral         *snowflake.ID    `json:"referral"`
	Status           string           `json:"status"`
	RegistrationDate time.Time        `json:"registration_date"`
	OrderPlaced      *decimal.Decimal `json:"order_placed"`
	Children         []TeamNode       `json:"children,omitempty"`
}

// ReferralRow is one direct referral's weekly sales after carry-forward.
type ReferralRow struct {
	UserID              snowflake.ID `json:"user_id"`
	Name                string       `json:"name"`
	MobileNumber        string       `json:"mobile_number"`
	TotalSales          int64        `json:"total_sales"`
	SalesConsider       int64        `json:"sales_consider"`
	SalesCarryForwarded int64        `json:"sales_carry_forwarded"`
}

// UserCounts are organisation-wide membership figures.
type UserCounts struct {
	TotalStrength int64 `json:"total_strength"`
	FreeUsers     int64 `json:"free_users"`
	OrderPlaced   int64 `json:"order_placed"`
}
