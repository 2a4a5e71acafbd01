// Package testutil builds in-memory databases and fixtures for service tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	payoutdomain "github.com/smallbiznis/rewardzway/internal/payout/domain"
	referraldomain "github.com/smallbiznis/rewardzway/internal/referral/domain"
	rewarddomain "github.com/smallbiznis/rewardzway/internal/reward/domain"
	rewardclaimdomain "github.com/smallbiznis/rewardzway/internal/rewardclaim/domain"
	rewardconfigdomain "github.com/smallbiznis/rewardzway/internal/rewardconfig/domain"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// OpenDB returns a private in-memory database with every reward table.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	err = db.AutoMigrate(
		&referraldomain.User{},
		&referraldomain.Address{},
		&referraldomain.Order{},
		&rewarddomain.PrimaryRewardPoint{},
		&rewarddomain.PRPMatching{},
		&rewarddomain.SecondaryRewardPoint{},
		&rewarddomain.SpotRewardPoint{},
		&rewardclaimdomain.RewardClaim{},
		&rewardconfigdomain.Configuration{},
		&payoutdomain.Payout{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Node returns a snowflake node for tests.
func Node(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// Fixtures inserts rows directly, bypassing services.
type Fixtures struct {
	t     testing.TB
	db    *gorm.DB
	node  *snowflake.Node
	phone atomic.Int64
}

func NewFixtures(t testing.TB, db *gorm.DB, node *snowflake.Node) *Fixtures {
	return &Fixtures{t: t, db: db, node: node}
}

type UserOption func(*referraldomain.User)

func ReferredBy(id snowflake.ID) UserOption {
	return func(u *referraldomain.User) { u.ReferralID = &id }
}

func JoinedAt(ts time.Time) UserOption {
	return func(u *referraldomain.User) { u.DateJoined = ts.UTC() }
}

func Mobile(number string) UserOption {
	return func(u *referraldomain.User) { u.MobileNumber = number }
}

func Inactive() UserOption {
	return func(u *referraldomain.User) { u.IsActive = false }
}

func Updated() UserOption {
	return func(u *referraldomain.User) { u.IsUpdated = true }
}

func (f *Fixtures) User(name string, opts ...UserOption) referraldomain.User {
	f.t.Helper()
	user := referraldomain.User{
		ID:           f.node.Generate(),
		FullName:     name,
		MobileNumber: fmt.Sprintf("90000%05d", f.phone.Add(1)),
		IsActive:     true,
		IsFree:       true,
		DateJoined:   time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(&user)
	}
	if err := f.db.Create(&user).Error; err != nil {
		f.t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

func (f *Fixtures) Address(userID snowflake.ID, city string) {
	f.t.Helper()
	addr := referraldomain.Address{ID: f.node.Generate(), UserID: userID, City: city}
	if err := f.db.Create(&addr).Error; err != nil {
		f.t.Fatalf("create address: %v", err)
	}
}

func (f *Fixtures) Order(userID snowflake.ID, total string) {
	f.t.Helper()
	order := referraldomain.Order{
		ID:            f.node.Generate(),
		UserID:        userID,
		TotalAmount:   decimal.RequireFromString(total),
		PaymentStatus: true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := f.db.Create(&order).Error; err != nil {
		f.t.Fatalf("create order: %v", err)
	}
}

// PRP inserts a slot for owner created through referredBy.
func (f *Fixtures) PRP(owner, referredBy, newUser snowflake.ID, matchingCount int, at time.Time) rewarddomain.PrimaryRewardPoint {
	f.t.Helper()
	prp := rewarddomain.PrimaryRewardPoint{
		ID:            f.node.Generate(),
		PRPUserID:     owner,
		ReferredBy:    referredBy,
		NewUser:       newUser,
		MatchingCount: matchingCount,
		CreatedAt:     at.UTC(),
	}
	if err := f.db.Create(&prp).Error; err != nil {
		f.t.Fatalf("create prp: %v", err)
	}
	return prp
}

func (f *Fixtures) Matching(prpID, partnerID, user1, user2 snowflake.ID, at time.Time) {
	f.t.Helper()
	m := rewarddomain.PRPMatching{
		ID:            f.node.Generate(),
		PRPID:         prpID,
		PartnerPRPID:  partnerID,
		MatchingUser1: user1,
		MatchingUser2: user2,
		CreatedAt:     at.UTC(),
	}
	if err := f.db.Create(&m).Error; err != nil {
		f.t.Fatalf("create matching: %v", err)
	}
}

func (f *Fixtures) Secondary(eligible snowflake.ID, at time.Time) {
	f.t.Helper()
	srp := rewarddomain.SecondaryRewardPoint{
		ID:             f.node.Generate(),
		PRPID:          f.node.Generate(),
		ReferredSU1:    eligible,
		ReferredSU2:    eligible,
		EligibleSU:     eligible,
		RewardCategory: rewarddomain.RewardCategoryFirstJoin,
		CreatedAt:      at.UTC(),
	}
	if err := f.db.Create(&srp).Error; err != nil {
		f.t.Fatalf("create srp: %v", err)
	}
}

func (f *Fixtures) Spot(eligible, referral snowflake.ID, at time.Time) {
	f.t.Helper()
	spot := rewarddomain.SpotRewardPoint{
		ID:           f.node.Generate(),
		EligibleUser: eligible,
		Referral:     referral,
		CreatedAt:    at.UTC(),
	}
	if err := f.db.Create(&spot).Error; err != nil {
		f.t.Fatalf("create spot: %v", err)
	}
}

func (f *Fixtures) Config(name string, kind rewardconfigdomain.Kind, ordinal int, value string) {
	f.t.Helper()
	v := decimal.RequireFromString(value)
	cfg := rewardconfigdomain.Configuration{
		ID:           f.node.Generate(),
		Name:         name,
		Kind:         kind,
		Ordinal:      ordinal,
		Value:        v,
		DecimalValue: rewardconfigdomain.DecimalValueOf(v),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := f.db.Create(&cfg).Error; err != nil {
		f.t.Fatalf("create configuration %s: %v", name, err)
	}
}

// StandardConfig seeds the amounts, rates and three tiers used across tests:
// PRP 2000, SRP 500, IRP 100, TDS 3.27%, RTL 6.73%, RPS 10%,
// RPC1 10000, RPC2 25000, RPC3 50000.
func (f *Fixtures) StandardConfig() {
	f.Config(rewardconfigdomain.NamePRP, rewardconfigdomain.KindAmount, 0, "2000")
	f.Config(rewardconfigdomain.NameSRP, rewardconfigdomain.KindAmount, 0, "500")
	f.Config(rewardconfigdomain.NameIRP, rewardconfigdomain.KindAmount, 0, "100")
	f.Config(rewardconfigdomain.NameTDS, rewardconfigdomain.KindRate, 0, "3.27")
	f.Config(rewardconfigdomain.NameRTL, rewardconfigdomain.KindRate, 0, "6.73")
	f.Config(rewardconfigdomain.NameRPS, rewardconfigdomain.KindRate, 0, "10")
	f.Config("RPC1", rewardconfigdomain.KindTier, 1, "10000")
	f.Config("RPC2", rewardconfigdomain.KindTier, 2, "25000")
	f.Config("RPC3", rewardconfigdomain.KindTier, 3, "50000")
}

// Count returns the number of rows in model's table.
func Count(t testing.TB, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.WithContext(context.Background()).Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
