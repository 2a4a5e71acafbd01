package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rewardzway/internal/clock"
	"github.com/smallbiznis/rewardzway/internal/referral/domain"
	"github.com/smallbiznis/rewardzway/internal/referral/repository"
	rewardrepository "github.com/smallbiznis/rewardzway/internal/reward/repository"
	"github.com/smallbiznis/rewardzway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type harness struct {
	db  *gorm.DB
	fx  *testutil.Fixtures
	svc domain.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      clock.NewFakeClock(time.Date(2024, time.March, 18, 10, 0, 0, 0, time.UTC)),
		Repo:       repository.Provide(),
		RewardRepo: rewardrepository.Provide(),
	})
	return &harness{db: db, fx: testutil.NewFixtures(t, db, node), svc: svc}
}

func TestTeamTree(t *testing.T) {
	h := newHarness(t)
	root := h.fx.User("root")
	a := h.fx.User("a", testutil.ReferredBy(root.ID))
	b := h.fx.User("b", testutil.ReferredBy(root.ID), testutil.Inactive())
	c := h.fx.User("c", testutil.ReferredBy(a.ID))
	h.fx.Address(a.ID, "Pune")
	h.fx.Address(a.ID, "Mumbai")
	h.fx.Order(c.ID, "499")

	tree, err := h.svc.TeamTree(context.Background(), root.ID)
	require.NoError(t, err)
	require.Len(t, tree, 1)

	top := tree[0]
	assert.Equal(t, root.ID, top.UserID)
	assert.Equal(t, domain.UnknownCity, top.City)
	assert.Nil(t, top.OrderPlaced)
	require.Len(t, top.Children, 2)

	first, second := top.Children[0], top.Children[1]
	assert.Equal(t, a.ID, first.UserID)
	assert.Equal(t, "Pune", first.City)
	assert.Equal(t, domain.StatusActive, first.Status)
	require.NotNil(t, first.Referral)
	assert.Equal(t, root.ID, *first.Referral)

	assert.Equal(t, b.ID, second.UserID)
	assert.Equal(t, domain.StatusInactive, second.Status)
	assert.Empty(t, second.Children)

	require.Len(t, first.Children, 1)
	leaf := first.Children[0]
	assert.Equal(t, c.ID, leaf.UserID)
	require.NotNil(t, leaf.OrderPlaced)
	assert.Equal(t, "499", leaf.OrderPlaced.String())
}

func TestTeamTree_Leaf(t *testing.T) {
	h := newHarness(t)
	root := h.fx.User("root")

	tree, err := h.svc.TeamTree(context.Background(), root.ID)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Empty(t, tree[0].Children)

	flat, err := h.svc.FlatTeamByLevel(context.Background(), root.ID)
	require.NoError(t, err)
	assert.NotNil(t, flat)
	assert.Empty(t, flat)
}

func TestTeamTree_UnknownRoot(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.TeamTree(context.Background(), snowflake.ID(404))
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = h.svc.FlatTeamByLevel(context.Background(), 0)
	require.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestTeamWalks_DetectCycles(t *testing.T) {
	h := newHarness(t)
	root := h.fx.User("root")
	child := h.fx.User("child", testutil.ReferredBy(root.ID))
	require.NoError(t, h.db.Exec(`UPDATE users SET referral_id = ? WHERE id = ?`, child.ID, root.ID).Error)

	_, err := h.svc.TeamTree(context.Background(), root.ID)
	require.ErrorIs(t, err, domain.ErrCycleDetected)

	_, err = h.svc.FlatTeamByLevel(context.Background(), root.ID)
	require.ErrorIs(t, err, domain.ErrCycleDetected)
}

func TestFlatTeamByLevel(t *testing.T) {
	h := newHarness(t)
	root := h.fx.User("root")
	a := h.fx.User("a", testutil.ReferredBy(root.ID))
	c := h.fx.User("c", testutil.ReferredBy(a.ID))
	d := h.fx.User("d", testutil.ReferredBy(c.ID))
	b := h.fx.User("b", testutil.ReferredBy(root.ID))

	flat, err := h.svc.FlatTeamByLevel(context.Background(), root.ID)
	require.NoError(t, err)

	got := make([]snowflake.ID, 0, len(flat))
	levels := make([]int, 0, len(flat))
	for _, node := range flat {
		got = append(got, node.UserID)
		levels = append(levels, node.Level)
	}
	assert.Equal(t, []snowflake.ID{a.ID, b.ID, c.ID, d.ID}, got)
	assert.Equal(t, []int{1, 1, 2, 3}, levels)
}

func users(ids ...snowflake.ID) []domain.User {
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.User{ID: id})
	}
	return out
}

func TestCarryForward_ConservesSales(t *testing.T) {
	referrals := users(1, 2, 3)
	sales := map[snowflake.ID]int64{1: 5, 2: 3, 3: 2}

	rows := CarryForward(referrals, sales)

	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, snowflake.ID(1), row.UserID)
	assert.Equal(t, int64(5), row.TotalSales)
	assert.Equal(t, int64(0), row.SalesConsider)
	assert.Equal(t, int64(5), row.SalesCarryForwarded)

	var before, after int64
	for _, n := range sales {
		before += n
	}
	for _, r := range rows {
		assert.Equal(t, r.TotalSales, r.SalesConsider+r.SalesCarryForwarded)
		after += r.TotalSales + r.SalesCarryForwarded
	}
	assert.Equal(t, before, after, "sales moved from siblings equal sales carried forward")
}

func TestCarryForward_Cases(t *testing.T) {
	tests := []struct {
		name  string
		sales map[snowflake.ID]int64
		want  []domain.ReferralRow
	}{
		{
			name:  "balanced pair",
			sales: map[snowflake.ID]int64{1: 3, 2: 3},
			want:  []domain.ReferralRow{{UserID: 1, TotalSales: 3, SalesConsider: 0, SalesCarryForwarded: 3}},
		},
		{
			name:  "no sales anywhere",
			sales: map[snowflake.ID]int64{},
			want: []domain.ReferralRow{
				{UserID: 1},
				{UserID: 2},
			},
		},
		{
			name:  "sibling left with remainder",
			sales: map[snowflake.ID]int64{1: 1, 2: 4},
			want:  []domain.ReferralRow{{UserID: 1, TotalSales: 1, SalesConsider: 0, SalesCarryForwarded: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CarryForward(users(1, 2), tt.sales))
		})
	}
}

func TestReferralReport(t *testing.T) {
	h := newHarness(t)
	member := h.fx.User("member")
	x := h.fx.User("x", testutil.ReferredBy(member.ID))
	y := h.fx.User("y", testutil.ReferredBy(member.ID))
	z := h.fx.User("z", testutil.ReferredBy(member.ID))

	inWeek := time.Date(2024, time.March, 17, 8, 0, 0, 0, time.UTC)
	lastWeek := time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC)
	for referrer, n := range map[snowflake.ID]int{x.ID: 5, y.ID: 3, z.ID: 2} {
		for i := 0; i < n; i++ {
			h.fx.PRP(member.ID, referrer, h.fx.User("new").ID, 0, inWeek)
		}
	}
	h.fx.PRP(member.ID, x.ID, h.fx.User("old").ID, 0, lastWeek)

	rows, err := h.svc.ReferralReport(context.Background(), member.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, x.ID, rows[0].UserID)
	assert.Equal(t, "x", rows[0].Name)
	assert.Equal(t, int64(5), rows[0].TotalSales)
	assert.Equal(t, int64(0), rows[0].SalesConsider)
	assert.Equal(t, int64(5), rows[0].SalesCarryForwarded)
}

func TestReferralReport_NoReferrals(t *testing.T) {
	h := newHarness(t)
	member := h.fx.User("member")

	rows, err := h.svc.ReferralReport(context.Background(), member.ID)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}
