package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rewardzway/internal/clock"
	referraldomain "github.com/smallbiznis/rewardzway/internal/referral/domain"
	referralrepository "github.com/smallbiznis/rewardzway/internal/referral/repository"
	"github.com/smallbiznis/rewardzway/internal/reward/domain"
	"github.com/smallbiznis/rewardzway/internal/reward/repository"
	rewardconfigrepository "github.com/smallbiznis/rewardzway/internal/rewardconfig/repository"
	rewardconfigservice "github.com/smallbiznis/rewardzway/internal/rewardconfig/service"
	"github.com/smallbiznis/rewardzway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type harness struct {
	db    *gorm.DB
	fx    *testutil.Fixtures
	clock *clock.FakeClock
	svc   domain.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithRepo(t, repository.Provide())
}

func newHarnessWithRepo(t *testing.T, repo domain.Repository) *harness {
	t.Helper()
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Date(2024, time.March, 18, 10, 0, 0, 0, time.UTC))

	configSvc := rewardconfigservice.New(rewardconfigservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  rewardconfigrepository.Provide(),
	})
	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      repo,
		UserRepo:  referralrepository.Provide(),
		ConfigSvc: configSvc,
	})
	return &harness{db: db, fx: testutil.NewFixtures(t, db, node), clock: clk, svc: svc}
}

func (h *harness) allocate(t *testing.T, newUser, referred snowflake.ID) *domain.MatchingResult {
	t.Helper()
	res, err := h.svc.AllocateReward(context.Background(), domain.AllocateRewardRequest{
		NewUserID:      newUser.String(),
		ReferredUserID: referred.String(),
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func (h *harness) slot(t *testing.T, id snowflake.ID) domain.PrimaryRewardPoint {
	t.Helper()
	var prp domain.PrimaryRewardPoint
	require.NoError(t, h.db.First(&prp, "id = ?", id).Error)
	return prp
}

func TestAllocateReward_FirstSlotIsUnmatched(t *testing.T) {
	h := newHarness(t)
	root := h.fx.User("root")
	newcomer := h.fx.User("newcomer", testutil.ReferredBy(root.ID))

	res := h.allocate(t, newcomer.ID, root.ID)

	assert.False(t, res.Matched)
	assert.Equal(t, domain.MatchKindNone, res.Kind)
	assert.Equal(t, root.ID, res.PrimaryUserID)
	assert.Equal(t, root.ID, res.PRP.PRPUserID)
	assert.Equal(t, root.ID, res.PRP.ReferredBy)
	assert.Equal(t, newcomer.ID, res.PRP.NewUser)
	assert.Equal(t, 0, res.PRP.MatchingCount)
	assert.Equal(t, int64(1), testutil.Count(t, h.db, &domain.PrimaryRewardPoint{}))
	assert.Equal(t, int64(0), testutil.Count(t, h.db, &domain.PRPMatching{}))
}

func TestAllocateReward_ParentMatch(t *testing.T) {
	h := newHarness(t)
	root := h.fx.User("root")
	a := h.fx.User("a", testutil.ReferredBy(root.ID))
	b := h.fx.User("b", testutil.ReferredBy(root.ID))

	first := h.allocate(t, a.ID, root.ID)
	second := h.allocate(t, b.ID, root.ID)

	require.True(t, second.Matched)
	assert.Equal(t, domain.MatchKindParent, second.Kind)
	require.NotNil(t, second.Matching)
	assert.Equal(t, second.PRP.ID, second.Matching.PRPID)
	assert.Equal(t, first.PRP.ID, second.Matching.PartnerPRPID)
	assert.Equal(t, b.ID, second.Matching.MatchingUser1)
	assert.Equal(t, a.ID, second.Matching.MatchingUser2)
	assert.Nil(t, second.Secondary)
	assert.Equal(t, 1, h.slot(t, first.PRP.ID).MatchingCount)
	assert.Equal(t, int64(0), testutil.Count(t, h.db, &domain.SecondaryRewardPoint{}))
}

func TestAllocateReward_ChildMatchCreditsSecondary(t *testing.T) {
	h := newHarness(t)
	root := h.fx.User("root")
	x := h.fx.User("x", testutil.ReferredBy(root.ID), testutil.JoinedAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	y := h.fx.User("y", testutil.ReferredBy(root.ID), testutil.JoinedAt(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	n1 := h.fx.User("n1", testutil.ReferredBy(x.ID))
	n2 := h.fx.User("n2", testutil.ReferredBy(y.ID))
	n3 := h.fx.User("n3", testutil.ReferredBy(x.ID))

	first := h.allocate(t, n1.ID, x.ID)
	assert.Equal(t, root.ID, first.PrimaryUserID, "upline of the referrer owns the slot")

	second := h.allocate(t, n2.ID, y.ID)
	require.True(t, second.Matched)
	assert.Equal(t, domain.MatchKindChild, second.Kind)
	require.NotNil(t, second.Secondary)
	assert.Equal(t, x.ID, second.Secondary.EligibleSU, "earlier joiner without SRP gets first_join")
	assert.Equal(t, domain.RewardCategoryFirstJoin, second.Secondary.RewardCategory)
	assert.Equal(t, y.ID, second.Secondary.ReferredSU1)
	assert.Equal(t, x.ID, second.Secondary.ReferredSU2)

	// Two slots exist and the first is half used, so only the second is open.
	third := h.allocate(t, n3.ID, x.ID)
	require.True(t, third.Matched)
	assert.Equal(t, second.PRP.ID, third.Partner.ID)
	require.NotNil(t, third.Secondary)
	assert.Equal(t, y.ID, third.Secondary.EligibleSU, "earlier joiner already credited, other referrer gets first_reward")
	assert.Equal(t, domain.RewardCategoryFirstReward, third.Secondary.RewardCategory)
}

func TestAllocateReward_JoinDateTieBreaksOnID(t *testing.T) {
	h := newHarness(t)
	root := h.fx.User("root")
	joined := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	x := h.fx.User("x", testutil.ReferredBy(root.ID), testutil.JoinedAt(joined))
	y := h.fx.User("y", testutil.ReferredBy(root.ID), testutil.JoinedAt(joined))
	n1 := h.fx.User("n1")
	n2 := h.fx.User("n2")

	h.allocate(t, n1.ID, y.ID)
	res := h.allocate(t, n2.ID, x.ID)

	require.NotNil(t, res.Secondary)
	assert.Equal(t, x.ID, res.Secondary.EligibleSU, "lower id wins a join-date tie")
}

func TestAllocateReward_EdgeSlotsExcluded(t *testing.T) {
	h := newHarness(t)
	root := h.fx.User("root")
	other := h.fx.User("other")
	newcomer := h.fx.User("newcomer")
	at := h.clock.Now().Add(-time.Hour)

	firstSlot := h.fx.PRP(root.ID, root.ID, h.fx.User("u1").ID, 1, at)
	h.fx.PRP(root.ID, root.ID, h.fx.User("u2").ID, 2, at)
	lastSlot := h.fx.PRP(root.ID, other.ID, h.fx.User("u3").ID, 1, at)

	res := h.allocate(t, newcomer.ID, root.ID)

	assert.False(t, res.Matched)
	assert.Equal(t, 1, h.slot(t, firstSlot.ID).MatchingCount)
	assert.Equal(t, 1, h.slot(t, lastSlot.ID).MatchingCount)
}

func TestAllocateReward_TwoSlotsExcludeOnlyFirst(t *testing.T) {
	h := newHarness(t)
	root := h.fx.User("root")
	other := h.fx.User("other")
	newcomer := h.fx.User("newcomer")
	at := h.clock.Now().Add(-time.Hour)

	firstSlot := h.fx.PRP(root.ID, root.ID, h.fx.User("u1").ID, 1, at)
	secondSlot := h.fx.PRP(root.ID, other.ID, h.fx.User("u2").ID, 1, at)

	res := h.allocate(t, newcomer.ID, root.ID)

	require.True(t, res.Matched)
	assert.Equal(t, secondSlot.ID, res.Partner.ID)
	assert.Equal(t, 1, h.slot(t, firstSlot.ID).MatchingCount)
	assert.Equal(t, 2, h.slot(t, secondSlot.ID).MatchingCount)
}

// scriptedRepo wraps the real repository and injects contention or
// failures into the pairing steps.
type scriptedRepo struct {
	domain.Repository

	lostRaces     int
	failMatching  error
	failSecondary error
}

func (r *scriptedRepo) IncrementMatchingCount(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	if r.lostRaces > 0 {
		r.lostRaces--
		return false, nil
	}
	return r.Repository.IncrementMatchingCount(ctx, db, id)
}

func (r *scriptedRepo) InsertMatching(ctx context.Context, db *gorm.DB, m *domain.PRPMatching) error {
	if r.failMatching != nil {
		return r.failMatching
	}
	return r.Repository.InsertMatching(ctx, db, m)
}

func (r *scriptedRepo) InsertSecondary(ctx context.Context, db *gorm.DB, srp *domain.SecondaryRewardPoint) error {
	if r.failSecondary != nil {
		return r.failSecondary
	}
	return r.Repository.InsertSecondary(ctx, db, srp)
}

func TestAllocateReward_LostRaceFallsThroughToNextSlot(t *testing.T) {
	repo := &scriptedRepo{Repository: repository.Provide(), lostRaces: 1}
	h := newHarnessWithRepo(t, repo)
	root := h.fx.User("root")
	newcomer := h.fx.User("newcomer", testutil.ReferredBy(root.ID))
	at := h.clock.Now().Add(-time.Hour)

	contended := h.fx.PRP(root.ID, root.ID, h.fx.User("u1").ID, 0, at)
	next := h.fx.PRP(root.ID, root.ID, h.fx.User("u2").ID, 0, at)
	h.fx.PRP(root.ID, root.ID, h.fx.User("u3").ID, 0, at)

	res := h.allocate(t, newcomer.ID, root.ID)

	require.True(t, res.Matched)
	assert.Equal(t, 0, repo.lostRaces)
	assert.Equal(t, next.ID, res.Partner.ID)
	assert.Equal(t, next.ID, res.Matching.PartnerPRPID)
	assert.Equal(t, 0, h.slot(t, contended.ID).MatchingCount)
	assert.Equal(t, 1, h.slot(t, next.ID).MatchingCount)
	assert.Equal(t, int64(1), testutil.Count(t, h.db, &domain.PRPMatching{}))
}

func TestAllocateReward_FailedMatchingRollsBack(t *testing.T) {
	boom := errors.New("insert matching failed")
	repo := &scriptedRepo{Repository: repository.Provide()}
	h := newHarnessWithRepo(t, repo)
	root := h.fx.User("root")
	a := h.fx.User("a", testutil.ReferredBy(root.ID))
	b := h.fx.User("b", testutil.ReferredBy(root.ID))

	first := h.allocate(t, a.ID, root.ID)
	repo.failMatching = boom

	_, err := h.svc.AllocateReward(context.Background(), domain.AllocateRewardRequest{
		NewUserID:      b.ID.String(),
		ReferredUserID: root.ID.String(),
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), testutil.Count(t, h.db, &domain.PrimaryRewardPoint{}))
	assert.Equal(t, int64(0), testutil.Count(t, h.db, &domain.PRPMatching{}))
	assert.Equal(t, 0, h.slot(t, first.PRP.ID).MatchingCount)
}

func TestAllocateReward_FailedSecondaryRollsBack(t *testing.T) {
	boom := errors.New("insert secondary failed")
	repo := &scriptedRepo{Repository: repository.Provide()}
	h := newHarnessWithRepo(t, repo)
	root := h.fx.User("root")
	x := h.fx.User("x", testutil.ReferredBy(root.ID))
	y := h.fx.User("y", testutil.ReferredBy(root.ID))
	n1 := h.fx.User("n1", testutil.ReferredBy(x.ID))
	n2 := h.fx.User("n2", testutil.ReferredBy(y.ID))

	first := h.allocate(t, n1.ID, x.ID)
	repo.failSecondary = boom

	_, err := h.svc.AllocateReward(context.Background(), domain.AllocateRewardRequest{
		NewUserID:      n2.ID.String(),
		ReferredUserID: y.ID.String(),
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), testutil.Count(t, h.db, &domain.PrimaryRewardPoint{}))
	assert.Equal(t, int64(0), testutil.Count(t, h.db, &domain.PRPMatching{}))
	assert.Equal(t, int64(0), testutil.Count(t, h.db, &domain.SecondaryRewardPoint{}))
	assert.Equal(t, 0, h.slot(t, first.PRP.ID).MatchingCount)
}

func TestAllocateReward_MissingReferrerWritesNothing(t *testing.T) {
	h := newHarness(t)
	newcomer := h.fx.User("newcomer")

	_, err := h.svc.AllocateReward(context.Background(), domain.AllocateRewardRequest{
		NewUserID:      newcomer.ID.String(),
		ReferredUserID: snowflake.ID(12345).String(),
	})
	require.ErrorIs(t, err, domain.ErrReferenceNotFound)
	assert.Equal(t, int64(0), testutil.Count(t, h.db, &domain.PrimaryRewardPoint{}))
}

func TestAllocateReward_DanglingUpline(t *testing.T) {
	h := newHarness(t)
	referrer := h.fx.User("referrer", testutil.ReferredBy(snowflake.ID(999)))
	newcomer := h.fx.User("newcomer")

	_, err := h.svc.AllocateReward(context.Background(), domain.AllocateRewardRequest{
		NewUserID:      newcomer.ID.String(),
		ReferredUserID: referrer.ID.String(),
	})
	require.ErrorIs(t, err, domain.ErrReferenceNotFound)
}

func TestAllocateReward_InvalidID(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.AllocateReward(context.Background(), domain.AllocateRewardRequest{
		NewUserID:      "abc",
		ReferredUserID: "1",
	})
	require.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestAllocateReward_MatchingCountNeverExceedsTwo(t *testing.T) {
	h := newHarness(t)
	rng := rand.New(rand.NewSource(7))

	root := h.fx.User("root")
	members := []referraldomain.User{root}
	for i := 0; i < 6; i++ {
		members = append(members, h.fx.User("lvl1", testutil.ReferredBy(root.ID)))
	}

	for i := 0; i < 60; i++ {
		referrer := members[rng.Intn(len(members))]
		newcomer := h.fx.User("member", testutil.ReferredBy(referrer.ID))
		h.allocate(t, newcomer.ID, referrer.ID)
		members = append(members, newcomer)
	}

	var slots []domain.PrimaryRewardPoint
	require.NoError(t, h.db.Find(&slots).Error)
	consumed := 0
	for _, slot := range slots {
		require.GreaterOrEqual(t, slot.MatchingCount, 0)
		require.LessOrEqual(t, slot.MatchingCount, domain.MaxMatchingCount)
		consumed += slot.MatchingCount
	}
	assert.Equal(t, int64(consumed), testutil.Count(t, h.db, &domain.PRPMatching{}),
		"every pair consumes exactly one partner slot")

	var matchings []domain.PRPMatching
	require.NoError(t, h.db.Find(&matchings).Error)
	for _, m := range matchings {
		assert.NotEqual(t, m.MatchingUser1, m.MatchingUser2)
	}
}

func TestRecordSpotReward_AppendsWithoutDedup(t *testing.T) {
	h := newHarness(t)
	referrer := h.fx.User("referrer")
	referral := h.fx.User("referral")
	req := domain.RecordSpotRewardRequest{ReferrerID: referrer.ID.String(), NewReferralID: referral.ID.String()}

	_, err := h.svc.RecordSpotReward(context.Background(), req)
	require.NoError(t, err)
	_, err = h.svc.RecordSpotReward(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(2), testutil.Count(t, h.db, &domain.SpotRewardPoint{}))

	_, err = h.svc.RecordSpotReward(context.Background(), domain.RecordSpotRewardRequest{
		ReferrerID:    "77",
		NewReferralID: referral.ID.String(),
	})
	require.ErrorIs(t, err, domain.ErrReferenceNotFound)
}

func TestAttachReferral(t *testing.T) {
	h := newHarness(t)
	referrer := h.fx.User("referrer", testutil.Mobile("9876543210"))
	user := h.fx.User("user")

	spot, err := h.svc.AttachReferral(context.Background(), domain.AttachReferralRequest{
		UserID:         user.ID,
		ReferralMobile: "76543",
	})
	require.NoError(t, err)
	assert.Equal(t, referrer.ID, spot.EligibleUser)
	assert.Equal(t, user.ID, spot.Referral)

	var stored referraldomain.User
	require.NoError(t, h.db.First(&stored, "id = ?", user.ID).Error)
	require.NotNil(t, stored.ReferralID)
	assert.Equal(t, referrer.ID, *stored.ReferralID)
	assert.True(t, stored.IsUpdated)

	_, err = h.svc.AttachReferral(context.Background(), domain.AttachReferralRequest{
		UserID:         user.ID,
		ReferralMobile: "76543",
	})
	require.ErrorIs(t, err, domain.ErrReferralAlreadySet)
}

func TestAttachReferral_UnknownMobile(t *testing.T) {
	h := newHarness(t)
	user := h.fx.User("user")

	_, err := h.svc.AttachReferral(context.Background(), domain.AttachReferralRequest{
		UserID:         user.ID,
		ReferralMobile: "1111",
	})
	require.ErrorIs(t, err, domain.ErrReferenceNotFound)
	assert.Equal(t, int64(0), testutil.Count(t, h.db, &domain.SpotRewardPoint{}))
}

func TestOnOrderPaid_AllocatesOnce(t *testing.T) {
	h := newHarness(t)
	root := h.fx.User("root")
	buyer := h.fx.User("buyer", testutil.ReferredBy(root.ID))

	res, err := h.svc.OnOrderPaid(context.Background(), buyer.ID)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, buyer.ID, res.PRP.NewUser)

	res, err = h.svc.OnOrderPaid(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, int64(1), testutil.Count(t, h.db, &domain.PrimaryRewardPoint{}))

	var stored referraldomain.User
	require.NoError(t, h.db.First(&stored, "id = ?", buyer.ID).Error)
	assert.True(t, stored.OrderComplete)
	assert.False(t, stored.IsFree)
}

func TestOnOrderPaid_WithoutReferrerOnlyFlipsFlags(t *testing.T) {
	h := newHarness(t)
	buyer := h.fx.User("buyer")

	res, err := h.svc.OnOrderPaid(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, int64(0), testutil.Count(t, h.db, &domain.PrimaryRewardPoint{}))

	var stored referraldomain.User
	require.NoError(t, h.db.First(&stored, "id = ?", buyer.ID).Error)
	assert.True(t, stored.OrderComplete)
}

func TestMatchingReport(t *testing.T) {
	h := newHarness(t)
	h.fx.StandardConfig()
	root := h.fx.User("root")
	a := h.fx.User("a", testutil.ReferredBy(root.ID))
	b := h.fx.User("b", testutil.ReferredBy(root.ID))
	h.allocate(t, a.ID, root.ID)
	h.allocate(t, b.ID, root.ID)

	report, err := h.svc.MatchingReport(context.Background(), root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.EligibleTeams)
	assert.Equal(t, "2000", report.TotalRewards.String())
}

func TestMatchingReport_MissingConfiguration(t *testing.T) {
	h := newHarness(t)
	root := h.fx.User("root")

	_, err := h.svc.MatchingReport(context.Background(), root.ID)
	require.Error(t, err)
}
