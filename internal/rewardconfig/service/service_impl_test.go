package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/rewardzway/internal/clock"
	"github.com/smallbiznis/rewardzway/internal/rewardconfig/domain"
	"github.com/smallbiznis/rewardzway/internal/rewardconfig/repository"
	"github.com/smallbiznis/rewardzway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := clock.NewFakeClock(time.Date(2024, time.March, 18, 10, 0, 0, 0, time.UTC))
	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.Node(t),
		Clock: clk,
		Repo:  repository.Provide(),
	}), clk
}

func TestUpsert_CreatesAndUpdates(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	created, err := svc.Upsert(ctx, domain.UpsertRequest{Name: "tds", Value: "3.27"})
	require.NoError(t, err)
	assert.Equal(t, domain.NameTDS, created.Name)
	assert.Equal(t, domain.KindRate, created.Kind)
	assert.Equal(t, "0.0327", created.DecimalValue.String())

	clk.Advance(time.Hour)
	updated, err := svc.Upsert(ctx, domain.UpsertRequest{Name: "TDS", Kind: "rate", Value: "5"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "0.05", updated.DecimalValue.String())

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsert_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  domain.UpsertRequest
		err  error
	}{
		{"bad name", domain.UpsertRequest{Name: "9lives", Kind: "amount", Value: "1"}, domain.ErrInvalidName},
		{"unknown kind", domain.UpsertRequest{Name: "BONUS", Kind: "bonus", Value: "1"}, domain.ErrInvalidKind},
		{"missing kind for custom name", domain.UpsertRequest{Name: "BONUS", Value: "1"}, domain.ErrInvalidKind},
		{"pinned kind mismatch", domain.UpsertRequest{Name: "PRP", Kind: "rate", Value: "1"}, domain.ErrInvalidKind},
		{"negative", domain.UpsertRequest{Name: "PRP", Value: "-1"}, domain.ErrInvalidValue},
		{"not a number", domain.UpsertRequest{Name: "PRP", Value: "lots"}, domain.ErrInvalidValue},
		{"rate over 100", domain.UpsertRequest{Name: "RTL", Value: "101"}, domain.ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upsert(ctx, tt.req)
			require.ErrorIs(t, err, tt.err)
		})
	}

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCurrent_ReflectsEdits(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, domain.UpsertRequest{Name: "PRP", Value: "2000"})
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, domain.UpsertRequest{Name: "RPC1", Kind: "tier", Ordinal: 1, Value: "10000"})
	require.NoError(t, err)

	before, err := svc.Current(ctx)
	require.NoError(t, err)

	_, err = svc.Upsert(ctx, domain.UpsertRequest{Name: "PRP", Value: "2500"})
	require.NoError(t, err)

	after, err := svc.Current(ctx)
	require.NoError(t, err)

	prev, err := before.Amount(domain.NamePRP)
	require.NoError(t, err)
	next, err := after.Amount(domain.NamePRP)
	require.NoError(t, err)
	assert.Equal(t, "2000", prev.String())
	assert.Equal(t, "2500", next.String())
	require.Len(t, after.Tiers, 1)
	assert.Equal(t, "RPC1", after.Tiers[0].Code)
}
