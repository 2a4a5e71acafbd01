package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	rewardconfigdomain "github.com/smallbiznis/rewardzway/internal/rewardconfig/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rates() rewardconfigdomain.PayoutRates {
	return rewardconfigdomain.PayoutRates{
		TDS: decimal.RequireFromString("0.0327"),
		RTL: decimal.RequireFromString("0.0673"),
		RPS: decimal.RequireFromString("0.10"),
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestDerive(t *testing.T) {
	f, err := Derive([]decimal.NullDecimal{
		Subtotal(2, decimal.NewFromInt(2000)),
		Subtotal(1, decimal.NewFromInt(1000)),
		Subtotal(3, decimal.NewFromInt(500)),
	}, rates())
	require.NoError(t, err)

	assertDecimal(t, "6500", f.Gross)
	assertDecimal(t, "212.55", f.TDS)
	assertDecimal(t, "437.45", f.Rental)
	assertDecimal(t, "5850.00", f.Net)
	assertDecimal(t, "585.00", f.Repurchase)
	assertDecimal(t, "5265.00", f.Final)
}

func TestDerive_SkipsNullSubtotals(t *testing.T) {
	f, err := Derive([]decimal.NullDecimal{
		{},
		Subtotal(1, decimal.NewFromInt(1000)),
		{},
	}, rates())
	require.NoError(t, err)
	assertDecimal(t, "1000", f.Gross)
}

func TestDerive_AllNull(t *testing.T) {
	_, err := Derive([]decimal.NullDecimal{{}, {}, {}}, rates())
	require.ErrorIs(t, err, ErrNothingToPay)
}

func TestDerive_ChainHoldsExactly(t *testing.T) {
	for _, gross := range []string{"0", "0.01", "333.33", "2000", "12345.67", "99999.99"} {
		f, err := Derive([]decimal.NullDecimal{decimal.NewNullDecimal(decimal.RequireFromString(gross))}, rates())
		require.NoError(t, err)
		assert.True(t, f.Net.Equal(f.Gross.Sub(f.TDS).Sub(f.Rental)), gross)
		assert.True(t, f.Final.Equal(f.Net.Sub(f.Repurchase)), gross)
	}
}

func TestPayoutApply(t *testing.T) {
	var p Payout
	f := Financials{
		Gross:      decimal.NewFromInt(100),
		TDS:        decimal.NewFromInt(3),
		Rental:     decimal.NewFromInt(7),
		Net:        decimal.NewFromInt(90),
		Repurchase: decimal.NewFromInt(9),
		Final:      decimal.NewFromInt(81),
	}
	p.Apply(f)
	assertDecimal(t, "81", p.Final)
	assertDecimal(t, "3", p.TDS)
}
