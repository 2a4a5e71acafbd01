package domain

import (
	"github.com/shopspring/decimal"
	rewardconfigdomain "github.com/smallbiznis/rewardzway/internal/rewardconfig/domain"
)

const moneyPlaces = 2

// Financials are the deductions derived from a gross reward amount.
type Financials struct {
	Gross      decimal.Decimal `json:"gross"`
	TDS        decimal.Decimal `json:"tds"`
	Rental     decimal.Decimal `json:"rental"`
	Net        decimal.Decimal `json:"net"`
	Repurchase decimal.Decimal `json:"repurchase"`
	Final      decimal.Decimal `json:"final"`
}

// Derive computes payout financials from reward subtotals. Null subtotals
// are skipped; when all are null there is nothing to pay. Each deduction is
// rounded to cents before it is subtracted so that
// net = gross - tds - rental and final = net - repurchase hold exactly.
func Derive(subtotals []decimal.NullDecimal, rates rewardconfigdomain.PayoutRates) (Financials, error) {
	gross := decimal.Zero
	present := false
	for _, subtotal := range subtotals {
		if !subtotal.Valid {
			continue
		}
		present = true
		gross = gross.Add(subtotal.Decimal)
	}
	if !present {
		return Financials{}, ErrNothingToPay
	}

	gross = gross.RoundBank(moneyPlaces)
	tds := gross.Mul(rates.TDS).RoundBank(moneyPlaces)
	rental := gross.Mul(rates.RTL).RoundBank(moneyPlaces)
	net := gross.Sub(tds.Add(rental))
	repurchase := net.Mul(rates.RPS).RoundBank(moneyPlaces)

	return Financials{
		Gross:      gross,
		TDS:        tds,
		Rental:     rental,
		Net:        net,
		Repurchase: repurchase,
		Final:      net.Sub(repurchase),
	}, nil
}

// Subtotal multiplies a count by a unit amount.
func Subtotal(count int64, unit decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(unit.Mul(decimal.NewFromInt(count)))
}
