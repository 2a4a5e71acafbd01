package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Well-known configuration names.
const (
	NamePRP = "PRP" // amount per completed pair
	NameSRP = "SRP" // amount per secondary credit
	NameIRP = "IRP" // amount per spot reward
	NameTDS = "TDS" // tax deducted at source, percent
	NameRTL = "RTL" // rental deduction, percent
	NameRPS = "RPS" // repurchase deduction, percent
)

type Kind string

const (
	KindAmount Kind = "amount"
	KindRate   Kind = "rate"
	KindTier   Kind = "tier"
)

// Configuration is one admin-editable reward parameter. DecimalValue is
// always Value/100 and is maintained on write.
type Configuration struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name         string          `gorm:"column:name;type:text;not null;uniqueIndex" json:"name"`
	Kind         Kind            `gorm:"column:kind;type:text;not null" json:"kind"`
	Ordinal      int             `gorm:"column:ordinal;not null" json:"ordinal"`
	Value        decimal.Decimal `gorm:"column:value;type:numeric(12,2);not null" json:"value"`
	DecimalValue decimal.Decimal `gorm:"column:decimal_value;type:numeric(12,6);not null" json:"decimal_value"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Configuration) TableName() string { return "configurations" }

// DecimalValueOf converts a percentage as entered into a fraction.
func DecimalValueOf(value decimal.Decimal) decimal.Decimal {
	return value.Div(decimal.NewFromInt(100)).Round(6)
}

// Tier is a reward-criteria threshold, e.g. RPC1 at 10000.
type Tier struct {
	Code      string          `json:"code"`
	Ordinal   int             `json:"ordinal"`
	Threshold decimal.Decimal `json:"threshold"`
}

type UnitAmounts struct {
	PRP decimal.Decimal
	SRP decimal.Decimal
	IRP decimal.Decimal
}

// PayoutRates are fractions, not percentages.
type PayoutRates struct {
	TDS decimal.Decimal
	RTL decimal.Decimal
	RPS decimal.Decimal
}

// Snapshot is the configuration as read at the start of one operation.
type Snapshot struct {
	values map[string]Configuration
	Tiers  []Tier
}

func NewSnapshot(configs []Configuration) Snapshot {
	s := Snapshot{values: make(map[string]Configuration, len(configs))}
	for _, cfg := range configs {
		if cfg.Kind == KindTier {
			s.Tiers = append(s.Tiers, Tier{Code: cfg.Name, Ordinal: cfg.Ordinal, Threshold: cfg.Value})
			continue
		}
		s.values[cfg.Name] = cfg
	}
	sort.SliceStable(s.Tiers, func(i, j int) bool {
		return s.Tiers[i].Ordinal < s.Tiers[j].Ordinal
	})
	return s
}

func (s Snapshot) lookup(name string) (Configuration, error) {
	cfg, ok := s.values[name]
	if !ok {
		return Configuration{}, fmt.Errorf("%w: %s", ErrConfigurationMissing, name)
	}
	return cfg, nil
}

// Amount returns the configured value of name as entered.
func (s Snapshot) Amount(name string) (decimal.Decimal, error) {
	cfg, err := s.lookup(name)
	if err != nil {
		return decimal.Zero, err
	}
	return cfg.Value, nil
}

// Rate returns the configured fraction of name.
func (s Snapshot) Rate(name string) (decimal.Decimal, error) {
	cfg, err := s.lookup(name)
	if err != nil {
		return decimal.Zero, err
	}
	return cfg.DecimalValue, nil
}

func (s Snapshot) UnitAmounts() (UnitAmounts, error) {
	var (
		out UnitAmounts
		err error
	)
	if out.PRP, err = s.Amount(NamePRP); err != nil {
		return UnitAmounts{}, err
	}
	if out.SRP, err = s.Amount(NameSRP); err != nil {
		return UnitAmounts{}, err
	}
	if out.IRP, err = s.Amount(NameIRP); err != nil {
		return UnitAmounts{}, err
	}
	return out, nil
}

func (s Snapshot) PayoutRates() (PayoutRates, error) {
	var (
		out PayoutRates
		err error
	)
	if out.TDS, err = s.Rate(NameTDS); err != nil {
		return PayoutRates{}, err
	}
	if out.RTL, err = s.Rate(NameRTL); err != nil {
		return PayoutRates{}, err
	}
	if out.RPS, err = s.Rate(NameRPS); err != nil {
		return PayoutRates{}, err
	}
	return out, nil
}

// Tier returns the tier with the given code.
func (s Snapshot) Tier(code string) (Tier, bool) {
	for _, tier := range s.Tiers {
		if tier.Code == code {
			return tier, true
		}
	}
	return Tier{}, false
}
