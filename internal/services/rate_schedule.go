package services

import (
	"github.com/shopspring/decimal"

	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

// rateTier maps every price >= floor to either price*percent or a flat amount
type rateTier struct {
	floor   decimal.Decimal
	percent decimal.Decimal
	flat    decimal.Decimal
	isFlat  bool
	label   string
}

func percentTier(floor, percent, label string) rateTier {
	return rateTier{
		floor:   decimal.RequireFromString(floor),
		percent: decimal.RequireFromString(percent),
		label:   label,
	}
}

func flatTier(floor, amount, label string) rateTier {
	return rateTier{
		floor:  decimal.RequireFromString(floor),
		flat:   decimal.RequireFromString(amount),
		isFlat: true,
		label:  label,
	}
}

// Tiers are checked top-down; the first floor the price reaches wins.
// 15.00 deliberately falls into the 8.00 tier: the next tier starts at 15.01.
var (
	maximumTiers = []rateTier{
		percentTier("50.00", "0.75", "75%"),
		percentTier("25.00", "0.70", "70%"),
		percentTier("15.01", "0.65", "65%"),
		percentTier("8.00", "0.50", "50%"),
		percentTier("5.00", "0.35", "35%"),
		percentTier("3.01", "0.25", "25%"),
		flatTier("2.00", "0.50", "flat 0.50"),
		flatTier("0.01", "0.01", "flat 0.01"),
	}

	suggestedTiers = []rateTier{
		percentTier("50.00", "0.75", "75%"),
		percentTier("25.00", "0.50", "50%"),
		percentTier("15.01", "0.35", "35%"),
		percentTier("8.00", "0.40", "40%"),
		percentTier("5.00", "0.35", "35%"),
		percentTier("3.01", "0.25", "25%"),
		flatTier("2.00", "0.10", "flat 0.10"),
		flatTier("0.01", "0.01", "flat 0.01"),
	}
)

// Quote is a full valuation of one unit price
type Quote struct {
	Price          models.Money `json:"price"`
	SuggestedValue models.Money `json:"suggested_value"`
	MaximumValue   models.Money `json:"maximum_value"`
	SuggestedTier  string       `json:"suggested_tier"`
	MaximumTier    string       `json:"maximum_tier"`
}

// RateSchedule converts a market price into trade-in values. It is pure and
// safe for concurrent use.
type RateSchedule struct {
	suggested []rateTier
	maximum   []rateTier
}

// NewRateSchedule returns the store's tier table
func NewRateSchedule() *RateSchedule {
	return &RateSchedule{
		suggested: suggestedTiers,
		maximum:   maximumTiers,
	}
}

// SuggestedValue is the trade-in value staff should offer
func (r *RateSchedule) SuggestedValue(price models.Money) models.Money {
	v, _ := apply(r.suggested, price)
	return v
}

// MaximumValue is the highest trade-in value staff may offer
func (r *RateSchedule) MaximumValue(price models.Money) models.Money {
	v, _ := apply(r.maximum, price)
	return v
}

// Quote returns both values together with the tier labels applied
func (r *RateSchedule) Quote(price models.Money) Quote {
	suggested, sTier := apply(r.suggested, price)
	maximum, mTier := apply(r.maximum, price)
	return Quote{
		Price:          models.NewMoney(price.Decimal),
		SuggestedValue: suggested,
		MaximumValue:   maximum,
		SuggestedTier:  sTier,
		MaximumTier:    mTier,
	}
}

func apply(tiers []rateTier, price models.Money) (models.Money, string) {
	for _, t := range tiers {
		if price.Decimal.LessThan(t.floor) {
			continue
		}
		if t.isFlat {
			return models.NewMoney(t.flat), t.label
		}
		return models.NewMoney(price.Decimal.Mul(t.percent)), t.label
	}
	return models.Zero, "none"
}
