package models

import "github.com/shopspring/decimal"

// PortionSize represents the size variant of a portion
type PortionSize string

const (
	PortionWhole PortionSize = "WHOLE"
	PortionMini  PortionSize = "MINI"
	PortionSlice PortionSize = "SLICE"
)

// IsValid checks if the portion size is valid
func (s PortionSize) IsValid() bool {
	switch s {
	case PortionWhole, PortionMini, PortionSlice:
		return true
	default:
		return false
	}
}

var sizeMultipliers = map[PortionSize]decimal.Decimal{
	PortionWhole: decimal.NewFromInt(1),
	PortionMini:  decimal.RequireFromString("0.5"),
	PortionSlice: decimal.RequireFromString("0.15"),
}

// Multiplier returns the fraction of the product base price this size sells
// for. Unknown sizes fall back to the whole-portion multiplier.
func (s PortionSize) Multiplier() decimal.Decimal {
	if m, ok := sizeMultipliers[s]; ok {
		return m
	}
	return sizeMultipliers[PortionWhole]
}

// charmIncrement is the rounding increment for portion resale prices.
// At one cent the charm rule reduces to a plain floor, which keeps prices
// like 19.99 * 0.5 at 9.99 instead of 10.00.
var charmIncrement = decimal.RequireFromString("0.01")

var oneCent = decimal.RequireFromString("0.01")

// CharmPrice floors value to the given increment and bumps it to the maximal
// cent digit below the next increment: floor_to_increment(v) + (increment - 0.01).
// Sellers round portion prices down, never up.
func CharmPrice(value, increment decimal.Decimal) decimal.Decimal {
	floored := value.Div(increment).Floor().Mul(increment)
	return floored.Add(increment.Sub(oneCent))
}

// PortionPrice derives a portion's resale price from the product base price.
// It is recomputed only when the catalog creates or reprices portions, never
// by the order flow.
func PortionPrice(basePrice decimal.Decimal, size PortionSize) decimal.Decimal {
	return CharmPrice(basePrice.Mul(size.Multiplier()), charmIncrement)
}

// LineTotal computes a cart line's price: portion price times quantity,
// rounded up to the next cent. Quantity scaling never under-charges.
func LineTotal(portionPrice decimal.Decimal, quantity int) decimal.Decimal {
	return portionPrice.Mul(decimal.NewFromInt(int64(quantity))).RoundCeil(2)
}
