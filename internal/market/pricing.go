package market

import "github.com/shopspring/decimal"

var (
	one            = decimal.NewFromInt(1)
	sellFloorRatio = decimal.NewFromFloat(0.5)
)

// PricingState is everything the price of an item depends on.
type PricingState struct {
	BaseBuy  decimal.Decimal
	BaseSell decimal.Decimal
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal
	Stock    int64
	MaxStock int64
	Dynamic  bool
}

type Prices struct {
	Buy        decimal.Decimal `json:"buy"`
	Sell       decimal.Decimal `json:"sell"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// Quote computes live prices. Scarcity raises both prices linearly, up to
// double the base when stock is empty:
//
//	multiplier = 1 + (max - current) / max(1, max)
//
// Buy is clamped into [min, max] and sell into [min*0.5, max]. When the
// bounds are misconfigured the lower bound wins.
func Quote(s PricingState) Prices {
	if !s.Dynamic {
		return Prices{Buy: s.BaseBuy, Sell: s.BaseSell, Multiplier: one}
	}
	denom := s.MaxStock
	if denom < 1 {
		denom = 1
	}
	missing := decimal.NewFromInt(s.MaxStock - s.Stock)
	multiplier := one.Add(missing.Div(decimal.NewFromInt(denom)))
	return Prices{
		Buy:        clampPrice(s.BaseBuy.Mul(multiplier), s.MinPrice, s.MaxPrice),
		Sell:       clampPrice(s.BaseSell.Mul(multiplier), s.MinPrice.Mul(sellFloorRatio), s.MaxPrice),
		Multiplier: multiplier,
	}
}

func clampPrice(v, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Max(lo, decimal.Min(hi, v))
}
