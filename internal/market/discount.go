package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultDiscountPrefix = "tradepost.discount."

var (
	maxDiscount = decimal.NewFromFloat(0.90)
	minPrice    = decimal.NewFromFloat(0.01)
	hundred     = decimal.NewFromInt(100)
)

// TagHolder is the part of an actor the discount rules look at.
type TagHolder interface {
	HasTag(tag string) bool
}

type NamedTier struct {
	Name string
	Rate decimal.Decimal
}

// DefaultNamedTiers are the vip/mvp/premium rates used when none are configured.
func DefaultNamedTiers() []NamedTier {
	return []NamedTier{
		{Name: "vip", Rate: decimal.NewFromFloat(0.15)},
		{Name: "mvp", Rate: decimal.NewFromFloat(0.25)},
		{Name: "premium", Rate: decimal.NewFromFloat(0.35)},
	}
}

// Discounts derives a discount rate from an actor's capability tags.
// Numeric tiers (<prefix>100, <prefix>95, ... <prefix>5) are checked in
// descending order and the first held one wins; named tiers are checked
// independently and the larger rate is used, capped at 90%.
type Discounts struct {
	prefix string
	named  []NamedTier
}

func NewDiscounts(prefix string, named []NamedTier) *Discounts {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultDiscountPrefix
	}
	if named == nil {
		named = DefaultNamedTiers()
	}
	tiers := make([]NamedTier, 0, len(named))
	for _, t := range named {
		name := strings.ToLower(strings.TrimSpace(t.Name))
		if name == "" || !t.Rate.IsPositive() {
			continue
		}
		tiers = append(tiers, NamedTier{Name: name, Rate: t.Rate})
	}
	return &Discounts{prefix: prefix, named: tiers}
}

func (d *Discounts) Prefix() string { return d.prefix }

func (d *Discounts) Rate(actor TagHolder) decimal.Decimal {
	if d == nil || actor == nil {
		return decimal.Zero
	}
	rate := decimal.Zero
	for pct := 100; pct >= 5; pct -= 5 {
		if actor.HasTag(fmt.Sprintf("%s%d", d.prefix, pct)) {
			rate = decimal.NewFromInt(int64(pct)).Div(hundred)
			break
		}
	}
	for _, t := range d.named {
		if actor.HasTag(d.prefix+t.Name) && t.Rate.GreaterThan(rate) {
			rate = t.Rate
		}
	}
	return decimal.Min(rate, maxDiscount)
}

func (d *Discounts) HasDiscount(actor TagHolder) bool {
	return d.Rate(actor).IsPositive()
}

// ApplyDiscount never discounts below 0.01.
func ApplyDiscount(price, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return price
	}
	return decimal.Max(minPrice, price.Mul(one.Sub(rate)))
}

// DiscountLabel renders a rate as "-20%", or "" when there is no discount.
func DiscountLabel(rate decimal.Decimal) string {
	if !rate.IsPositive() {
		return ""
	}
	return "-" + rate.Mul(hundred).Round(0).String() + "%"
}
