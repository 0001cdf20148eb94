package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscountRate(t *testing.T) {
	d := NewDiscounts("", nil)
	tests := []struct {
		name string
		tags []string
		want string
	}{
		{name: "no tags", want: "0"},
		{name: "numeric tier", tags: []string{"tradepost.discount.20"}, want: "0.2"},
		{name: "highest numeric tier wins", tags: []string{"tradepost.discount.10", "tradepost.discount.45"}, want: "0.45"},
		{name: "numeric beats named", tags: []string{"tradepost.discount.20", "tradepost.discount.vip"}, want: "0.2"},
		{name: "named beats numeric", tags: []string{"tradepost.discount.5", "tradepost.discount.premium"}, want: "0.35"},
		{name: "capped", tags: []string{"tradepost.discount.100"}, want: "0.9"},
		{name: "off-grid numeric ignored", tags: []string{"tradepost.discount.17"}, want: "0"},
		{name: "other prefix ignored", tags: []string{"shop.discount.50"}, want: "0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := d.Rate(newTestActor("a", tc.tags...))
			assert.True(t, got.Equal(dec(tc.want)), "rate = %s, want %s", got, tc.want)
		})
	}
}

func TestDiscountCustomPrefixAndTiers(t *testing.T) {
	d := NewDiscounts("vip.", []NamedTier{{Name: "Gold", Rate: dec("0.5")}, {Name: "broken", Rate: dec("-1")}})
	assert.Equal(t, "vip.", d.Prefix())
	assert.True(t, d.Rate(newTestActor("a", "vip.gold")).Equal(dec("0.5")))
	assert.False(t, d.HasDiscount(newTestActor("a", "vip.broken")))
	assert.False(t, d.HasDiscount(newTestActor("a", "vip.premium")))
}

func TestApplyDiscount(t *testing.T) {
	assert.True(t, ApplyDiscount(dec("100"), dec("0.2")).Equal(dec("80")))
	assert.True(t, ApplyDiscount(dec("100"), dec("0")).Equal(dec("100")))
	assert.True(t, ApplyDiscount(dec("100"), dec("-0.5")).Equal(dec("100")))
	assert.True(t, ApplyDiscount(dec("0.01"), dec("0.9")).Equal(dec("0.01")))
	assert.True(t, ApplyDiscount(dec("0.05"), dec("0.9")).Equal(dec("0.01")))
}

func TestDiscountLabel(t *testing.T) {
	assert.Equal(t, "-20%", DiscountLabel(dec("0.2")))
	assert.Equal(t, "-15%", DiscountLabel(dec("0.15")))
	assert.Equal(t, "", DiscountLabel(dec("0")))
}
