package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		name     string
		state    PricingState
		wantBuy  string
		wantSell string
	}{
		{
			name:     "static pricing ignores stock",
			state:    PricingState{BaseBuy: dec("100"), BaseSell: dec("50"), MinPrice: dec("1"), MaxPrice: dec("1000"), Stock: 0, MaxStock: 1000},
			wantBuy:  "100",
			wantSell: "50",
		},
		{
			name:     "full stock is base price",
			state:    PricingState{BaseBuy: dec("100"), BaseSell: dec("50"), MinPrice: dec("1"), MaxPrice: dec("1000"), Stock: 1000, MaxStock: 1000, Dynamic: true},
			wantBuy:  "100",
			wantSell: "50",
		},
		{
			name:     "one unit short",
			state:    PricingState{BaseBuy: dec("100"), BaseSell: dec("50"), MinPrice: dec("1"), MaxPrice: dec("1000"), Stock: 999, MaxStock: 1000, Dynamic: true},
			wantBuy:  "100.1",
			wantSell: "50.05",
		},
		{
			name:     "empty stock doubles",
			state:    PricingState{BaseBuy: dec("100"), BaseSell: dec("50"), MinPrice: dec("1"), MaxPrice: dec("1000"), Stock: 0, MaxStock: 1000, Dynamic: true},
			wantBuy:  "200",
			wantSell: "100",
		},
		{
			name:     "clamped to max",
			state:    PricingState{BaseBuy: dec("100"), BaseSell: dec("50"), MinPrice: dec("1"), MaxPrice: dec("150"), Stock: 0, MaxStock: 10, Dynamic: true},
			wantBuy:  "150",
			wantSell: "100",
		},
		{
			name:     "sell floor is half of min",
			state:    PricingState{BaseBuy: dec("10"), BaseSell: dec("1"), MinPrice: dec("20"), MaxPrice: dec("100"), Stock: 10, MaxStock: 10, Dynamic: true},
			wantBuy:  "20",
			wantSell: "10",
		},
		{
			name:     "inverted bounds let the lower bound win",
			state:    PricingState{BaseBuy: dec("100"), BaseSell: dec("50"), MinPrice: dec("300"), MaxPrice: dec("200"), Stock: 10, MaxStock: 10, Dynamic: true},
			wantBuy:  "300",
			wantSell: "150",
		},
		{
			name:     "zero max stock",
			state:    PricingState{BaseBuy: dec("10"), BaseSell: dec("5"), MinPrice: dec("0"), MaxPrice: dec("100"), Stock: 0, MaxStock: 0, Dynamic: true},
			wantBuy:  "10",
			wantSell: "5",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Quote(tc.state)
			assert.True(t, got.Buy.Equal(dec(tc.wantBuy)), "buy = %s, want %s", got.Buy, tc.wantBuy)
			assert.True(t, got.Sell.Equal(dec(tc.wantSell)), "sell = %s, want %s", got.Sell, tc.wantSell)
		})
	}
}

func TestQuoteStaysInBounds(t *testing.T) {
	for stock := int64(0); stock <= 50; stock++ {
		got := Quote(PricingState{
			BaseBuy: dec("7"), BaseSell: dec("3"), MinPrice: dec("5"), MaxPrice: dec("12"),
			Stock: stock, MaxStock: 50, Dynamic: true,
		})
		assert.True(t, got.Buy.GreaterThanOrEqual(dec("5")) && got.Buy.LessThanOrEqual(dec("12")), "buy %s", got.Buy)
		assert.True(t, got.Sell.GreaterThanOrEqual(dec("2.5")) && got.Sell.LessThanOrEqual(dec("12")), "sell %s", got.Sell)
	}
}
