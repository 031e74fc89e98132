package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProduct_DiscountedPrice(t *testing.T) {
	tests := []struct {
		name  string
		price string
		rate  int
		want  string
	}{
		{"thirty percent", "18000", 30, "12600"},
		{"no discount", "18000", 0, "18000"},
		{"truncates fraction", "12345", 35, "8024"},
		{"truncates cents", "999.99", 10, "899"},
		{"full discount", "5000", 100, "0"},
		{"invalid rate ignored", "5000", 120, "5000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{OriginalPrice: decimal.RequireFromString(tt.price), DiscountRate: tt.rate}
			assert.True(t, p.DiscountedPrice().Equal(decimal.RequireFromString(tt.want)),
				"got %s want %s", p.DiscountedPrice(), tt.want)
		})
	}
}

func TestProduct_UnitPriceFollowsSaleState(t *testing.T) {
	p := Product{OriginalPrice: decimal.NewFromInt(18000), DiscountRate: 30}

	assert.Equal(t, "12600", p.UnitPrice(true).String())
	assert.Equal(t, "18000", p.UnitPrice(false).String())
}

func TestProduct_ViewHidesDiscountOutsideSale(t *testing.T) {
	p := Product{ID: 1, Name: "tint", OriginalPrice: decimal.NewFromInt(18000), DiscountRate: 30, Stock: 100}

	off := p.View(false)
	assert.Equal(t, 0, off.DiscountRate)
	assert.Equal(t, "18000", off.DiscountedPrice.String())
	assert.False(t, off.SaleActive)

	on := p.View(true)
	assert.Equal(t, 30, on.DiscountRate)
	assert.Equal(t, "12600", on.DiscountedPrice.String())
	assert.True(t, on.SaleActive)
}
