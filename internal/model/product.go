package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item with a fixed inventory.  Prices are stored as
// DECIMAL(10,2) and handled as decimal values end to end so that discount
// arithmetic never goes through floating point.
//
// Fields:
//
//	ID            – primary key identifier.
//	Name          – display name.
//	Description   – free text description.
//	OriginalPrice – list price before any sale discount.
//	DiscountRate  – percentage (0-100) applied while the sale is active.
//	Stock         – remaining units; never negative.
//	ImageURL      – optional product image.
//	Category      – catalog category.
type Product struct {
	ID            uint64          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	DiscountRate  int             `json:"discount_rate"`
	Stock         int             `json:"stock"`
	ImageURL      string          `json:"image_url,omitempty"`
	Category      string          `json:"category"`
	CreatedAt     time.Time       `json:"-"`
	UpdatedAt     time.Time       `json:"-"`
}

var hundred = decimal.NewFromInt(100)

// DiscountedPrice returns the sale price truncated down to a whole currency
// unit.  A zero (or out of range) discount rate returns the original price.
func (p Product) DiscountedPrice() decimal.Decimal {
	if p.DiscountRate <= 0 || p.DiscountRate > 100 {
		return p.OriginalPrice
	}
	multiplier := decimal.NewFromInt(int64(100 - p.DiscountRate)).Div(hundred)
	return p.OriginalPrice.Mul(multiplier).Truncate(0)
}

// UnitPrice picks the price a buyer pays right now.
func (p Product) UnitPrice(saleActive bool) decimal.Decimal {
	if saleActive {
		return p.DiscountedPrice()
	}
	return p.OriginalPrice
}

// ProductView is the catalog representation of a product.  The discount
// fields are only populated while the sale is running.
type ProductView struct {
	ID              uint64          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	OriginalPrice   decimal.Decimal `json:"original_price"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	DiscountRate    int             `json:"discount_rate"`
	Stock           int             `json:"stock"`
	ImageURL        string          `json:"image_url,omitempty"`
	Category        string          `json:"category"`
	SaleActive      bool            `json:"is_sale_active"`
}

// View projects p for the catalog given the current sale state.
func (p Product) View(saleActive bool) ProductView {
	v := ProductView{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		OriginalPrice:   p.OriginalPrice,
		DiscountedPrice: p.UnitPrice(saleActive),
		Stock:           p.Stock,
		ImageURL:        p.ImageURL,
		Category:        p.Category,
		SaleActive:      saleActive,
	}
	if saleActive {
		v.DiscountRate = p.DiscountRate
	}
	return v
}
