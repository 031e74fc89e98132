package database

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/flash-sale/internal/model"
	"github.com/iliyamo/flash-sale/internal/repository"
)

// DemoProducts is the catalog used for local demos and load tests.
func DemoProducts() []model.Product {
	p := func(name, desc string, price int64, rate, stock int, img, category string) model.Product {
		return model.Product{
			Name:          name,
			Description:   desc,
			OriginalPrice: decimal.NewFromInt(price),
			DiscountRate:  rate,
			Stock:         stock,
			ImageURL:      "https://via.placeholder.com/300x300/" + img,
			Category:      category,
		}
	}
	return []model.Product{
		p("Glitter Lip Tint", "Moist glitter tint with a glossy finish", 18000, 30, 100, "FFB6C1/000000?text=Tint", "lip"),
		p("1025 Calming Toner", "Low-irritation weakly acidic toner", 23000, 35, 150, "87CEEB/000000?text=Toner", "skincare"),
		p("No-Sebum Mineral Powder", "Mineral powder for oil control", 12000, 25, 200, "F0E68C/000000?text=Powder", "base"),
		p("Dive-In Hyaluronic Serum", "Serum with five kinds of hyaluronic acid", 28000, 40, 80, "98FB98/000000?text=Serum", "skincare"),
		p("Kill Cover Foundation", "Long-lasting high coverage foundation", 32000, 30, 120, "DDA0DD/000000?text=Foundation", "base"),
		p("Play Color Eye Palette", "Ten shade everyday eye palette", 25000, 35, 90, "FFD700/000000?text=Palette", "eye"),
		p("Bulgarian Rose Mist", "Hydrating mist with rose water", 19000, 20, 180, "FFC0CB/000000?text=Mist", "skincare"),
		p("Safe Me Sun Cream SPF50+", "Gentle sunscreen for sensitive skin", 21000, 30, 160, "FFFACD/000000?text=Sunscreen", "suncare"),
	}
}

// SeedDemoData inserts DemoProducts when the products table is empty and
// returns the number of rows inserted.
func SeedDemoData(ctx context.Context, products *repository.ProductRepo) (int, error) {
	n, err := products.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	demo := DemoProducts()
	if err := products.CreateBulk(ctx, demo); err != nil {
		return 0, err
	}
	return len(demo), nil
}
