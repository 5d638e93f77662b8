package model

import "github.com/shopspring/decimal"

// 明細に複製して持つ商品の表示用情報
type ProductSummary struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url,omitempty"`
	Sizes     []string        `json:"sizes,omitempty"`
}

// PlaceholderProduct は商品取得に失敗した時の最小限の表示情報（価格0）。
func PlaceholderProduct(productID string) ProductSummary {
	return ProductSummary{
		ProductID: productID,
		Name:      productID,
		Price:     decimal.Zero,
	}
}
