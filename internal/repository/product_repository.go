package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 商品カタログの読み取りだけを約束。
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (model.ProductSummary, error)
}
