package commerce

import (
	"context"
	"net/http"
	"net/url"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

type productDTO struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url"`
	Sizes    []string        `json:"sizes"`
}

func (p productDTO) toModel() model.ProductSummary {
	return model.ProductSummary{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
		Sizes:     p.Sizes,
	}
}

// 商品取得は匿名で呼ぶ
func (a *ProductAPI) FindByID(ctx context.Context, productID string) (model.ProductSummary, error) {
	var out productDTO
	if err := a.do(ctx, http.MethodGet, "/product/"+url.PathEscape(productID), model.Identity{}, nil, &out); err != nil {
		return model.ProductSummary{}, err
	}
	return out.toModel(), nil
}

var _ repo.ProductRepository = (*ProductAPI)(nil)
