package commerce

import (
	"context"
	"net/http"
	"net/url"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

type cartLineDTO struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Product   productDTO      `json:"product"`
}

type cartDTO struct {
	Lines []cartLineDTO `json:"lines"`
}

type addLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
}

type updateLineRequest struct {
	Quantity *int    `json:"quantity,omitempty"`
	Size     *string `json:"size,omitempty"`
}

// 合計・件数はサーバー値を信用せず Normalize で再計算する
func (d cartDTO) toModel() model.CartAggregate {
	c := model.CartAggregate{
		Mode:  model.CartModeAuthenticated,
		Lines: make([]model.CartLine, 0, len(d.Lines)),
	}
	for _, l := range d.Lines {
		summary := l.Product.toModel()
		if summary.ProductID == "" {
			summary.ProductID = l.ProductID
		}
		c.Lines = append(c.Lines, model.CartLine{
			ID:        l.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Size:      l.Size,
			UnitPrice: l.UnitPrice,
			Product:   summary,
		})
	}
	c.Normalize()
	return c
}

func (a *CartAPI) GetCart(ctx context.Context, who model.Identity) (model.CartAggregate, error) {
	var out cartDTO
	if err := a.do(ctx, http.MethodGet, "/cart", who, nil, &out); err != nil {
		return model.CartAggregate{}, err
	}
	return out.toModel(), nil
}

func (a *CartAPI) AddLine(ctx context.Context, who model.Identity, productID string, qty int, size string) (model.CartAggregate, error) {
	var out cartDTO
	in := addLineRequest{ProductID: productID, Quantity: qty, Size: size}
	if err := a.do(ctx, http.MethodPost, "/cart/lines", who, in, &out); err != nil {
		return model.CartAggregate{}, err
	}
	return out.toModel(), nil
}

func (a *CartAPI) UpdateLine(ctx context.Context, who model.Identity, lineID string, patch repo.LinePatch) (model.CartAggregate, error) {
	var out cartDTO
	in := updateLineRequest{Quantity: patch.Quantity, Size: patch.Size}
	if err := a.do(ctx, http.MethodPut, "/cart/lines/"+url.PathEscape(lineID), who, in, &out); err != nil {
		return model.CartAggregate{}, err
	}
	return out.toModel(), nil
}

func (a *CartAPI) DeleteLine(ctx context.Context, who model.Identity, lineID string) (model.CartAggregate, error) {
	var out cartDTO
	if err := a.do(ctx, http.MethodDelete, "/cart/lines/"+url.PathEscape(lineID), who, nil, &out); err != nil {
		return model.CartAggregate{}, err
	}
	return out.toModel(), nil
}

func (a *CartAPI) Clear(ctx context.Context, who model.Identity) (model.CartAggregate, error) {
	var out cartDTO
	if err := a.do(ctx, http.MethodDelete, "/cart", who, nil, &out); err != nil {
		return model.CartAggregate{}, err
	}
	return out.toModel(), nil
}

var _ repo.CartRepository = (*CartAPI)(nil)
