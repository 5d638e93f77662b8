package commerce

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// POST order の本文。合計はサーバーが再計算するので送らない。
// 明細の cart_line_id は送り、注文の戻り値から消す明細を決める。
type orderRequestDTO struct {
	SelectedLines []model.OrderLine   `json:"selected_lines"`
	ShippingInfo  model.ShippingInfo  `json:"shipping_info"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
}

type payResponseDTO struct {
	RedirectURL string `json:"redirect_url"`
}

var ErrEmptyRedirect = errors.New("commerce api: empty payment redirect url")

func (a *OrderAPI) Create(ctx context.Context, who model.Identity, req model.OrderRequest) (model.OrderDescriptor, error) {
	in := orderRequestDTO{
		SelectedLines: req.SelectedLines,
		ShippingInfo:  req.ShippingInfo,
		PaymentMethod: req.PaymentMethod,
	}
	var out model.OrderDescriptor
	err := a.do(ctx, http.MethodPost, "/order", who, in, &out,
		withHeader(headerIdempotencyKey, req.IdempotencyKey),
	)
	if err != nil {
		return model.OrderDescriptor{}, err
	}
	// レスポンスに明細が無い場合は送った明細を使う
	if len(out.Lines) == 0 {
		out.Lines = req.SelectedLines
	}
	if out.PaymentMethod == "" {
		out.PaymentMethod = req.PaymentMethod
	}
	return out, nil
}

func (a *OrderAPI) FindByID(ctx context.Context, who model.Identity, orderID string) (model.OrderDescriptor, error) {
	var out model.OrderDescriptor
	if err := a.do(ctx, http.MethodGet, "/order/"+url.PathEscape(orderID), who, nil, &out); err != nil {
		return model.OrderDescriptor{}, err
	}
	return out, nil
}

func (a *OrderAPI) Pay(ctx context.Context, who model.Identity, orderID string) (string, error) {
	var out payResponseDTO
	err := a.do(ctx, http.MethodPost, "/order/"+url.PathEscape(orderID)+"/pay", who, nil, &out,
		withHeader(headerCorrelation, who.CorrelationToken),
	)
	if err != nil {
		return "", err
	}
	if out.RedirectURL == "" {
		return "", ErrEmptyRedirect
	}
	return out.RedirectURL, nil
}
var _ repo.OrderRepository = (*OrderAPI)(nil)
