package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// OrderUsecase はチェックアウト画面からの注文・決済を扱う。
type OrderUsecase struct {
	sessions   *SessionRegistry
	selections *SelectionTracker
	orders     repo.OrderRepository
	ids        IDGenerator
	logger     *zap.Logger
}

func NewOrderUsecase(
	sessions *SessionRegistry,
	selections *SelectionTracker,
	orders repo.OrderRepository,
	ids IDGenerator,
	logger *zap.Logger,
) *OrderUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderUsecase{
		sessions:   sessions,
		selections: selections,
		orders:     orders,
		ids:        ids,
		logger:     logger,
	}
}

type PlaceOrderInput struct {
	Shipping       model.ShippingInfo
	PaymentMethod  model.PaymentMethod
	IdempotencyKey string
}

// PlaceOrderOutput は注文結果。外部決済なら RedirectURL へ遷移する。
type PlaceOrderOutput struct {
	Order       model.OrderDescriptor `json:"order"`
	RedirectURL string                `json:"redirect_url,omitempty"`
	Cart        *CartResponse         `json:"cart,omitempty"`
}

// 決済から戻った時の状態
const (
	PaymentReturnSuccess = "success"
	PaymentReturnFailure = "failure"
	PaymentReturnCancel  = "cancel"
)

// Checkout はチェックアウト画面に出す選択中の明細。
func (u *OrderUsecase) Checkout(ctx context.Context, clientID string) (CheckoutSummary, error) {
	s, err := u.open(ctx, clientID)
	if err != nil {
		return CheckoutSummary{}, err
	}
	return u.resolve(ctx, s)
}

func (u *OrderUsecase) PlaceOrder(ctx context.Context, clientID string, in PlaceOrderInput) (PlaceOrderOutput, error) {
	s, err := u.open(ctx, clientID)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	who, mode := s.authState()
	if mode != model.CartModeAuthenticated || who.IsZero() {
		return PlaceOrderOutput{}, errLoginRequired()
	}
	if !in.PaymentMethod.Valid() {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment_method")
	}
	if err := in.Shipping.Validate(); err != nil {
		return PlaceOrderOutput{}, &HTTPError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		key = u.ids.NewID()
	}
	if len(key) > 255 {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid idempotency_key")
	}

	summary, err := u.resolve(ctx, s)
	if err != nil {
		return PlaceOrderOutput{}, err
	}

	lines, total := model.NewOrderLines(summary.Lines)
	req := model.OrderRequest{
		SelectedLines:  lines,
		ShippingInfo:   in.Shipping,
		PaymentMethod:  in.PaymentMethod,
		Total:          total,
		IdempotencyKey: key,
	}

	log := u.logger.With(zap.String("client_id", clientID), zap.String("user_id", who.UserID))

	order, err := u.orders.Create(context.WithoutCancel(ctx), who, req)
	if err != nil {
		log.Warn("order create failed", zap.Error(err))
		return PlaceOrderOutput{}, errRemote(ErrOrderFailed, err)
	}

	out := PlaceOrderOutput{Order: order}

	if in.PaymentMethod == model.PaymentMethodExternal {
		// 戻ってくるまで選択は保存したまま
		url, err := u.orders.Pay(context.WithoutCancel(ctx), who, order.ID)
		if err != nil {
			log.Warn("payment session failed", zap.String("order_id", order.ID), zap.Error(err))
			return PlaceOrderOutput{}, errRemote(ErrPaymentFailed, err)
		}
		out.RedirectURL = url
		log.Info("order awaiting external payment", zap.String("order_id", order.ID))
		return out, nil
	}

	res := u.selections.ConsumeAfterOrder(ctx, s, consumedIDs(order, summary))
	cart := mutationResponse(s, res)
	out.Cart = &cart
	log.Info("order placed", zap.String("order_id", order.ID), zap.String("payment_method", string(in.PaymentMethod)))
	return out, nil
}

// PaymentReturn は外部決済から戻った時の処理。
// 失敗なら選択を残して 402、成功なら注文を確認してから明細を消す。
func (u *OrderUsecase) PaymentReturn(ctx context.Context, clientID string, orderID string, status string) (PlaceOrderOutput, error) {
	if strings.TrimSpace(orderID) == "" {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order_id")
	}
	s, err := u.open(ctx, clientID)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	who, mode := s.authState()
	if mode != model.CartModeAuthenticated || who.IsZero() {
		return PlaceOrderOutput{}, errLoginRequired()
	}

	log := u.logger.With(zap.String("client_id", clientID), zap.String("order_id", orderID))

	if status != PaymentReturnSuccess {
		log.Info("payment not completed, selection kept", zap.String("status", status))
		return PlaceOrderOutput{}, errPaymentFailed()
	}

	order, err := u.orders.FindByID(context.WithoutCancel(ctx), who, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return PlaceOrderOutput{}, NewHTTPError(http.StatusNotFound, "not found")
		}
		return PlaceOrderOutput{}, errRemote(ErrPaymentFailed, err)
	}
	if order.Status != model.OrderStatusPaid {
		log.Info("order not paid, selection kept", zap.String("order_status", string(order.Status)))
		return PlaceOrderOutput{Order: order}, errPaymentFailed()
	}

	summary, err := u.resolve(ctx, s)
	if err != nil && len(order.OrderLineIDs()) == 0 {
		return PlaceOrderOutput{Order: order}, err
	}

	res := u.selections.ConsumeAfterOrder(ctx, s, consumedIDs(order, summary))
	cart := mutationResponse(s, res)
	log.Info("external payment confirmed")
	return PlaceOrderOutput{Order: order, Cart: &cart}, nil
}

// Abandon はチェックアウトから戻る時に選択を破棄する。
func (u *OrderUsecase) Abandon(ctx context.Context, clientID string) error {
	s, err := u.open(ctx, clientID)
	if err != nil {
		return err
	}
	if err := u.selections.Abandon(ctx, s); err != nil {
		u.logger.Error("selection delete failed", zap.String("client_id", clientID), zap.Error(err))
		return NewHTTPError(http.StatusInternalServerError, "storage error")
	}
	return nil
}

func (u *OrderUsecase) resolve(ctx context.Context, s *CartSession) (CheckoutSummary, error) {
	summary, err := u.selections.ResolveAgainstCart(ctx, s)
	if err == nil {
		return summary, nil
	}
	if _, ok := AsHTTPError(err); ok {
		return CheckoutSummary{}, err
	}
	u.logger.Error("selection resolve failed", zap.String("client_id", s.ClientID), zap.Error(err))
	return CheckoutSummary{}, NewHTTPError(http.StatusInternalServerError, "storage error")
}

func (u *OrderUsecase) open(ctx context.Context, clientID string) (*CartSession, error) {
	if clientID == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "missing client session")
	}
	return u.sessions.Open(ctx, clientID), nil
}

// 注文が返した明細IDを優先し、無ければ選択を使う
func consumedIDs(order model.OrderDescriptor, summary CheckoutSummary) []string {
	if ids := order.OrderLineIDs(); len(ids) > 0 {
		return ids
	}
	return summary.LineIDs
}
