package usecase

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// CartUsecase は /cart の業務ロジックです。
// クライアントIDからセッションを引き、各コンポーネントへ振り分けます。
type CartUsecase struct {
	sessions   *SessionRegistry
	gateway    *MutationGateway
	selections *SelectionTracker
	reconciler *ReconciliationEngine
	carts      repo.CartRepository
	storage    *CartStorage
	logger     *zap.Logger
}

func NewCartUsecase(
	sessions *SessionRegistry,
	gateway *MutationGateway,
	selections *SelectionTracker,
	reconciler *ReconciliationEngine,
	carts repo.CartRepository,
	storage *CartStorage,
	logger *zap.Logger,
) *CartUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartUsecase{
		sessions:   sessions,
		gateway:    gateway,
		selections: selections,
		reconciler: reconciler,
		carts:      carts,
		storage:    storage,
		logger:     logger,
	}
}

// CartItemResponse は明細1行の表示形式。
// price は追加時点の単価。
type CartItemResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url,omitempty"`
	Size      string          `json:"size"`
	Sizes     []string        `json:"sizes,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Selected  bool            `json:"selected"`
	Pending   bool            `json:"pending,omitempty"`
}

// CartResponse はカート画面の表示形式。
type CartResponse struct {
	Mode     model.CartMode     `json:"mode"`
	Items    []CartItemResponse `json:"items"`
	Total    decimal.Decimal    `json:"total"`
	Count    int                `json:"count"`
	Selected []string           `json:"selected"`
	Degraded bool               `json:"degraded,omitempty"`
	LineID   string             `json:"line_id,omitempty"`
}

type AddCartInput struct {
	ProductID string
	Quantity  int
	Size      string
}

type UpdateCartItemInput struct {
	Quantity int
}

type UpdateCartItemSizeInput struct {
	Size string
}

func (u *CartUsecase) GetCart(ctx context.Context, clientID string) (CartResponse, error) {
	s, err := u.open(ctx, clientID)
	if err != nil {
		return CartResponse{}, err
	}
	return cartResponse(s, s.Cart()), nil
}

// AddToCart はカートに追加（同一商品・サイズは数量加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, clientID string, in AddCartInput) (CartResponse, error) {
	productID := strings.TrimSpace(in.ProductID)
	if productID == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}
	s, err := u.open(ctx, clientID)
	if err != nil {
		return CartResponse{}, err
	}
	res := u.gateway.Add(WithRequestMemo(ctx), s, productID, in.Quantity, strings.TrimSpace(in.Size))
	return mutationResponse(s, res), nil
}

// 数量変更（範囲外は丸める）
func (u *CartUsecase) UpdateCartItem(ctx context.Context, clientID string, lineID string, in UpdateCartItemInput) (CartResponse, error) {
	if lineID == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := u.open(ctx, clientID)
	if err != nil {
		return CartResponse{}, err
	}
	return mutationResponse(s, u.gateway.UpdateQuantity(ctx, s, lineID, in.Quantity)), nil
}

func (u *CartUsecase) UpdateCartItemSize(ctx context.Context, clientID string, lineID string, in UpdateCartItemSizeInput) (CartResponse, error) {
	if lineID == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := u.open(ctx, clientID)
	if err != nil {
		return CartResponse{}, err
	}
	return mutationResponse(s, u.gateway.UpdateSize(ctx, s, lineID, strings.TrimSpace(in.Size))), nil
}

// 明細削除
func (u *CartUsecase) DeleteCartItem(ctx context.Context, clientID string, lineID string) (CartResponse, error) {
	if lineID == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := u.open(ctx, clientID)
	if err != nil {
		return CartResponse{}, err
	}
	return mutationResponse(s, u.gateway.Remove(ctx, s, lineID)), nil
}

func (u *CartUsecase) ClearCart(ctx context.Context, clientID string) (CartResponse, error) {
	s, err := u.open(ctx, clientID)
	if err != nil {
		return CartResponse{}, err
	}
	return mutationResponse(s, u.gateway.Clear(ctx, s)), nil
}

// Count はバッジ表示用の件数（数量の合計）。
func (u *CartUsecase) Count(ctx context.Context, clientID string) (int, error) {
	s, err := u.open(ctx, clientID)
	if err != nil {
		return 0, err
	}
	return s.Count(), nil
}

// InitializeSelection はカート画面の表示時に全明細を選択する。
func (u *CartUsecase) InitializeSelection(ctx context.Context, clientID string) (CartResponse, error) {
	s, err := u.open(ctx, clientID)
	if err != nil {
		return CartResponse{}, err
	}
	u.selections.InitializeSelection(s)
	return cartResponse(s, s.Cart()), nil
}

func (u *CartUsecase) Selection(ctx context.Context, clientID string) ([]string, error) {
	s, err := u.open(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return s.Selected(), nil
}

func (u *CartUsecase) ToggleSelection(ctx context.Context, clientID string, lineID string) (CartResponse, error) {
	s, err := u.open(ctx, clientID)
	if err != nil {
		return CartResponse{}, err
	}
	if _, ok := u.selections.Toggle(s, lineID); !ok {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return cartResponse(s, s.Cart()), nil
}

func (u *CartUsecase) SelectAll(ctx context.Context, clientID string) (CartResponse, error) {
	s, err := u.open(ctx, clientID)
	if err != nil {
		return CartResponse{}, err
	}
	u.selections.SelectAll(s)
	return cartResponse(s, s.Cart()), nil
}

func (u *CartUsecase) SelectNone(ctx context.Context, clientID string) (CartResponse, error) {
	s, err := u.open(ctx, clientID)
	if err != nil {
		return CartResponse{}, err
	}
	u.selections.SelectNone(s)
	return cartResponse(s, s.Cart()), nil
}

// ProceedToCheckout は選択を保存し、遷移先を返す。
func (u *CartUsecase) ProceedToCheckout(ctx context.Context, clientID string) (string, error) {
	s, err := u.open(ctx, clientID)
	if err != nil {
		return "", err
	}
	route, err := u.selections.PersistForCheckout(ctx, s)
	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return "", err
		}
		u.logger.Error("selection persist failed", zap.String("client_id", clientID), zap.Error(err))
		return "", NewHTTPError(http.StatusInternalServerError, "storage error")
	}
	return route, nil
}

// OnOrderSettled は画面側で確定した注文の明細をカートから消す。
func (u *CartUsecase) OnOrderSettled(ctx context.Context, clientID string, lineIDs []string) (CartResponse, error) {
	if len(lineIDs) == 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid line_ids")
	}
	s, err := u.open(ctx, clientID)
	if err != nil {
		return CartResponse{}, err
	}
	return mutationResponse(s, u.selections.ConsumeAfterOrder(ctx, s, lineIDs)), nil
}

func (u *CartUsecase) SignIn(ctx context.Context, clientID string, who model.Identity) (ReconcileReport, error) {
	s, err := u.open(ctx, clientID)
	if err != nil {
		return ReconcileReport{}, err
	}
	return u.reconciler.SignIn(ctx, s, who)
}

// BindIdentity はリクエストのBearerで分かった利用者をセッションに結び直す。
// 期限切れの破棄や再起動でゲストに戻ったセッションもここで認証状態へ戻る。
// 同じ利用者ならトークンの更新だけ。
func (u *CartUsecase) BindIdentity(ctx context.Context, clientID string, who model.Identity) error {
	s, err := u.open(ctx, clientID)
	if err != nil {
		return err
	}
	rep, err := u.reconciler.SignIn(ctx, s, who)
	if err != nil {
		return err
	}
	if !rep.Skipped {
		u.logger.Info("cart session bound from bearer token",
			zap.String("client_id", clientID),
			zap.String("user_id", who.UserID),
			zap.Bool("server_fetch_failed", rep.ServerFetchFailed),
			zap.Int("count", rep.Count))
	}
	return nil
}

func (u *CartUsecase) SignOut(ctx context.Context, clientID string) (CartResponse, error) {
	s, err := u.open(ctx, clientID)
	if err != nil {
		return CartResponse{}, err
	}
	u.reconciler.SignOut(ctx, s)
	return cartResponse(s, s.Cart()), nil
}

// Reload は保存先から状態を作り直す。
// 認証済みはサーバーを正とし、取れなければ同じユーザーのキャッシュを使う。
func (u *CartUsecase) Reload(ctx context.Context, clientID string) (CartResponse, error) {
	s, err := u.open(ctx, clientID)
	if err != nil {
		return CartResponse{}, err
	}

	who, mode := s.authState()
	var next *model.CartAggregate
	if mode == model.CartModeAuthenticated {
		cart, err := u.carts.GetCart(context.WithoutCancel(ctx), who)
		if err == nil {
			next = cart.Clone()
		} else {
			u.logger.Warn("server cart reload failed, using auth cache",
				zap.String("client_id", clientID), zap.Error(err))
			if snap, _ := u.storage.LoadAuthCache(ctx, clientID); snap != nil && snap.OwnerUserID == who.UserID {
				next = snap.Cart.Clone()
			}
		}
	} else if snap, err := u.storage.LoadGuest(ctx, clientID); err == nil && snap != nil {
		next = snap.Cart.Clone()
	}

	s.mu.Lock()
	if next != nil && s.identity.UserID == who.UserID {
		next.Mode = mode
		next.Normalize()
		s.cart = next
		s.selection.Retain(s.cart)
	}
	out := s.cart.Clone()
	s.mu.Unlock()

	u.gateway.emit(clientID, out.LineCount)
	return cartResponse(s, out), nil
}

func (u *CartUsecase) open(ctx context.Context, clientID string) (*CartSession, error) {
	if clientID == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "missing client session")
	}
	return u.sessions.Open(ctx, clientID), nil
}

func mutationResponse(s *CartSession, res MutationResult) CartResponse {
	out := cartResponse(s, res.Cart)
	out.Degraded = res.Degraded()
	out.LineID = res.LineID
	return out
}

func cartResponse(s *CartSession, cart *model.CartAggregate) CartResponse {
	selected := s.Selected()
	in := make(map[string]bool, len(selected))
	for _, id := range selected {
		in[id] = true
	}

	items := make([]CartItemResponse, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		items = append(items, CartItemResponse{
			ID:        l.ID,
			ProductID: l.ProductID,
			Name:      l.Product.Name,
			ImageURL:  l.Product.ImageURL,
			Size:      l.Size,
			Sizes:     l.Product.Sizes,
			Price:     l.UnitPrice,
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal(),
			Selected:  in[l.ID],
			Pending:   l.IsLocal(),
		})
	}
	return CartResponse{
		Mode:     cart.Mode,
		Items:    items,
		Total:    cart.Total,
		Count:    cart.LineCount,
		Selected: selected,
	}
}
