package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain/model"
)

// チェックアウト画面への遷移先
const CheckoutRoute = "/checkout"

// CheckoutSummary は選択中の明細と合計。
type CheckoutSummary struct {
	LineIDs []string         `json:"line_ids"`
	Lines   []model.CartLine `json:"lines"`
	Total   decimal.Decimal  `json:"total"`
	Count   int              `json:"count"`
}

// SelectionTracker は購入対象の選択を管理し、決済リダイレクトをまたいで保持する。
type SelectionTracker struct {
	storage *CartStorage
	gateway *MutationGateway
	logger  *zap.Logger
}

func NewSelectionTracker(storage *CartStorage, gateway *MutationGateway, logger *zap.Logger) *SelectionTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelectionTracker{storage: storage, gateway: gateway, logger: logger}
}

// InitializeSelection はカートの全明細を選択する。
func (t *SelectionTracker) InitializeSelection(s *CartSession) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = model.NewSelectionSet(s.cart.LineIDs()...)
	return s.selection.Intersect(s.cart)
}

// Toggle はカートにある明細だけ反転する。無い明細なら ok=false。
func (t *SelectionTracker) Toggle(s *CartSession, lineID string) (selected bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cart.HasLine(lineID) {
		return false, false
	}
	return s.selection.Toggle(lineID), true
}

func (t *SelectionTracker) SelectAll(s *CartSession) []string {
	return t.InitializeSelection(s)
}

func (t *SelectionTracker) SelectNone(s *CartSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = model.NewSelectionSet()
}

// PersistForCheckout は選択を保存し、チェックアウト画面の経路を返す。
func (t *SelectionTracker) PersistForCheckout(ctx context.Context, s *CartSession) (string, error) {
	ids := s.Selected()
	if len(ids) == 0 {
		return "", errEmptySelection()
	}
	if err := t.storage.SaveSelection(ctx, s.ClientID, ids); err != nil {
		return "", fmt.Errorf("persist selection: %w", err)
	}
	return CheckoutRoute, nil
}

// ResolveAgainstCart は保存済みの選択を現在のカートと突き合わせる。
// 一部が消えていれば絞り込んで保存し直し、全て消えていれば desync。
func (t *SelectionTracker) ResolveAgainstCart(ctx context.Context, s *CartSession) (CheckoutSummary, error) {
	persisted, ok, err := t.storage.LoadSelection(ctx, s.ClientID)
	if err != nil {
		return CheckoutSummary{}, fmt.Errorf("load selection: %w", err)
	}
	if !ok {
		return CheckoutSummary{}, errSelectionMissing()
	}

	cart := s.Cart()
	resolved, err := ResolveSelection(persisted, cart)
	if err != nil {
		t.logger.Info("checkout selection desynchronized",
			zap.String("client_id", s.ClientID), zap.Strings("persisted", persisted))
		return CheckoutSummary{}, err
	}

	if len(resolved) != len(persisted) {
		if err := t.storage.SaveSelection(ctx, s.ClientID, resolved); err != nil {
			t.logger.Warn("narrowed selection save failed",
				zap.String("client_id", s.ClientID), zap.Error(err))
		}
	}
	return summarize(cart, resolved), nil
}

// ConsumeAfterOrder は注文済みの明細をカートから消し、保存済みの選択を破棄する。
func (t *SelectionTracker) ConsumeAfterOrder(ctx context.Context, s *CartSession, lineIDs []string) MutationResult {
	res := t.gateway.RemoveLines(ctx, s, lineIDs)
	if err := t.storage.DeleteSelection(ctx, s.ClientID); err != nil {
		t.logger.Warn("checkout selection delete failed",
			zap.String("client_id", s.ClientID), zap.Error(err))
	}
	return res
}

// Abandon はチェックアウトを離れた時に選択を破棄する。
func (t *SelectionTracker) Abandon(ctx context.Context, s *CartSession) error {
	return t.storage.DeleteSelection(ctx, s.ClientID)
}

// ResolveSelection は保存済みIDのうちカートに残るものをカート順で返す。
// 保存側が空でないのに1件も残らなければ ErrSelectionDesync。
func ResolveSelection(persisted []string, cart *model.CartAggregate) ([]string, error) {
	resolved := model.NewSelectionSet(persisted...).Intersect(cart)
	if len(persisted) > 0 && len(resolved) == 0 {
		return nil, errSelectionDesync()
	}
	return resolved, nil
}

func summarize(cart *model.CartAggregate, ids []string) CheckoutSummary {
	sum := CheckoutSummary{
		LineIDs: ids,
		Lines:   make([]model.CartLine, 0, len(ids)),
		Total:   decimal.Zero,
	}
	for _, id := range ids {
		l, ok := cart.FindLine(id)
		if !ok {
			continue
		}
		sum.Lines = append(sum.Lines, l)
		sum.Total = sum.Total.Add(l.Subtotal())
		sum.Count += l.Quantity
	}
	return sum
}
