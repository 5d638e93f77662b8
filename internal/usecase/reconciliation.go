package usecase

import (
	"context"

	"go.uber.org/zap"

	"storefront/internal/domain/model"
	"storefront/internal/notify"
	repo "storefront/internal/repository"
)

// ReconcileReport はゲストカートの取り込み結果。
type ReconcileReport struct {
	// 既に同じユーザー、または取り込み中だった
	Skipped bool `json:"skipped"`
	Merged  int  `json:"merged"`
	// 取り込めなかったゲスト明細の商品ID
	Dropped           []string `json:"dropped,omitempty"`
	ServerFetchFailed bool     `json:"server_fetch_failed,omitempty"`
	Count             int      `json:"count"`
}

// ReconciliationEngine はサインイン・サインアウト時のカート切替を行う。
type ReconciliationEngine struct {
	carts     repo.CartRepository
	storage   *CartStorage
	publisher CountPublisher
	logger    *zap.Logger
}

func NewReconciliationEngine(carts repo.CartRepository, storage *CartStorage, publisher CountPublisher, logger *zap.Logger) *ReconciliationEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationEngine{
		carts:     carts,
		storage:   storage,
		publisher: publisher,
		logger:    logger,
	}
}

// SignIn は認証状態へ切り替える。同じユーザーなら何もしない。
func (e *ReconciliationEngine) SignIn(ctx context.Context, s *CartSession, who model.Identity) (ReconcileReport, error) {
	if who.IsZero() {
		return ReconcileReport{}, errLoginRequired()
	}

	current, mode := s.authState()
	if mode == model.CartModeAuthenticated {
		if current.UserID == who.UserID {
			// トークンだけ更新
			s.mu.Lock()
			s.identity = who
			count := s.cart.LineCount
			s.mu.Unlock()
			return ReconcileReport{Skipped: true, Count: count}, nil
		}
		e.SignOut(ctx, s)
	}
	return e.Reconcile(ctx, s, who), nil
}

// Reconcile はゲスト明細をサーバーのカートへ1件ずつ追加し、ゲストのスナップショットを消す。
// 同時に二重に走らない。
func (e *ReconciliationEngine) Reconcile(ctx context.Context, s *CartSession, who model.Identity) ReconcileReport {
	if !s.reconciling.CompareAndSwap(false, true) {
		return ReconcileReport{Skipped: true, Count: s.Count()}
	}
	defer s.reconciling.Store(false)

	detached := context.WithoutCancel(ctx)
	log := e.logger.With(zap.String("client_id", s.ClientID), zap.String("user_id", who.UserID))

	var report ReconcileReport

	guestLines := e.guestLines(ctx, s)

	merged := model.NewCartAggregate(model.CartModeAuthenticated)
	server, err := e.carts.GetCart(detached, who)
	if err != nil {
		log.Warn("server cart fetch failed during reconciliation", zap.Error(err))
		report.ServerFetchFailed = true
		if cached := e.cachedFor(ctx, s.ClientID, who); cached != nil {
			merged = cached
		}
	} else {
		merged = server.Clone()
	}

	for _, l := range guestLines {
		c, err := e.carts.AddLine(detached, who, l.ProductID, l.Quantity, l.Size)
		if err != nil {
			log.Warn("guest line dropped during reconciliation",
				zap.String("product_id", l.ProductID), zap.String("size", l.Size), zap.Error(err))
			report.Dropped = append(report.Dropped, l.ProductID)
			continue
		}
		merged = c.Clone()
		report.Merged++
	}

	if err := e.storage.DeleteGuest(ctx, s.ClientID); err != nil {
		log.Error("guest snapshot delete failed", zap.Error(err))
	}

	merged.Mode = model.CartModeAuthenticated
	merged.Normalize()

	s.mu.Lock()
	s.cart = merged
	s.identity = who
	s.selection.Retain(s.cart)
	if err := e.storage.SaveCart(ctx, s.ClientID, s.cart, who); err != nil {
		log.Error("auth cache save failed", zap.Error(err))
	}
	report.Count = s.cart.LineCount
	s.mu.Unlock()

	log.Info("cart reconciled",
		zap.Int("merged", report.Merged),
		zap.Int("dropped", len(report.Dropped)),
		zap.Int("count", report.Count))
	e.emit(s.ClientID, report.Count)
	return report
}

// SignOut はゲストへ戻す。認証側のキャッシュは残す。
func (e *ReconciliationEngine) SignOut(ctx context.Context, s *CartSession) int {
	cart := model.NewCartAggregate(model.CartModeGuest)
	snap, err := e.storage.LoadGuest(ctx, s.ClientID)
	if err != nil {
		e.logger.Warn("guest snapshot unreadable on sign-out",
			zap.String("client_id", s.ClientID), zap.Error(err))
	} else if snap != nil {
		cart = snap.Cart.Clone()
		cart.Mode = model.CartModeGuest
	}

	if err := e.storage.DeleteSelection(ctx, s.ClientID); err != nil {
		e.logger.Warn("checkout selection delete failed on sign-out",
			zap.String("client_id", s.ClientID), zap.Error(err))
	}

	s.mu.Lock()
	s.cart = cart
	s.identity = model.Identity{}
	s.selection = model.NewSelectionSet()
	count := s.cart.LineCount
	s.mu.Unlock()

	e.emit(s.ClientID, count)
	return count
}

func (e *ReconciliationEngine) guestLines(ctx context.Context, s *CartSession) []model.CartLine {
	s.mu.Lock()
	if s.cart.Mode == model.CartModeGuest {
		lines := s.cart.Clone().Lines
		s.mu.Unlock()
		return lines
	}
	s.mu.Unlock()

	snap, err := e.storage.LoadGuest(ctx, s.ClientID)
	if err != nil {
		e.logger.Warn("guest snapshot unreadable during reconciliation",
			zap.String("client_id", s.ClientID), zap.Error(err))
		return nil
	}
	if snap == nil {
		return nil
	}
	return snap.Cart.Lines
}

// cachedFor は同じユーザーの認証キャッシュがあれば返す。
func (e *ReconciliationEngine) cachedFor(ctx context.Context, clientID string, who model.Identity) *model.CartAggregate {
	snap, err := e.storage.LoadAuthCache(ctx, clientID)
	if err != nil || snap == nil || snap.OwnerUserID != who.UserID {
		return nil
	}
	return snap.Cart.Clone()
}

func (e *ReconciliationEngine) emit(clientID string, count int) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(notify.CountEvent{ClientID: clientID, Count: count})
}
