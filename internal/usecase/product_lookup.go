package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// ProductLookup は商品情報の取得。
// 同時の同一商品取得はまとめ、同じリクエスト内では結果を使い回す。
type ProductLookup struct {
	products repo.ProductRepository
	group    singleflight.Group
	logger   *zap.Logger
}

func NewProductLookup(products repo.ProductRepository, logger *zap.Logger) *ProductLookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductLookup{products: products, logger: logger}
}

type memoKey struct{}

type requestMemo struct {
	mu    sync.Mutex
	items map[string]model.ProductSummary
}

// WithRequestMemo はリクエスト単位のキャッシュを ctx に付ける。
func WithRequestMemo(ctx context.Context) context.Context {
	if _, ok := ctx.Value(memoKey{}).(*requestMemo); ok {
		return ctx
	}
	return context.WithValue(ctx, memoKey{}, &requestMemo{items: make(map[string]model.ProductSummary)})
}

func (l *ProductLookup) Find(ctx context.Context, productID string) (model.ProductSummary, error) {
	memo, _ := ctx.Value(memoKey{}).(*requestMemo)
	if memo != nil {
		memo.mu.Lock()
		p, ok := memo.items[productID]
		memo.mu.Unlock()
		if ok {
			return p, nil
		}
	}

	v, err, _ := l.group.Do(productID, func() (any, error) {
		return l.products.FindByID(ctx, productID)
	})
	if err != nil {
		return model.ProductSummary{}, err
	}
	p := v.(model.ProductSummary)

	if memo != nil {
		memo.mu.Lock()
		memo.items[productID] = p
		memo.mu.Unlock()
	}
	return p, nil
}

// Resolve は取得に失敗したら仮の表示情報を返す。
func (l *ProductLookup) Resolve(ctx context.Context, productID string) model.ProductSummary {
	p, err := l.Find(ctx, productID)
	if err != nil {
		l.logger.Warn("product lookup failed, using placeholder",
			zap.String("product_id", productID), zap.Error(err))
		return model.PlaceholderProduct(productID)
	}
	return p
}
