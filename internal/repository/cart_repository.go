package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// PUT cart/lines/{id} の変更内容（どちらか一方）
type LinePatch struct {
	Quantity *int
	Size     *string
}

// 認証モードのカート（リモート）を操作する約束。
// 成功時はサーバーの正とする集約を返す。
type CartRepository interface {
	GetCart(ctx context.Context, who model.Identity) (model.CartAggregate, error)
	AddLine(ctx context.Context, who model.Identity, productID string, qty int, size string) (model.CartAggregate, error)
	UpdateLine(ctx context.Context, who model.Identity, lineID string, patch LinePatch) (model.CartAggregate, error)
	DeleteLine(ctx context.Context, who model.Identity, lineID string) (model.CartAggregate, error)
	Clear(ctx context.Context, who model.Identity) (model.CartAggregate, error)
}
