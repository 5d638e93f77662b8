package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type OrderRepository interface {
	Create(ctx context.Context, who model.Identity, req model.OrderRequest) (model.OrderDescriptor, error)
	FindByID(ctx context.Context, who model.Identity, orderID string) (model.OrderDescriptor, error)
	//外部決済のリダイレクトURLを発行
	Pay(ctx context.Context, who model.Identity, orderID string) (string, error)
}
