package repository

import (
	"context"

	"app/internal/domain/model"
)

type OrderListFilter struct {
	CustomerID   string
	RestaurantID string
	Status       string
	Page         int
	Limit        int
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	// 行ロック付き取得。トランザクション内でのみ使う。
	FindByIDForUpdate(ctx context.Context, orderID string) (model.Order, error)
	Create(ctx context.Context, order model.Order) error
	Save(ctx context.Context, order model.Order) error
	List(ctx context.Context, f OrderListFilter) ([]model.Order, int64, error)
}

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error)
}
