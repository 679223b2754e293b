package repository

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

type CartRepository interface {
	// liveカートを取得し、無ければ作成（ttl>0なら期限付き）
	GetOrCreateLive(ctx context.Context, customerID string, restaurantID string, ttl time.Duration) (model.Cart, error)
	FindLive(ctx context.Context, customerID string, restaurantID string) (model.Cart, error)
	FindByID(ctx context.Context, cartID int64) (model.Cart, error)
	UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error
	Clear(ctx context.Context, cartID int64) error
}

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
	Create(ctx context.Context, item model.CartItem) (model.CartItem, error)
	// 数量とメモを更新
	Update(ctx context.Context, cartItemID int64, qty int64, notes string) error
	DeleteByID(ctx context.Context, cartItemID int64) error
}
