package repository

import (
	"context"

	"app/internal/domain/model"
)

// カタログサービス（外部）への読み取り専用アクセス。
// 商品が存在しない場合は ErrNotFound を返す。
type CatalogGateway interface {
	GetProduct(ctx context.Context, dishID string) (model.Product, error)
}
