package usecase

import (
	"context"
	"net/http"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// CartUsecase は /cart の業務ロジックです。
// カートは (customer_id, restaurant_id) ごとにliveが1つ。
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	catalog      repo.CatalogGateway
	cartTTL      time.Duration
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	catalog repo.CatalogGateway,
	cartTTL time.Duration,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		catalog:      catalog,
		cartTTL:      cartTTL,
	}
}

type CartItemResponse struct {
	ID       int64  `json:"id"`
	DishID   string `json:"dish_id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
	Notes    string `json:"notes,omitempty"`
}

// total は毎回明細から再計算する。保存値は無い。
type CartResponse struct {
	CartID       int64              `json:"cart_id"`
	RestaurantID string             `json:"restaurant_id"`
	Status       string             `json:"status"`
	Items        []CartItemResponse `json:"items"`
	Total        int64              `json:"total"`
	ExpiresAt    *time.Time         `json:"expires_at,omitempty"`
}

type AddItemInput struct {
	DishID   string
	Quantity int64
	Notes    string
}

type UpdateItemInput struct {
	Quantity int64
	Notes    string
}

// GetCart はカート取得（無ければliveを作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, customerID string, restaurantID string) (CartResponse, error) {
	if customerID == "" {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if restaurantID == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid restaurant_id")
	}

	cart, err := u.liveCart(ctx, customerID, restaurantID)
	if err != nil {
		return CartResponse{}, err
	}

	return u.buildCartResponse(ctx, cart)
}

// AddItem はカートに追加（同一dishは数量加算）。
func (u *CartUsecase) AddItem(ctx context.Context, customerID string, restaurantID string, in AddItemInput) (CartResponse, error) {
	if customerID == "" {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if restaurantID == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid restaurant_id")
	}
	if in.DishID == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid dish_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	// 商品チェック（存在しない・非公開はNotFound）
	p, err := u.catalog.GetProduct(ctx, in.DishID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "dish not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "catalog error")
	}
	if !p.Available {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "dish not available")
	}
	// カートと店舗が一致しない商品は入れられない
	if p.RestaurantID != restaurantID {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "dish belongs to another restaurant")
	}

	cart, err := u.liveCart(ctx, customerID, restaurantID)
	if err != nil {
		return CartResponse{}, err
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	// 同一dishは加算
	merged := false
	for _, it := range items {
		if it.DishID == in.DishID {
			notes := it.Notes
			if in.Notes != "" {
				notes = in.Notes
			}
			if err := u.cartItemRepo.Update(ctx, it.ID, it.Quantity+in.Quantity, notes); err != nil {
				return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
			}
			merged = true
			break
		}
	}

	if !merged {
		_, err := u.cartItemRepo.Create(ctx, model.CartItem{
			CartID:            cart.ID,
			DishID:            p.DishID,
			DishNameSnapshot:  p.Name,
			UnitPriceSnapshot: p.Price,
			Quantity:          in.Quantity,
			Notes:             in.Notes,
		})
		if err != nil {
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
	}

	return u.buildCartResponse(ctx, cart)
}

// 数量・メモ変更（所有チェックあり）。
// quantity < 1 は削除ではなく400で拒否する。削除はDELETEで明示する。
func (u *CartUsecase) UpdateItem(ctx context.Context, customerID string, cartItemID int64, in UpdateItemInput) (CartResponse, error) {
	if customerID == "" {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	item, cart, err := u.ownedItem(ctx, customerID, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}

	notes := item.Notes
	if in.Notes != "" {
		notes = in.Notes
	}
	if err := u.cartItemRepo.Update(ctx, item.ID, in.Quantity, notes); err != nil {
		if err == repo.ErrNotFound {
			return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
		}
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, cart)
}

// 明細削除。無い明細の削除はエラーにせずカートをそのまま返す。
func (u *CartUsecase) RemoveItem(ctx context.Context, customerID string, restaurantID string, cartItemID int64) (CartResponse, error) {
	if customerID == "" {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if restaurantID == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid restaurant_id")
	}

	cart, err := u.liveCart(ctx, customerID, restaurantID)
	if err != nil {
		return CartResponse{}, err
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	for _, it := range items {
		if it.ID == cartItemID {
			if err := u.cartItemRepo.DeleteByID(ctx, it.ID); err != nil && err != repo.ErrNotFound {
				return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
			}
			break
		}
	}

	return u.buildCartResponse(ctx, cart)
}

// カートを空にする。冪等。
func (u *CartUsecase) ClearCart(ctx context.Context, customerID string, restaurantID string) (CartResponse, error) {
	if customerID == "" {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if restaurantID == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid restaurant_id")
	}

	cart, err := u.liveCart(ctx, customerID, restaurantID)
	if err != nil {
		return CartResponse{}, err
	}

	if err := u.cartRepo.Clear(ctx, cart.ID); err != nil && err != repo.ErrNotFound {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, cart)
}

// liveカートを返す。期限切れはexpiredへ倒して作り直す（再利用しない）。
func (u *CartUsecase) liveCart(ctx context.Context, customerID string, restaurantID string) (model.Cart, error) {
	cart, err := u.cartRepo.GetOrCreateLive(ctx, customerID, restaurantID, u.cartTTL)
	if err != nil {
		return model.Cart{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if cart.Expired(time.Now()) {
		if err := u.cartRepo.UpdateStatus(ctx, cart.ID, model.CartStatusExpired); err != nil && err != repo.ErrNotFound {
			return model.Cart{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		cart, err = u.cartRepo.GetOrCreateLive(ctx, customerID, restaurantID, u.cartTTL)
		if err != nil {
			return model.Cart{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
	}

	return cart, nil
}

// 明細が顧客のliveカートに属しているかを確認して返す
func (u *CartUsecase) ownedItem(ctx context.Context, customerID string, cartItemID int64) (model.CartItem, model.Cart, error) {
	item, err := u.cartItemRepo.FindByID(ctx, cartItemID)
	if err == repo.ErrNotFound {
		return model.CartItem{}, model.Cart{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.CartItem{}, model.Cart{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	cart, err := u.cartRepo.FindByID(ctx, item.CartID)
	if err == repo.ErrNotFound {
		return model.CartItem{}, model.Cart{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.CartItem{}, model.Cart{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	// 他人のカートの明細は「存在しない扱い」にする
	if cart.CustomerID != customerID || cart.Status != model.CartStatusLive {
		return model.CartItem{}, model.Cart{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if cart.Expired(time.Now()) {
		if err := u.cartRepo.UpdateStatus(ctx, cart.ID, model.CartStatusExpired); err != nil && err != repo.ErrNotFound {
			return model.CartItem{}, model.Cart{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return model.CartItem{}, model.Cart{}, NewHTTPError(http.StatusGone, "cart expired")
	}

	return item, cart, nil
}

// 明細からCartResponseを作る。totalはここで必ず再計算する。
func (u *CartUsecase) buildCartResponse(ctx context.Context, cart model.Cart) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	respItems := make([]CartItemResponse, 0, len(items))
	var total int64 = 0

	for _, it := range items {
		respItems = append(respItems, CartItemResponse{
			ID:       it.ID,
			DishID:   it.DishID,
			Name:     it.DishNameSnapshot,
			Price:    it.UnitPriceSnapshot,
			Quantity: it.Quantity,
			Notes:    it.Notes,
		})

		total += it.UnitPriceSnapshot * it.Quantity
	}

	return CartResponse{
		CartID:       cart.ID,
		RestaurantID: cart.RestaurantID,
		Status:       string(cart.Status),
		Items:        respItems,
		Total:        total,
		ExpiresAt:    cart.ExpiresAt,
	}, nil
}
