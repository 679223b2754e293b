package usecase

import (
	"context"
	"log"
	"net/http"
	"time"

	"app/internal/domain/event"
	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/google/uuid"
)

type OrderUsecase struct {
	tx          repo.TransactionManager
	catalog     repo.CatalogGateway
	pub         event.Publisher
	deliveryFee int64
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	catalog repo.CatalogGateway,
	pub event.Publisher,
	deliveryFee int64,
) *OrderUsecase {
	return &OrderUsecase{tx: tx, catalog: catalog, pub: pub, deliveryFee: deliveryFee}
}

type CreateOrderItemInput struct {
	DishID   string
	Quantity int64
	Notes    string
}

// itemsが空ならliveカートのチェックアウト、あれば直接注文。
type CreateOrderInput struct {
	RestaurantID    string
	DeliveryAddress string
	PaymentMethod   string
	Items           []CreateOrderItemInput
}

type OrderItemOutput struct {
	DishID   string `json:"dish_id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
	Notes    string `json:"notes,omitempty"`
}

type OrderOutput struct {
	ID              string            `json:"id"`
	CustomerID      string            `json:"customer_id"`
	RestaurantID    string            `json:"restaurant_id"`
	Status          string            `json:"status"`
	TotalAmount     int64             `json:"total_amount"`
	DeliveryFee     int64             `json:"delivery_fee"`
	DeliveryAddress string            `json:"delivery_address"`
	PaymentMethod   string            `json:"payment_method"`
	PaymentStatus   string            `json:"payment_status"`
	SubmittedAt     *time.Time        `json:"submitted_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []OrderItemOutput `json:"items"`
}

// Create は注文を確定する。items無しはカートのチェックアウト。
func (u *OrderUsecase) Create(ctx context.Context, pr model.Principal, in CreateOrderInput) (OrderOutput, error) {
	if pr.ID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if pr.Role != model.RoleCustomer {
		return OrderOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if in.RestaurantID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid restaurant_id")
	}
	if in.DeliveryAddress == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid delivery_address")
	}
	if !model.ValidPaymentMethod(in.PaymentMethod) {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment_method")
	}

	if len(in.Items) == 0 {
		return u.checkout(ctx, pr, in)
	}
	return u.createDirect(ctx, pr, in)
}

// カートのチェックアウト。
// 合計はサーバー側で再計算し、クライアント申告の金額は一切信用しない。
func (u *OrderUsecase) checkout(ctx context.Context, pr model.Principal, in CreateOrderInput) (OrderOutput, error) {
	var out OrderOutput
	var events []event.Event

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindLive(ctx, pr.ID, in.RestaurantID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusBadRequest, "cart empty")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// 期限切れカートはexpiredへ倒して失敗させる（黙って注文を作らない）
		if cart.Expired(time.Now()) {
			if err := r.Carts().UpdateStatus(ctx, cart.ID, model.CartStatusExpired); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			return NewHTTPError(http.StatusGone, "cart expired")
		}

		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if len(cartItems) == 0 {
			return NewHTTPError(http.StatusBadRequest, "cart empty")
		}

		var subtotal int64 = 0
		orderItems := make([]model.OrderItem, 0, len(cartItems))
		for _, ci := range cartItems {
			orderItems = append(orderItems, model.OrderItem{
				DishID:            ci.DishID,
				DishNameSnapshot:  ci.DishNameSnapshot,
				UnitPriceSnapshot: ci.UnitPriceSnapshot,
				Quantity:          ci.Quantity,
				Notes:             ci.Notes,
			})
			subtotal += ci.UnitPriceSnapshot * ci.Quantity
		}

		order := u.newOrder(pr.ID, in, subtotal)
		if err := r.Orders().Create(ctx, order); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.OrderItems().CreateBulk(ctx, order.ID, orderItems); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// カートをchecked_outにして明細をクリア（再注文防止）
		if err := r.Carts().UpdateStatus(ctx, cart.ID, model.CartStatusCheckedOut); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(order, orderItems)
		events = orderEvents(order)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}

	publishAll(ctx, u.pub, events)
	return out, nil
}

// カートを介さない直接注文。
// 明細ごとにカタログを引き直し、宣言された店舗と全明細の店舗一致を検証する。
func (u *OrderUsecase) createDirect(ctx context.Context, pr model.Principal, in CreateOrderInput) (OrderOutput, error) {
	var subtotal int64 = 0
	orderItems := make([]model.OrderItem, 0, len(in.Items))

	for _, it := range in.Items {
		if it.DishID == "" || it.Quantity < 1 {
			return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid item")
		}

		p, err := u.catalog.GetProduct(ctx, it.DishID)
		if err == repo.ErrNotFound {
			return OrderOutput{}, NewHTTPError(http.StatusNotFound, "dish not found")
		}
		if err != nil {
			return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "catalog error")
		}
		if !p.Available {
			return OrderOutput{}, NewHTTPError(http.StatusNotFound, "dish not available")
		}
		// 明細同士ではなく、注文が宣言した店舗に対して検証する
		if p.RestaurantID != in.RestaurantID {
			return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "dish belongs to another restaurant")
		}

		orderItems = append(orderItems, model.OrderItem{
			DishID:            p.DishID,
			DishNameSnapshot:  p.Name,
			UnitPriceSnapshot: p.Price,
			Quantity:          it.Quantity,
			Notes:             it.Notes,
		})
		subtotal += p.Price * it.Quantity
	}

	var out OrderOutput
	var events []event.Event

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		order := u.newOrder(pr.ID, in, subtotal)
		if err := r.Orders().Create(ctx, order); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.OrderItems().CreateBulk(ctx, order.ID, orderItems); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(order, orderItems)
		events = orderEvents(order)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}

	publishAll(ctx, u.pub, events)
	return out, nil
}

func (u *OrderUsecase) newOrder(customerID string, in CreateOrderInput, subtotal int64) model.Order {
	now := time.Now()

	paymentStatus := model.PaymentStatusPending
	if in.PaymentMethod == model.PaymentMethodCOD {
		paymentStatus = model.PaymentStatusUnpaid
	}

	return model.Order{
		ID:              uuid.NewString(),
		CustomerID:      customerID,
		RestaurantID:    in.RestaurantID,
		Status:          model.OrderStatusSubmitted,
		TotalAmount:     subtotal + u.deliveryFee,
		DeliveryFee:     u.deliveryFee,
		DeliveryAddress: in.DeliveryAddress,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   paymentStatus,
		SubmittedAt:     &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// RestaurantConfirm は processing -> delivering。
func (u *OrderUsecase) RestaurantConfirm(ctx context.Context, pr model.Principal, orderID string) (OrderOutput, error) {
	return u.transition(ctx, pr, orderID, model.OrderStatusDelivering, ActionConfirm, "")
}

// Complete は delivering -> completed。
func (u *OrderUsecase) Complete(ctx context.Context, pr model.Principal, orderID string) (OrderOutput, error) {
	return u.transition(ctx, pr, orderID, model.OrderStatusCompleted, ActionComplete, "")
}

// Cancel は submitted / processing / delivering からのみ有効。
func (u *OrderUsecase) Cancel(ctx context.Context, pr model.Principal, orderID string, reason string) (OrderOutput, error) {
	return u.transition(ctx, pr, orderID, model.OrderStatusCancelled, ActionCancel, reason)
}

// 役割チェック→遷移表チェック→保存→イベント
func (u *OrderUsecase) transition(ctx context.Context, pr model.Principal, orderID string, target model.OrderStatus, action Action, reason string) (OrderOutput, error) {
	if pr.ID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput
	var events []event.Event

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if !authorize(pr, action, o) {
			return NewHTTPError(http.StatusForbidden, "forbidden")
		}
		if !model.CanTransition(o.Status, target) {
			return NewHTTPError(http.StatusConflict, "invalid transition")
		}

		o.Status = target
		if target == model.OrderStatusCancelled {
			now := time.Now()
			o.Cancellation = model.Cancellation{
				Reason: reason,
				Actor:  string(pr.Role) + ":" + pr.ID,
				At:     &now,
			}
		}

		if err := r.Orders().Save(ctx, o); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		events = orderEvents(o)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}

	publishAll(ctx, u.pub, events)
	return out, nil
}

// 自分の注文一覧。restaurantは自店舗分、adminは全件。
func (u *OrderUsecase) List(ctx context.Context, pr model.Principal, page int, limit int) ([]OrderOutput, error) {
	if pr.ID == "" {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	f := repo.OrderListFilter{Page: page, Limit: limit}
	switch pr.Role {
	case model.RoleCustomer:
		f.CustomerID = pr.ID
	case model.RoleRestaurant:
		f.RestaurantID = pr.ID
	case model.RoleAdmin:
		// 絞り込みなし
	default:
		return []OrderOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().List(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) Get(ctx context.Context, pr model.Principal, orderID string) (OrderOutput, error) {
	if pr.ID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// 他人の注文は「存在しない扱い」にする
		if !authorize(pr, ActionView, o) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			DishID:   it.DishID,
			Name:     it.DishNameSnapshot,
			Price:    it.UnitPriceSnapshot,
			Quantity: it.Quantity,
			Notes:    it.Notes,
		})
	}

	return OrderOutput{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		RestaurantID:    o.RestaurantID,
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount,
		DeliveryFee:     o.DeliveryFee,
		DeliveryAddress: o.DeliveryAddress,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   string(o.PaymentStatus),
		SubmittedAt:     o.SubmittedAt,
		CreatedAt:       o.CreatedAt,
		Items:           outItems,
	}
}

// order:update を顧客・店舗双方のトピックへ
func orderEvents(o model.Order) []event.Event {
	payload := event.OrderUpdate{
		OrderID:       o.ID,
		CustomerID:    o.CustomerID,
		RestaurantID:  o.RestaurantID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		TotalAmount:   o.TotalAmount,
		UpdatedAt:     time.Now(),
	}
	return []event.Event{
		{Topic: event.CustomerTopic(o.CustomerID), Name: event.TypeOrderUpdate, Payload: payload},
		{Topic: event.RestaurantTopic(o.RestaurantID), Name: event.TypeOrderUpdate, Payload: payload},
	}
}

// コミット後のpublish。失敗しても遷移は巻き戻さない（best-effort）。
func publishAll(ctx context.Context, pub event.Publisher, events []event.Event) {
	if pub == nil {
		return
	}
	for _, e := range events {
		if err := pub.Publish(ctx, e); err != nil {
			log.Printf("event publish failed: topic=%s name=%s err=%v", e.Topic, e.Name, err)
		}
	}
}
