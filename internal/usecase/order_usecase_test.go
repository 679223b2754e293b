package usecase

import (
	"context"
	"net/http"
	"testing"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type orderTestDeps struct {
	tx         *TxManagerMock
	orders     *OrderRepoMock
	orderItems *OrderItemRepoMock
	carts      *CartRepoMock
	cartItems  *CartItemRepoMock
	payments   *PaymentRepoMock
	catalog    *CatalogMock
	pub        *PublisherRecorder
	u          *OrderUsecase
}

func newOrderTestDeps() orderTestDeps {
	d := orderTestDeps{
		orders:     new(OrderRepoMock),
		orderItems: new(OrderItemRepoMock),
		carts:      new(CartRepoMock),
		cartItems:  new(CartItemRepoMock),
		payments:   new(PaymentRepoMock),
		catalog:    new(CatalogMock),
		pub:        new(PublisherRecorder),
	}
	d.tx = &TxManagerMock{Repos: &TxReposMock{
		orders:     d.orders,
		orderItems: d.orderItems,
		carts:      d.carts,
		cartItems:  d.cartItems,
		payments:   d.payments,
	}}
	d.tx.On("WithinTx", mock.Anything)
	d.u = NewOrderUsecase(d.tx, d.catalog, d.pub, 15000)
	return d
}

func customer(id string) model.Principal {
	return model.Principal{ID: id, Role: model.RoleCustomer}
}

func restaurant(id string) model.Principal {
	return model.Principal{ID: id, Role: model.RoleRestaurant}
}

func TestCheckout_OK(t *testing.T) {
	d := newOrderTestDeps()
	pr := customer("cust-1")

	d.carts.On("FindLive", mock.Anything, "cust-1", "rest-1").
		Return(model.Cart{ID: 7, CustomerID: "cust-1", RestaurantID: "rest-1", Status: model.CartStatusLive}, nil)
	d.cartItems.On("ListByCartID", mock.Anything, int64(7)).
		Return([]model.CartItem{
			{ID: 1, CartID: 7, DishID: "dish-1", DishNameSnapshot: "Pho Bo", UnitPriceSnapshot: 50000, Quantity: 2},
			{ID: 2, CartID: 7, DishID: "dish-2", DishNameSnapshot: "Tra Da", UnitPriceSnapshot: 10000, Quantity: 1},
		}, nil)
	d.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.Status == model.OrderStatusSubmitted &&
			o.TotalAmount == 110000+15000 &&
			o.DeliveryFee == 15000 &&
			o.PaymentStatus == model.PaymentStatusPending &&
			o.SubmittedAt != nil
	})).Return(nil)
	d.orderItems.On("CreateBulk", mock.Anything, mock.Anything, mock.MatchedBy(func(items []model.OrderItem) bool {
		return len(items) == 2 && items[0].UnitPriceSnapshot == 50000
	})).Return(nil)
	d.carts.On("UpdateStatus", mock.Anything, int64(7), model.CartStatusCheckedOut).Return(nil)
	d.carts.On("Clear", mock.Anything, int64(7)).Return(nil)

	out, err := d.u.Create(context.Background(), pr, CreateOrderInput{
		RestaurantID:    "rest-1",
		DeliveryAddress: "12 Hang Bai, Hanoi",
		PaymentMethod:   model.PaymentMethodVNPay,
	})
	assert.NoError(t, err)
	assert.Equal(t, "submitted", out.Status)
	assert.Equal(t, int64(125000), out.TotalAmount)
	assert.Equal(t, "pending", out.PaymentStatus)
	assert.Len(t, out.Items, 2)
	d.orders.AssertExpectations(t)
	d.carts.AssertExpectations(t)

	// 顧客・店舗双方のトピックに通知
	assert.Len(t, d.pub.Events, 2)
	topics := []string{d.pub.Events[0].Topic, d.pub.Events[1].Topic}
	assert.Contains(t, topics, "customer-cust-1")
	assert.Contains(t, topics, "restaurant-rest-1")
}

// 代引きは支払い待ちではなくunpaidで始まる
func TestCheckout_CODStartsUnpaid(t *testing.T) {
	d := newOrderTestDeps()

	d.carts.On("FindLive", mock.Anything, "cust-1", "rest-1").
		Return(model.Cart{ID: 7, CustomerID: "cust-1", RestaurantID: "rest-1", Status: model.CartStatusLive}, nil)
	d.cartItems.On("ListByCartID", mock.Anything, int64(7)).
		Return([]model.CartItem{
			{ID: 1, CartID: 7, DishID: "dish-1", UnitPriceSnapshot: 50000, Quantity: 1},
		}, nil)
	d.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.orderItems.On("CreateBulk", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	d.carts.On("UpdateStatus", mock.Anything, int64(7), model.CartStatusCheckedOut).Return(nil)
	d.carts.On("Clear", mock.Anything, int64(7)).Return(nil)

	out, err := d.u.Create(context.Background(), customer("cust-1"), CreateOrderInput{
		RestaurantID:    "rest-1",
		DeliveryAddress: "addr",
		PaymentMethod:   model.PaymentMethodCOD,
	})
	assert.NoError(t, err)
	assert.Equal(t, "unpaid", out.PaymentStatus)
}

func TestCheckout_NoLiveCart(t *testing.T) {
	d := newOrderTestDeps()

	d.carts.On("FindLive", mock.Anything, "cust-1", "rest-1").
		Return(model.Cart{}, repo.ErrNotFound)

	_, err := d.u.Create(context.Background(), customer("cust-1"), CreateOrderInput{
		RestaurantID:    "rest-1",
		DeliveryAddress: "addr",
		PaymentMethod:   model.PaymentMethodCOD,
	})
	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Status)
	assert.Equal(t, "cart empty", he.Message)
	d.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckout_EmptyCart(t *testing.T) {
	d := newOrderTestDeps()

	d.carts.On("FindLive", mock.Anything, "cust-1", "rest-1").
		Return(model.Cart{ID: 7, CustomerID: "cust-1", RestaurantID: "rest-1", Status: model.CartStatusLive}, nil)
	d.cartItems.On("ListByCartID", mock.Anything, int64(7)).
		Return([]model.CartItem{}, nil)

	_, err := d.u.Create(context.Background(), customer("cust-1"), CreateOrderInput{
		RestaurantID:    "rest-1",
		DeliveryAddress: "addr",
		PaymentMethod:   model.PaymentMethodCOD,
	})
	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Status)
	d.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Empty(t, d.pub.Events)
}

// 期限切れカートからは注文を作らない
func TestCheckout_ExpiredCart(t *testing.T) {
	d := newOrderTestDeps()

	past := time.Now().Add(-time.Hour)
	d.carts.On("FindLive", mock.Anything, "cust-1", "rest-1").
		Return(model.Cart{ID: 7, CustomerID: "cust-1", RestaurantID: "rest-1", Status: model.CartStatusLive, ExpiresAt: &past}, nil)
	d.carts.On("UpdateStatus", mock.Anything, int64(7), model.CartStatusExpired).Return(nil)

	_, err := d.u.Create(context.Background(), customer("cust-1"), CreateOrderInput{
		RestaurantID:    "rest-1",
		DeliveryAddress: "addr",
		PaymentMethod:   model.PaymentMethodCOD,
	})
	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusGone, he.Status)
	d.carts.AssertCalled(t, "UpdateStatus", mock.Anything, int64(7), model.CartStatusExpired)
	d.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreate_InvalidPaymentMethod(t *testing.T) {
	d := newOrderTestDeps()

	_, err := d.u.Create(context.Background(), customer("cust-1"), CreateOrderInput{
		RestaurantID:    "rest-1",
		DeliveryAddress: "addr",
		PaymentMethod:   "paypal",
	})
	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Status)
	assert.Equal(t, "invalid payment_method", he.Message)
}

func TestCreate_RestaurantRoleForbidden(t *testing.T) {
	d := newOrderTestDeps()

	_, err := d.u.Create(context.Background(), restaurant("rest-1"), CreateOrderInput{
		RestaurantID:    "rest-1",
		DeliveryAddress: "addr",
		PaymentMethod:   model.PaymentMethodCOD,
	})
	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusForbidden, he.Status)
}

// 直接注文は宣言した店舗と全明細の店舗一致を検証する
func TestCreateDirect_WrongRestaurant(t *testing.T) {
	d := newOrderTestDeps()

	d.catalog.On("GetProduct", mock.Anything, "dish-1").Return(model.Product{
		DishID: "dish-1", RestaurantID: "rest-other", Available: true, Price: 50000,
	}, nil)

	_, err := d.u.Create(context.Background(), customer("cust-1"), CreateOrderInput{
		RestaurantID:    "rest-1",
		DeliveryAddress: "addr",
		PaymentMethod:   model.PaymentMethodCOD,
		Items:           []CreateOrderItemInput{{DishID: "dish-1", Quantity: 1}},
	})
	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Status)
	d.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateDirect_OK(t *testing.T) {
	d := newOrderTestDeps()

	d.catalog.On("GetProduct", mock.Anything, "dish-1").Return(model.Product{
		DishID: "dish-1", RestaurantID: "rest-1", Name: "Pho Bo", Available: true, Price: 50000,
	}, nil)
	d.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.TotalAmount == 3*50000+15000 && o.Status == model.OrderStatusSubmitted
	})).Return(nil)
	d.orderItems.On("CreateBulk", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	out, err := d.u.Create(context.Background(), customer("cust-1"), CreateOrderInput{
		RestaurantID:    "rest-1",
		DeliveryAddress: "addr",
		PaymentMethod:   model.PaymentMethodCard,
		Items:           []CreateOrderItemInput{{DishID: "dish-1", Quantity: 3}},
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(165000), out.TotalAmount)
	assert.Len(t, d.pub.Events, 2)
}

func TestRestaurantConfirm_OK(t *testing.T) {
	d := newOrderTestDeps()

	d.orders.On("FindByIDForUpdate", mock.Anything, "ord-1").
		Return(model.Order{ID: "ord-1", CustomerID: "cust-1", RestaurantID: "rest-1", Status: model.OrderStatusProcessing}, nil)
	d.orders.On("Save", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.Status == model.OrderStatusDelivering
	})).Return(nil)
	d.orderItems.On("ListByOrderID", mock.Anything, "ord-1").Return([]model.OrderItem{}, nil)

	out, err := d.u.RestaurantConfirm(context.Background(), restaurant("rest-1"), "ord-1")
	assert.NoError(t, err)
	assert.Equal(t, "delivering", out.Status)
	assert.Len(t, d.pub.Events, 2)
}

func TestRestaurantConfirm_ByCustomerForbidden(t *testing.T) {
	d := newOrderTestDeps()

	d.orders.On("FindByIDForUpdate", mock.Anything, "ord-1").
		Return(model.Order{ID: "ord-1", CustomerID: "cust-1", RestaurantID: "rest-1", Status: model.OrderStatusProcessing}, nil)

	_, err := d.u.RestaurantConfirm(context.Background(), customer("cust-1"), "ord-1")
	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusForbidden, he.Status)
	d.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestComplete_OK(t *testing.T) {
	d := newOrderTestDeps()

	d.orders.On("FindByIDForUpdate", mock.Anything, "ord-1").
		Return(model.Order{ID: "ord-1", CustomerID: "cust-1", RestaurantID: "rest-1", Status: model.OrderStatusDelivering}, nil)
	d.orders.On("Save", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.Status == model.OrderStatusCompleted
	})).Return(nil)
	d.orderItems.On("ListByOrderID", mock.Anything, "ord-1").Return([]model.OrderItem{}, nil)

	out, err := d.u.Complete(context.Background(), customer("cust-1"), "ord-1")
	assert.NoError(t, err)
	assert.Equal(t, "completed", out.Status)
}

// 終端状態からのキャンセルは遷移表で弾く
func TestCancel_CompletedOrderConflicts(t *testing.T) {
	d := newOrderTestDeps()

	d.orders.On("FindByIDForUpdate", mock.Anything, "ord-1").
		Return(model.Order{ID: "ord-1", CustomerID: "cust-1", RestaurantID: "rest-1", Status: model.OrderStatusCompleted}, nil)

	_, err := d.u.Cancel(context.Background(), customer("cust-1"), "ord-1", "changed my mind")
	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusConflict, he.Status)
	assert.Equal(t, "invalid transition", he.Message)
	d.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Empty(t, d.pub.Events)
}

func TestCancel_RecordsWho(t *testing.T) {
	d := newOrderTestDeps()

	d.orders.On("FindByIDForUpdate", mock.Anything, "ord-1").
		Return(model.Order{ID: "ord-1", CustomerID: "cust-1", RestaurantID: "rest-1", Status: model.OrderStatusSubmitted}, nil)
	d.orders.On("Save", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.Status == model.OrderStatusCancelled &&
			o.Cancellation.Reason == "out of stock" &&
			o.Cancellation.Actor == "customer:cust-1" &&
			o.Cancellation.At != nil
	})).Return(nil)
	d.orderItems.On("ListByOrderID", mock.Anything, "ord-1").Return([]model.OrderItem{}, nil)

	_, err := d.u.Cancel(context.Background(), customer("cust-1"), "ord-1", "out of stock")
	assert.NoError(t, err)
	d.orders.AssertExpectations(t)
}

// processing以降のキャンセルは店側のみ
func TestCancel_ProcessingByCustomerForbidden(t *testing.T) {
	d := newOrderTestDeps()

	d.orders.On("FindByIDForUpdate", mock.Anything, "ord-1").
		Return(model.Order{ID: "ord-1", CustomerID: "cust-1", RestaurantID: "rest-1", Status: model.OrderStatusProcessing}, nil)

	_, err := d.u.Cancel(context.Background(), customer("cust-1"), "ord-1", "")
	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusForbidden, he.Status)
}

// 他人の注文は存在しない扱い
func TestGet_OtherCustomersOrder(t *testing.T) {
	d := newOrderTestDeps()

	d.orders.On("FindByID", mock.Anything, "ord-1").
		Return(model.Order{ID: "ord-1", CustomerID: "someone-else", RestaurantID: "rest-1", Status: model.OrderStatusSubmitted}, nil)

	_, err := d.u.Get(context.Background(), customer("cust-1"), "ord-1")
	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Status)
}

func TestList_ScopedByRole(t *testing.T) {
	d := newOrderTestDeps()

	d.orders.On("List", mock.Anything, repo.OrderListFilter{CustomerID: "cust-1", Page: 1, Limit: 50}).
		Return([]model.Order{{ID: "ord-1", CustomerID: "cust-1", RestaurantID: "rest-1", Status: model.OrderStatusSubmitted}}, int64(1), nil)
	d.orderItems.On("ListByOrderID", mock.Anything, "ord-1").Return([]model.OrderItem{}, nil)

	outs, err := d.u.List(context.Background(), customer("cust-1"), 0, 0)
	assert.NoError(t, err)
	assert.Len(t, outs, 1)
	d.orders.AssertExpectations(t)
}
