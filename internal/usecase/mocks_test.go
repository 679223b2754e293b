package usecase

import (
	"context"
	"sync"
	"time"

	"app/internal/domain/event"
	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	carts      repo.CartRepository
	cartItems  repo.CartItemRepository
	payments   repo.PaymentRepository
}

func (r *TxReposMock) Orders() repo.OrderRepository         { return r.orders }
func (r *TxReposMock) OrderItems() repo.OrderItemRepository { return r.orderItems }
func (r *TxReposMock) Carts() repo.CartRepository           { return r.carts }
func (r *TxReposMock) CartItems() repo.CartItemRepository   { return r.cartItems }
func (r *TxReposMock) Payments() repo.PaymentRepository     { return r.payments }

// =====================
// Repository mocks
// =====================

type CartRepoMock struct{ mock.Mock }

func (m *CartRepoMock) GetOrCreateLive(ctx context.Context, customerID string, restaurantID string, ttl time.Duration) (model.Cart, error) {
	args := m.Called(ctx, customerID, restaurantID, ttl)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartRepoMock) FindLive(ctx context.Context, customerID string, restaurantID string) (model.Cart, error) {
	args := m.Called(ctx, customerID, restaurantID)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartRepoMock) FindByID(ctx context.Context, cartID int64) (model.Cart, error) {
	args := m.Called(ctx, cartID)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartRepoMock) UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error {
	args := m.Called(ctx, cartID, status)
	return args.Error(0)
}

func (m *CartRepoMock) Clear(ctx context.Context, cartID int64) error {
	args := m.Called(ctx, cartID)
	return args.Error(0)
}

type CartItemRepoMock struct{ mock.Mock }

func (m *CartItemRepoMock) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	args := m.Called(ctx, cartID)
	items, _ := args.Get(0).([]model.CartItem)
	return items, args.Error(1)
}

func (m *CartItemRepoMock) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	args := m.Called(ctx, cartItemID)
	it, _ := args.Get(0).(model.CartItem)
	return it, args.Error(1)
}

func (m *CartItemRepoMock) Create(ctx context.Context, item model.CartItem) (model.CartItem, error) {
	args := m.Called(ctx, item)
	it, _ := args.Get(0).(model.CartItem)
	return it, args.Error(1)
}

func (m *CartItemRepoMock) Update(ctx context.Context, cartItemID int64, qty int64, notes string) error {
	args := m.Called(ctx, cartItemID, qty, notes)
	return args.Error(0)
}

func (m *CartItemRepoMock) DeleteByID(ctx context.Context, cartItemID int64) error {
	args := m.Called(ctx, cartItemID)
	return args.Error(0)
}

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindByIDForUpdate(ctx context.Context, orderID string) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *OrderRepoMock) Save(ctx context.Context, order model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *OrderRepoMock) List(ctx context.Context, f repo.OrderListFilter) ([]model.Order, int64, error) {
	args := m.Called(ctx, f)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type PaymentRepoMock struct{ mock.Mock }

func (m *PaymentRepoMock) Create(ctx context.Context, p model.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *PaymentRepoMock) FindByID(ctx context.Context, paymentID string) (model.Payment, error) {
	args := m.Called(ctx, paymentID)
	p, _ := args.Get(0).(model.Payment)
	return p, args.Error(1)
}

func (m *PaymentRepoMock) FindByIDForUpdate(ctx context.Context, paymentID string) (model.Payment, error) {
	args := m.Called(ctx, paymentID)
	p, _ := args.Get(0).(model.Payment)
	return p, args.Error(1)
}

func (m *PaymentRepoMock) FindLiveByOrderID(ctx context.Context, orderID string) (model.Payment, bool, error) {
	args := m.Called(ctx, orderID)
	p, _ := args.Get(0).(model.Payment)
	return p, args.Bool(1), args.Error(2)
}

func (m *PaymentRepoMock) Save(ctx context.Context, p model.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *PaymentRepoMock) ListByUserID(ctx context.Context, userID string) ([]model.Payment, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]model.Payment)
	return items, args.Error(1)
}

func (m *PaymentRepoMock) ListAll(ctx context.Context) ([]model.Payment, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]model.Payment)
	return items, args.Error(1)
}

func (m *PaymentRepoMock) FailStuckProcessing(ctx context.Context, olderThan time.Time, reason string) (int64, error) {
	args := m.Called(ctx, olderThan, reason)
	return args.Get(0).(int64), args.Error(1)
}

// =====================
// 外部コラボレータのモック
// =====================

type CatalogMock struct{ mock.Mock }

func (m *CatalogMock) GetProduct(ctx context.Context, dishID string) (model.Product, error) {
	args := m.Called(ctx, dishID)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

type IntentCreatorMock struct{ mock.Mock }

func (m *IntentCreatorMock) CreateIntent(ctx context.Context, orderID string, amount int64, method string) (PaymentIntent, error) {
	args := m.Called(ctx, orderID, amount, method)
	in, _ := args.Get(0).(PaymentIntent)
	return in, args.Error(1)
}

// 発行されたイベントを記録するPublisher
type PublisherRecorder struct {
	mu     sync.Mutex
	Events []event.Event
}

func (p *PublisherRecorder) Publish(ctx context.Context, e event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, e)
	return nil
}

func (p *PublisherRecorder) Named(name string) []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []event.Event
	for _, e := range p.Events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// 成功/失敗を固定で返すプロバイダ
type ProviderStub struct {
	Result ProviderResult
}

func (p *ProviderStub) Process(ctx context.Context, pay model.Payment) ProviderResult {
	return p.Result
}
