package model

import "time"

type OrderStatus string

const (
	OrderStatusCart       OrderStatus = "cart"
	OrderStatusSubmitted  OrderStatus = "submitted"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDelivering OrderStatus = "delivering"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusExpired    OrderStatus = "expired"
)

// 注文の支払い状態（注文statusとは独立）
type OrderPaymentStatus string

const (
	PaymentStatusUnpaid  OrderPaymentStatus = "unpaid"
	PaymentStatusPending OrderPaymentStatus = "pending"
	PaymentStatusPaid    OrderPaymentStatus = "paid"
	PaymentStatusFailed  OrderPaymentStatus = "failed"
)

// 支払い方法
const (
	PaymentMethodCOD   = "cod"
	PaymentMethodVNPay = "vnpay"
	PaymentMethodMomo  = "momo"
	PaymentMethodCard  = "card"
)

func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodVNPay, PaymentMethodMomo, PaymentMethodCard:
		return true
	}
	return false
}

// 遷移表。ここに無いペアは全て不正。
// 終端（completed / cancelled / expired）は出口を持たない。
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCart:       {OrderStatusSubmitted, OrderStatusExpired},
	OrderStatusSubmitted:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusDelivering, OrderStatusCancelled},
	OrderStatusDelivering: {OrderStatusCompleted, OrderStatusCancelled},
}

func CanTransition(from OrderStatus, to OrderStatus) bool {
	for _, t := range orderTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// 外部決済の最終既知状態。冪等判定と監査のためだけに持つ。
type PaymentRef struct {
	PaymentID     string     `gorm:"type:varchar(64)" json:"payment_id,omitempty"`
	Provider      string     `gorm:"type:varchar(32)" json:"provider,omitempty"`
	LastStatus    string     `gorm:"type:varchar(20)" json:"last_status,omitempty"`
	CheckoutURL   string     `gorm:"type:varchar(500)" json:"checkout_url,omitempty"`
	QRData        string     `gorm:"type:varchar(500)" json:"qr_data,omitempty"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty"`
}

// キャンセル記録
type Cancellation struct {
	Reason string     `gorm:"type:varchar(255)" json:"reason,omitempty"`
	Actor  string     `gorm:"type:varchar(64)" json:"actor,omitempty"`
	At     *time.Time `json:"at,omitempty"`
}

// チェックアウトで生成される確定注文。
// 明細はスナップショットで凍結し、以後のカタログ価格変更の影響を受けない。
type Order struct {
	ID              string             `gorm:"type:varchar(64);primaryKey" json:"id"`
	CustomerID      string             `gorm:"type:varchar(64);not null;index" json:"customer_id"`
	RestaurantID    string             `gorm:"type:varchar(64);not null;index" json:"restaurant_id"`
	Status          OrderStatus        `gorm:"type:varchar(20);not null;index" json:"status"`
	TotalAmount     int64              `gorm:"not null" json:"total_amount"`
	DeliveryFee     int64              `gorm:"not null" json:"delivery_fee"`
	DeliveryAddress string             `gorm:"type:varchar(500);not null" json:"delivery_address"`
	PaymentMethod   string             `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentStatus   OrderPaymentStatus `gorm:"type:varchar(20);not null" json:"payment_status"`
	Payment         PaymentRef         `gorm:"embedded;embeddedPrefix:payment_" json:"payment_meta"`
	Cancellation    Cancellation       `gorm:"embedded;embeddedPrefix:cancel_" json:"cancellation,omitempty"`
	SubmittedAt     *time.Time         `json:"submitted_at,omitempty"`
	CreatedAt       time.Time          `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time          `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

type OrderItem struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID           string    `gorm:"type:varchar(64);not null;index" json:"order_id"`
	DishID            string    `gorm:"type:varchar(64);not null;index" json:"dish_id"`
	DishNameSnapshot  string    `gorm:"type:varchar(255);not null" json:"dish_name"`
	UnitPriceSnapshot int64     `gorm:"not null" json:"unit_price"`
	Quantity          int64     `gorm:"not null" json:"quantity"`
	Notes             string    `gorm:"type:varchar(500)" json:"notes,omitempty"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
