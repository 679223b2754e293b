package event

import (
	"context"
	"time"
)

// イベント名
const (
	TypeOrderUpdate      = "order:update"
	TypePaymentInitiated = "payment.initiated"
	TypePaymentCompleted = "payment.completed"
	TypePaymentFailed    = "payment.failed"
	TypePaymentRefunded  = "payment.refunded"
)

// トピックは当事者ごと（customer-{id} / restaurant-{id}）
func CustomerTopic(customerID string) string { return "customer-" + customerID }

func RestaurantTopic(restaurantID string) string { return "restaurant-" + restaurantID }

// 状態遷移がコミットした後にまとめてpublishする。
// at-least-once・トピック間の順序保証なし。購読側は再取得のヒントとして扱う。
type Event struct {
	Topic   string
	Name    string
	Payload any
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type OrderUpdate struct {
	OrderID       string    `json:"order_id"`
	CustomerID    string    `json:"customer_id"`
	RestaurantID  string    `json:"restaurant_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	TotalAmount   int64     `json:"total_amount"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type PaymentUpdate struct {
	PaymentID     string    `json:"payment_id"`
	OrderID       string    `json:"order_id"`
	Status        string    `json:"status"`
	Amount        int64     `json:"amount"`
	Method        string    `json:"method"`
	TransactionID string    `json:"transaction_id,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
