package model

import "time"

// 決済側（プロバイダ側）のレコード。Orderとはorder_idでのみ繋がる。
type PaymentStatus string

const (
	SettlementPending    PaymentStatus = "pending"
	SettlementProcessing PaymentStatus = "processing"
	SettlementCompleted  PaymentStatus = "completed"
	SettlementFailed     PaymentStatus = "failed"
	SettlementRefunded   PaymentStatus = "refunded"
)

func (s PaymentStatus) Terminal() bool {
	switch s {
	case SettlementCompleted, SettlementFailed, SettlementRefunded:
		return true
	}
	return false
}

// 1注文につき非failedは最大1件（partial unique indexで保証）
type Payment struct {
	ID            string        `gorm:"type:varchar(64);primaryKey" json:"id"`
	OrderID       string        `gorm:"type:varchar(64);not null;uniqueIndex:idx_live_payment,where:status <> 'failed'" json:"order_id"`
	UserID        string        `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Amount        int64         `gorm:"not null" json:"amount"`
	Currency      string        `gorm:"type:varchar(8);not null" json:"currency"`
	Method        string        `gorm:"type:varchar(20);not null" json:"method"`
	Status        PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	TransactionID string        `gorm:"type:varchar(64)" json:"transaction_id,omitempty"`
	FailureReason string        `gorm:"type:varchar(255)" json:"failure_reason,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	CreatedAt     time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
