package model

import "time"

type CartStatus string

const (
	CartStatusLive       CartStatus = "cart"
	CartStatusCheckedOut CartStatus = "checked_out"
	CartStatusExpired    CartStatus = "expired"
)

// 1顧客×1店舗につきliveは1つ（partial unique indexで保証）
type Cart struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID   string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_live_cart,where:status = 'cart'" json:"customer_id"`
	RestaurantID string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_live_cart,where:status = 'cart'" json:"restaurant_id"`
	Status       CartStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 期限切れ判定（expires_at未設定なら無期限）
func (c Cart) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// カートの明細
// 追加時点の価格と商品名を必ず保存。
type CartItem struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID            int64     `gorm:"not null;index;uniqueIndex:idx_cart_dish" json:"cart_id"`
	DishID            string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_cart_dish" json:"dish_id"`
	DishNameSnapshot  string    `gorm:"type:varchar(255);not null" json:"dish_name"`
	UnitPriceSnapshot int64     `gorm:"not null;column:unit_price_snapshot" json:"unit_price"`
	Quantity          int64     `gorm:"not null" json:"quantity"`
	Notes             string    `gorm:"type:varchar(500)" json:"notes,omitempty"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
